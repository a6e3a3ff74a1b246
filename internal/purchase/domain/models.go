package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the purchase order lifecycle state.
type OrderStatus string

const (
	StatusCreated         OrderStatus = "created"
	StatusPendingApproval OrderStatus = "pending_approval"
	StatusConfirmed       OrderStatus = "confirmed"
	StatusShipped         OrderStatus = "shipped"
	StatusDelivered       OrderStatus = "delivered"
	StatusCancelled       OrderStatus = "cancelled"
)

// transitions is the allowed state machine:
// Created -> PendingApproval -> {Confirmed -> Shipped -> Delivered} | Cancelled.
var transitions = map[OrderStatus][]OrderStatus{
	StatusCreated:         {StatusPendingApproval, StatusCancelled},
	StatusPendingApproval: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:       {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusDelivered},
	StatusDelivered:       {},
	StatusCancelled:       {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether the value is a known status.
func ValidStatus(status OrderStatus) bool {
	_, ok := transitions[status]
	return ok
}

// PurchaseOrder is the order record consumed from checkout. RewardsApplied
// transitions to true exactly once, only while the order is not cancelled.
type PurchaseOrder struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	MemberCode     string          `gorm:"not null;index" json:"member_code"`
	Amount         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Status         OrderStatus     `gorm:"not null" json:"status"`
	RewardsApplied bool            `gorm:"not null;default:false" json:"rewards_applied"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}
