package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	distributiondomain "github.com/smallbiznis/loyaltree/internal/distribution/domain"
)

// CreateOrderRequest is the purchase event consumed from checkout.
type CreateOrderRequest struct {
	OrderID    string
	MemberCode string
	Amount     decimal.Decimal
}

type Service interface {
	// Create persists an incoming purchase order in Created state.
	Create(ctx context.Context, req CreateOrderRequest) (PurchaseOrder, error)
	Get(ctx context.Context, id string) (PurchaseOrder, error)
	// Transition applies the order state machine.
	Transition(ctx context.Context, id string, to OrderStatus) (PurchaseOrder, error)
	// ProcessOrder distributes rewards for an order with at-most-once
	// semantics; replays return the stored receipt. Errors are surfaced to
	// the caller, which owns retry policy.
	ProcessOrder(ctx context.Context, id string) (distributiondomain.Receipt, error)
	// Receipt returns the distribution receipt for a processed order.
	Receipt(ctx context.Context, id string) (distributiondomain.Receipt, error)
}

var (
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrDuplicateOrder     = errors.New("duplicate_order")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrOrderCancelled     = errors.New("order_cancelled")
	ErrInvalidOrderAmount = errors.New("invalid_order_amount")
	ErrRewardsNotApplied  = errors.New("rewards_not_applied")
)
