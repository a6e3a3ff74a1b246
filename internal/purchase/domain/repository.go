package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *PurchaseOrder) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*PurchaseOrder, error)
	// UpdateStatus moves the order iff it is still in from, so concurrent
	// transitions cannot skip states.
	UpdateStatus(ctx context.Context, db *gorm.DB, id string, from, to OrderStatus) (bool, error)
	// MarkRewardsApplied flips the flag iff it is still false and the order
	// is not cancelled.
	MarkRewardsApplied(ctx context.Context, db *gorm.DB, id string) (bool, error)
}
