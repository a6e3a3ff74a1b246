package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Service interface {
	// DistributePurchase credits the purchaser and up to three ancestors for
	// a purchase. Every step is idempotently keyed, so replaying the same
	// order re-derives the same receipt without double-crediting.
	DistributePurchase(ctx context.Context, sourceCode string, amount decimal.Decimal, orderID string) (Receipt, error)
	// Receipt returns the recorded receipt for an order, reporting whether
	// any distribution rows exist for it.
	Receipt(ctx context.Context, orderID string) (Receipt, bool, error)
}
