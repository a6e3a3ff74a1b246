package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/loyaltree/internal/purchase/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.PurchaseOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO purchase_orders (id, member_code, amount, status, rewards_applied, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.MemberCode,
		order.Amount,
		order.Status,
		order.RewardsApplied,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := db.WithContext(ctx).Raw(
		`SELECT id, member_code, amount, status, rewards_applied, created_at, updated_at
		 FROM purchase_orders WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.OrderStatus) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE purchase_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkRewardsApplied(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE purchase_orders SET rewards_applied = ?, updated_at = ?
		 WHERE id = ? AND rewards_applied = ? AND status <> ?`,
		true,
		time.Now().UTC(),
		id,
		false,
		domain.StatusCancelled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
