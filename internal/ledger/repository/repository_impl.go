package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/loyaltree/internal/ledger/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpdateRewards(ctx context.Context, db *gorm.DB, member *memberdomain.Member, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE members
		 SET points = ?, tier = ?, total_spent = ?, accumulated_point_money = ?, version = version + 1, updated_at = ?
		 WHERE code = ? AND version = ?`,
		member.Points,
		member.Tier,
		member.TotalSpent,
		member.AccumulatedPointMoney,
		time.Now().UTC(),
		member.Code,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) IncrementCoins(ctx context.Context, db *gorm.DB, code string, amount int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE members SET coins = coins + ?, updated_at = ? WHERE code = ?`,
		amount,
		time.Now().UTC(),
		code,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) DecrementCoins(ctx context.Context, db *gorm.DB, code string, amount int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE members SET coins = coins - ?, updated_at = ? WHERE code = ? AND coins >= ?`,
		amount,
		time.Now().UTC(),
		code,
		amount,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AppendTransaction(ctx context.Context, db *gorm.DB, txn *domain.CoinTransaction) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(txn)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AdjustWallet(ctx context.Context, db *gorm.DB, code string, coinDelta, valueDelta int64) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "member_code"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_coins":  gorm.Expr("coin_wallets.total_coins + ?", coinDelta),
				"total_value":  gorm.Expr("coin_wallets.total_value + ?", valueDelta),
				"last_updated": now,
			}),
		}).
		Create(&domain.CoinWallet{
			MemberCode:  code,
			TotalCoins:  coinDelta,
			TotalValue:  valueDelta,
			LastUpdated: now,
		}).Error
}

func (r *repo) ReplaceWallet(ctx context.Context, db *gorm.DB, wallet *domain.CoinWallet) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "member_code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_coins", "total_value", "last_updated",
			}),
		}).
		Create(wallet).Error
}

func (r *repo) FindWallet(ctx context.Context, db *gorm.DB, code string) (*domain.CoinWallet, error) {
	var wallet domain.CoinWallet
	err := db.WithContext(ctx).Raw(
		`SELECT member_code, total_coins, total_value, last_updated FROM coin_wallets WHERE member_code = ?`,
		code,
	).Scan(&wallet).Error
	if err != nil {
		return nil, err
	}
	if wallet.MemberCode == "" {
		return nil, nil
	}
	return &wallet, nil
}

func (r *repo) SumTransactions(ctx context.Context, db *gorm.DB, code string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(CASE WHEN kind = ? THEN -amount ELSE amount END), 0)
		 FROM coin_transactions WHERE member_code = ?`,
		domain.KindRedeemed,
		code,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, code string) ([]domain.CoinTransaction, error) {
	var txns []domain.CoinTransaction
	err := db.WithContext(ctx).
		Model(&domain.CoinTransaction{}).
		Where("member_code = ?", code).
		Order("created_at desc, id desc").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
