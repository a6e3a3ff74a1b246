package repository

import (
	"context"

	"github.com/smallbiznis/loyaltree/internal/member/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO members (code, parent_code, level, points, coins, tier, total_spent, accumulated_point_money, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		member.Code,
		member.ParentCode,
		member.Level,
		member.Points,
		member.Coins,
		member.Tier,
		member.TotalSpent,
		member.AccumulatedPointMoney,
		member.Version,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT code, parent_code, level, points, coins, tier, total_spent, accumulated_point_money, version, created_at, updated_at
		 FROM members WHERE code = ?`,
		code,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.Code == "" {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) HasChildren(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("parent_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, code string) error {
	return db.WithContext(ctx).Exec(`DELETE FROM members WHERE code = ?`, code).Error
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Member, error) {
	var members []domain.Member
	err := db.WithContext(ctx).
		Model(&domain.Member{}).
		Order("created_at asc, code asc").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repo) CountRoots(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("parent_code IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
