package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Member, error)
	HasChildren(ctx context.Context, db *gorm.DB, code string) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, code string) error
	ListAll(ctx context.Context, db *gorm.DB) ([]Member, error)
	CountRoots(ctx context.Context, db *gorm.DB) (int64, error)
}
