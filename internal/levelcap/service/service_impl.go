package service

import (
	"context"

	"github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("levelcap.service"),
		repo: p.Repo,
	}
}

func (s *Service) Capacity(level int) (int64, error) {
	if !domain.ValidLevel(level) {
		return 0, domain.ErrInvalidLevel
	}
	return domain.Capacity(level), nil
}

func (s *Service) Occupancy(ctx context.Context, level int) (int64, error) {
	if !domain.ValidLevel(level) {
		return 0, domain.ErrInvalidLevel
	}
	cfg, err := s.repo.Find(ctx, s.db, level)
	if err != nil {
		return 0, err
	}
	if cfg == nil {
		return 0, nil
	}
	return cfg.Filled, nil
}

func (s *Service) Snapshot(ctx context.Context) (domain.OccupancySnapshot, error) {
	rows, err := s.repo.List(ctx, s.db)
	if err != nil {
		return domain.OccupancySnapshot{}, err
	}

	snapshot := domain.OccupancySnapshot{Levels: make([]domain.LevelOccupancy, 0, len(rows))}
	for _, row := range rows {
		snapshot.Levels = append(snapshot.Levels, domain.LevelOccupancy{
			Level:    row.Level,
			Filled:   row.Filled,
			Capacity: row.Capacity,
		})
	}
	return snapshot, nil
}

func (s *Service) ReserveSlot(ctx context.Context, tx *gorm.DB, level int) error {
	if !domain.ValidLevel(level) {
		return domain.ErrInvalidLevel
	}
	if tx == nil {
		tx = s.db
	}

	reserved, err := s.repo.Reserve(ctx, tx, level)
	if err != nil {
		return err
	}
	if !reserved {
		return &domain.CapacityExceededError{Level: level, Capacity: domain.Capacity(level)}
	}
	return nil
}

func (s *Service) ReleaseSlot(ctx context.Context, tx *gorm.DB, level int) error {
	if !domain.ValidLevel(level) {
		return domain.ErrInvalidLevel
	}
	if tx == nil {
		tx = s.db
	}
	return s.repo.Release(ctx, tx, level)
}
