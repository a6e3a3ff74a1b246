package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/loyaltree/internal/cache"
	"github.com/smallbiznis/loyaltree/internal/clock"
	"github.com/smallbiznis/loyaltree/internal/config"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	"github.com/smallbiznis/loyaltree/internal/member/domain"
	"github.com/smallbiznis/loyaltree/internal/telemetry"
	"github.com/smallbiznis/loyaltree/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const snapshotTTL = 5 * time.Second

type Params struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Levels  levelcapdomain.Service
	Metrics *telemetry.Metrics
}

type Service struct {
	cfg       config.Config
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	levels    levelcapdomain.Service
	metrics   *telemetry.Metrics
	snapshots cache.Cache[string, domain.Snapshot]
}

func New(p Params) domain.Service {
	return &Service{
		cfg:       p.Config,
		db:        p.DB,
		log:       p.Log.Named("member.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		levels:    p.Levels,
		metrics:   p.Metrics,
		snapshots: cache.NewTTLCache[string, domain.Snapshot](),
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.Member, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.Member{}, domain.ErrInvalidCode
	}
	if !levelcapdomain.ValidLevel(req.Level) {
		return domain.Member{}, levelcapdomain.ErrInvalidLevel
	}

	parentCode := strings.TrimSpace(req.ParentCode)
	var parent *string
	if parentCode != "" {
		parent = &parentCode
	} else if code != s.cfg.RootMemberCode {
		// Only the configured root member may be parentless.
		return domain.Member{}, domain.ErrParentNotFound
	}

	now := s.clock.Now()
	member := domain.Member{
		Code:                  code,
		ParentCode:            parent,
		Level:                 req.Level,
		Tier:                  domain.TierBronze,
		TotalSpent:            decimal.Zero,
		AccumulatedPointMoney: decimal.Zero,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateCode
		}

		if parent != nil {
			parentRow, err := s.repo.FindByCode(ctx, tx, *parent)
			if err != nil {
				return err
			}
			if parentRow == nil {
				return domain.ErrParentNotFound
			}
		} else {
			roots, err := s.repo.CountRoots(ctx, tx)
			if err != nil {
				return err
			}
			if roots > 0 {
				return domain.ErrRootExists
			}
		}

		// Slot reservation and the insert share the transaction; a failed
		// insert rolls the occupancy increment back.
		if err := s.levels.ReserveSlot(ctx, tx, req.Level); err != nil {
			return err
		}

		if err := s.repo.Insert(ctx, tx, &member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return domain.Member{}, err
	}

	s.metrics.RegistrationsTotal.WithLabelValues("accepted").Inc()
	s.log.Info("member registered",
		zap.String("code", member.Code),
		zap.Int("level", member.Level),
	)
	return member, nil
}

func (s *Service) Get(ctx context.Context, code string) (domain.Member, error) {
	member, err := s.repo.FindByCode(ctx, s.db, strings.TrimSpace(code))
	if err != nil {
		return domain.Member{}, err
	}
	if member == nil {
		return domain.Member{}, domain.ErrNotFound
	}
	return *member, nil
}

func (s *Service) Snapshot(ctx context.Context, code string) (domain.Snapshot, error) {
	code = strings.TrimSpace(code)
	if snap, ok := s.snapshots.Get(code); ok {
		return snap, nil
	}

	member, err := s.Get(ctx, code)
	if err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		Code:   member.Code,
		Points: member.Points,
		Coins:  member.Coins,
		Tier:   member.Tier,
		Level:  member.Level,
	}
	s.snapshots.Set(code, snap, snapshotTTL)
	return snap, nil
}

func (s *Service) AncestorChain(ctx context.Context, code string, maxDepth int) ([]domain.Member, error) {
	member, err := s.repo.FindByCode(ctx, s.db, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotFound
	}
	if maxDepth <= 0 {
		return nil, nil
	}

	chain := make([]domain.Member, 0, maxDepth)
	visited := map[string]struct{}{member.Code: {}}
	current := member
	for len(chain) < maxDepth && current.ParentCode != nil {
		parent, err := s.repo.FindByCode(ctx, s.db, *current.ParentCode)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			// Dangling parent link; treat the chain as ended at this point.
			break
		}
		if _, seen := visited[parent.Code]; seen {
			return nil, domain.ErrCycleDetected
		}
		visited[parent.Code] = struct{}{}
		chain = append(chain, *parent)
		current = parent
	}
	return chain, nil
}

func (s *Service) Remove(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == s.cfg.RootMemberCode {
		return domain.ErrHasDescendants
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if member == nil {
			return domain.ErrNotFound
		}

		hasChildren, err := s.repo.HasChildren(ctx, tx, code)
		if err != nil {
			return err
		}
		if hasChildren {
			return domain.ErrHasDescendants
		}

		if err := s.repo.Delete(ctx, tx, code); err != nil {
			return err
		}
		return s.levels.ReleaseSlot(ctx, tx, member.Level)
	})
	if err != nil {
		return err
	}

	s.snapshots.Delete(code)
	s.log.Info("member removed", zap.String("code", code))
	return nil
}

// Tree builds the reporting tree breadth-first with an explicit visited set,
// rejecting cycles instead of recursing into them.
func (s *Service) Tree(ctx context.Context) (*domain.TreeNode, error) {
	members, err := s.repo.ListAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domain.ErrNotFound
	}

	nodes := make(map[string]*domain.TreeNode, len(members))
	children := make(map[string][]string, len(members))
	var rootCode string
	for _, m := range members {
		nodes[m.Code] = &domain.TreeNode{Code: m.Code, Level: m.Level, Tier: m.Tier}
		if m.ParentCode == nil {
			rootCode = m.Code
			continue
		}
		children[*m.ParentCode] = append(children[*m.ParentCode], m.Code)
	}
	if rootCode == "" {
		return nil, domain.ErrCycleDetected
	}

	visited := make(map[string]struct{}, len(members))
	queue := []string{rootCode}
	visited[rootCode] = struct{}{}
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		node := nodes[code]
		for _, childCode := range children[code] {
			if _, seen := visited[childCode]; seen {
				return nil, domain.ErrCycleDetected
			}
			visited[childCode] = struct{}{}
			node.Children = append(node.Children, nodes[childCode])
			queue = append(queue, childCode)
		}
	}
	if len(visited) != len(members) {
		// Members unreachable from the root indicate a broken parent link.
		return nil, domain.ErrCycleDetected
	}
	return nodes[rootCode], nil
}
