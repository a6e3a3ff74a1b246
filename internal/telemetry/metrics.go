package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics exposes the engine's prometheus instruments.
type Metrics struct {
	RegistrationsTotal        *prometheus.CounterVec
	DistributionsTotal        *prometheus.CounterVec
	CoinsDistributedTotal     prometheus.Counter
	RedemptionsTotal          *prometheus.CounterVec
	ConcurrencyConflictsTotal prometheus.Counter
}

// Module provides the metrics registry.
var Module = fx.Provide(New)

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the instruments against an explicit registerer; tests
// pass a fresh registry so repeated setups do not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyaltree_registrations_total",
			Help: "Member registrations by outcome.",
		}, []string{"outcome"}),
		DistributionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyaltree_distributions_total",
			Help: "Purchase distributions by outcome.",
		}, []string{"outcome"}),
		CoinsDistributedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "loyaltree_coins_distributed_total",
			Help: "Coins credited to ancestors through distribution.",
		}),
		RedemptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loyaltree_redemptions_total",
			Help: "Coin redemptions by outcome.",
		}, []string{"outcome"}),
		ConcurrencyConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "loyaltree_concurrency_conflicts_total",
			Help: "Optimistic-lock conflicts surfaced to callers.",
		}),
	}
}
