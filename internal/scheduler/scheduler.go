package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/internal/pkg/clock"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = time.Minute

// Engine is the subset of the promotion service the scheduler drives.
type Engine interface {
	ActivatePromotion(ctx context.Context, id string) ([]string, error)
	DeactivateExpired(ctx context.Context, id string) error
}

// CampaignSource lists the campaigns each sweep must visit.
type CampaignSource interface {
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_scheduler_ticks_total",
		Help: "Total number of scheduler sweeps executed.",
	})
	tickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_scheduler_tick_errors_total",
		Help: "Total number of campaign processing failures during sweeps.",
	})
	activatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_scheduler_campaigns_activated_total",
		Help: "Total number of campaigns re-activated by the scheduler.",
	})
	deactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_scheduler_campaigns_deactivated_total",
		Help: "Total number of expired campaigns deactivated by the scheduler.",
	})
)

// Scheduler periodically re-activates campaigns whose window is open and
// deactivates campaigns whose window has closed. Each sweep is idempotent,
// so a missed or repeated tick converges to the same state. It assumes a
// single running instance; replicas would need external coordination.
type Scheduler struct {
	engine    Engine
	campaigns CampaignSource
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a scheduler sweeping at the given interval.
func New(engine Engine, campaigns CampaignSource, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scheduler{
		engine:    engine,
		campaigns: campaigns,
		interval:  interval,
		clock:     clk,
		logger:    logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("promotion scheduler started",
		slog.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("promotion scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep: due campaigns first so pricing that should be live
// is applied before expired campaigns are withdrawn. A failure on one
// campaign is logged and the sweep continues.
func (s *Scheduler) Tick(ctx context.Context) {
	ticksTotal.Inc()
	now := s.clock.Now()

	due, err := s.campaigns.ListDue(ctx, now)
	if err != nil {
		tickErrorsTotal.Inc()
		s.logger.ErrorContext(ctx, "failed to list due campaigns",
			slog.String("error", err.Error()),
		)
	} else {
		for i := range due {
			if _, err := s.engine.ActivatePromotion(ctx, due[i].ID); err != nil {
				tickErrorsTotal.Inc()
				s.logger.ErrorContext(ctx, "failed to activate due campaign",
					slog.String("campaign_id", due[i].ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			activatedTotal.Inc()
		}
	}

	expired, err := s.campaigns.ListExpired(ctx, now)
	if err != nil {
		tickErrorsTotal.Inc()
		s.logger.ErrorContext(ctx, "failed to list expired campaigns",
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range expired {
		if err := s.engine.DeactivateExpired(ctx, expired[i].ID); err != nil {
			tickErrorsTotal.Inc()
			s.logger.ErrorContext(ctx, "failed to deactivate expired campaign",
				slog.String("campaign_id", expired[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		deactivatedTotal.Inc()
	}
}
