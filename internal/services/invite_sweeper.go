package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"guestpass/internal/domain"
)

const defaultSweepSpec = "@every 15m"

// InviteSweeper periodically re-sends invites whose first delivery did not succeed.
type InviteSweeper struct {
	invites  domain.InviteService
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	log      *slog.Logger
}

// SweeperOption customises the InviteSweeper.
type SweeperOption func(*InviteSweeper)

// WithSweepCron injects a preconfigured cron instance, primarily for testing.
func WithSweepCron(c *cron.Cron) SweeperOption {
	return func(s *InviteSweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSweepSchedule overrides the cron specification of the sweep.
func WithSweepSchedule(spec string) SweeperOption {
	return func(s *InviteSweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithSweepTimeout bounds a single sweep run.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *InviteSweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewInviteSweeper constructs an InviteSweeper running every 15 minutes by default.
func NewInviteSweeper(invites domain.InviteService, logger *slog.Logger, opts ...SweeperOption) *InviteSweeper {
	s := &InviteSweeper{
		invites:  invites,
		schedule: defaultSweepSpec,
		timeout:  5 * time.Minute,
		log:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the sweep job and launches the scheduler.
func (s *InviteSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("invite sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once a running sweep finishes.
func (s *InviteSweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce re-sends pending invites once. Individual delivery failures are aggregated.
func (s *InviteSweeper) RunOnce(ctx context.Context) error {
	sent, err := s.invites.DeliverPending(ctx)
	if sent > 0 {
		s.log.Info("pending invites delivered", "count", sent)
	}
	return err
}
