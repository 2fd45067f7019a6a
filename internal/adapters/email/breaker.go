package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"guestpass/internal/domain"
)

// BreakerConfig tunes the circuit breaker placed in front of the mail provider.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	return c
}

type breakerMailer struct {
	next domain.Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerMailer wraps next so that a run of consecutive delivery failures opens the circuit
// and further sends fail fast with gobreaker.ErrOpenState until the timeout elapses.
func NewBreakerMailer(next domain.Mailer, cfg BreakerConfig, logger *slog.Logger) domain.Mailer {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerMailer{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *breakerMailer) Send(ctx context.Context, msg *domain.EmailMessage) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, msg)
	})
	return err
}
