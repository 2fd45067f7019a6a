package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"guestpass/internal/domain"
	"guestpass/internal/metrics"
	"guestpass/internal/token"
)

const (
	defaultDeliveryTimeout = 30 * time.Second
	defaultSweepGrace      = 10 * time.Minute
	defaultSweepBatch      = 100
)

// InviteConfig tunes the invite lifecycle.
type InviteConfig struct {
	// AppURL is the public base URL used to build invite links.
	AppURL string
	// TTL is added to the creation time to set the expiry. Zero means invites never expire.
	TTL time.Duration
	// Timeout bounds each request-scoped operation.
	Timeout time.Duration
	// DeliveryTimeout bounds each background email send.
	DeliveryTimeout time.Duration
	// SweepGrace is how long a CREATED invite is left alone before the sweep retries it.
	SweepGrace time.Duration
	// SweepBatch caps the invites re-sent per sweep.
	SweepBatch int
}

type inviteService struct {
	inviteRepo   domain.InviteRepository
	eventRepo    domain.EventRepository
	fieldRepo    domain.RegistrationFieldRepository
	emailService domain.EmailService
	cfg          InviteConfig
	logger       *slog.Logger
	now          func() time.Time
	async        func(func())
}

// NewInviteService returns an InviteService. Invite creation never fails because of email delivery:
// the email is sent in the background and the invite stays CREATED if it fails.
func NewInviteService(
	inviteRepo domain.InviteRepository,
	eventRepo domain.EventRepository,
	fieldRepo domain.RegistrationFieldRepository,
	emailService domain.EmailService,
	cfg InviteConfig,
	logger *slog.Logger,
) domain.InviteService {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.SweepGrace <= 0 {
		cfg.SweepGrace = defaultSweepGrace
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	return &inviteService{
		inviteRepo:   inviteRepo,
		eventRepo:    eventRepo,
		fieldRepo:    fieldRepo,
		emailService: emailService,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		async:        runAsync,
	}
}

func (s *inviteService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *inviteService) CreateInvite(ctx context.Context, op domain.Operator, eventID, email string) (*domain.Invite, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	event, err := s.eventRepo.GetByIDForOwner(ctx, eventID, op.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	now := s.now()
	var expiresAt *time.Time
	if s.cfg.TTL > 0 {
		exp := now.Add(s.cfg.TTL)
		expiresAt = &exp
	}
	inv := domain.NewInvite(event.ID, token.New(), email, now, expiresAt)
	if err := s.inviteRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}
	metrics.InvitesCreated.Inc()

	pending := &domain.PendingInvite{Invite: cloneInvite(inv), EventName: event.Name}
	s.async(func() {
		dctx, cancel := detached(ctx, s.cfg.DeliveryTimeout)
		defer cancel()
		if err := s.deliver(dctx, pending); err != nil {
			s.logger.ErrorContext(dctx, "invite delivery failed", "invite_id", pending.Invite.ID, "error", err)
		}
	})
	return inv, nil
}

func cloneInvite(inv *domain.Invite) *domain.Invite {
	cp := *inv
	return &cp
}

// deliver sends the invite email and advances CREATED -> SENT.
func (s *inviteService) deliver(ctx context.Context, p *domain.PendingInvite) error {
	err := s.emailService.SendInvite(ctx, &domain.InviteEmailData{
		Email:     p.Invite.Email,
		EventName: p.EventName,
		InviteURL: token.InviteURL(s.cfg.AppURL, p.Invite.Token),
		ExpiresAt: p.Invite.ExpiresAt,
	})
	if err != nil {
		return err
	}
	advanced, err := s.inviteRepo.MarkSent(ctx, p.Invite.ID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if !advanced {
		s.logger.DebugContext(ctx, "invite left unchanged after delivery", "invite_id", p.Invite.ID)
	}
	return nil
}

func (s *inviteService) ListInvites(ctx context.Context, op domain.Operator, eventID string) ([]*domain.Invite, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.eventRepo.GetByIDForOwner(ctx, eventID, op.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	invites, err := s.inviteRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

func (s *inviteService) ResolveInviteForRedemption(ctx context.Context, tok string) (*domain.InviteForRedemption, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return resolveInvite(ctx, s.inviteRepo, s.eventRepo, s.fieldRepo, tok, s.now())
}

// resolveInvite loads a redeemable invite with its event and ordered fields.
func resolveInvite(ctx context.Context, invites domain.InviteRepository, events domain.EventRepository, fields domain.RegistrationFieldRepository, tok string, now time.Time) (*domain.InviteForRedemption, error) {
	if tok == "" {
		return nil, domain.ErrInviteNotFound
	}
	inv, err := invites.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, domain.ErrInviteNotFound) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if err := inv.RedeemableAt(now); err != nil {
		return nil, err
	}
	event, err := events.GetByID(ctx, inv.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	list, err := fields.ListByEventID(ctx, inv.EventID)
	if err != nil {
		return nil, fmt.Errorf("list registration fields: %w", err)
	}
	return &domain.InviteForRedemption{Invite: inv, Event: event, Fields: list}, nil
}

func (s *inviteService) DeliverPending(ctx context.Context) (int, error) {
	now := s.now()
	pending, err := s.inviteRepo.ListPendingDelivery(ctx, now.Add(-s.cfg.SweepGrace), now, s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending invites: %w", err)
	}
	var errs error
	sent := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		dctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
		err := s.deliver(dctx, p)
		cancel()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invite %s: %w", p.Invite.ID, err))
			continue
		}
		sent++
	}
	return sent, errs
}
