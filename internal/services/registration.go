package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"guestpass/internal/domain"
	"guestpass/internal/metrics"
	"guestpass/internal/token"
)

// RegistrationConfig tunes invite redemption.
type RegistrationConfig struct {
	// AppURL is the public base URL encoded in check-in QR codes.
	AppURL          string
	Timeout         time.Duration
	DeliveryTimeout time.Duration
}

type registrationService struct {
	inviteRepo   domain.InviteRepository
	eventRepo    domain.EventRepository
	fieldRepo    domain.RegistrationFieldRepository
	attendeeRepo domain.AttendeeRepository
	emailService domain.EmailService
	cfg          RegistrationConfig
	logger       *slog.Logger
	now          func() time.Time
	async        func(func())
}

// NewRegistrationService returns a RegistrationService.
func NewRegistrationService(
	inviteRepo domain.InviteRepository,
	eventRepo domain.EventRepository,
	fieldRepo domain.RegistrationFieldRepository,
	attendeeRepo domain.AttendeeRepository,
	emailService domain.EmailService,
	cfg RegistrationConfig,
	logger *slog.Logger,
) domain.RegistrationService {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	return &registrationService{
		inviteRepo:   inviteRepo,
		eventRepo:    eventRepo,
		fieldRepo:    fieldRepo,
		attendeeRepo: attendeeRepo,
		emailService: emailService,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		async:        runAsync,
	}
}

func (s *registrationService) SubmitRegistration(ctx context.Context, tok string, profile domain.Profile, answers map[string]domain.AnswerInput) (*domain.Registration, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	reg, err := s.submit(ctx, tok, profile, answers)
	metrics.Redemptions.WithLabelValues(redemptionResult(err)).Inc()
	return reg, err
}

func (s *registrationService) submit(ctx context.Context, tok string, profile domain.Profile, answers map[string]domain.AnswerInput) (*domain.Registration, error) {
	resolved, err := resolveInvite(ctx, s.inviteRepo, s.eventRepo, s.fieldRepo, tok, s.now())
	if err != nil {
		return nil, err
	}

	attendee, staged, err := ValidateRegistration(resolved.Fields, profile, answers)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attendee.EventID = resolved.Event.ID
	attendee.Token = token.New()
	attendee.RegisteredAt = now
	if err := s.attendeeRepo.Register(ctx, resolved.Invite, attendee, staged, now); err != nil {
		switch {
		case errors.Is(err, domain.ErrInviteAlreadyUsed), errors.Is(err, domain.ErrInviteExpired), errors.Is(err, domain.ErrInviteNotFound):
			return nil, err
		}
		return nil, fmt.Errorf("register attendee: %w", err)
	}

	s.sendConfirmation(ctx, resolved.Event, attendee)
	return &domain.Registration{Attendee: attendee, Answers: staged}, nil
}

// sendConfirmation emails the QR pass after commit. Failures are logged and never undo the registration.
func (s *registrationService) sendConfirmation(ctx context.Context, event *domain.Event, a *domain.Attendee) {
	data := &domain.RegistrationEmailData{
		Email:      a.Email,
		FullName:   a.FullName,
		EventName:  event.Name,
		StartAt:    event.StartAt,
		Location:   event.Location,
		TableLabel: a.TableLabel,
		CheckInURL: token.CheckInURL(s.cfg.AppURL, a.Token),
	}
	attendeeID := a.ID
	s.async(func() {
		dctx, cancel := detached(ctx, s.cfg.DeliveryTimeout)
		defer cancel()
		if err := s.emailService.SendRegistrationConfirmation(dctx, data); err != nil {
			s.logger.ErrorContext(dctx, "registration confirmation failed", "attendee_id", attendeeID, "error", err)
		}
	})
}

func redemptionResult(err error) string {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return "validation_error"
	case errors.Is(err, domain.ErrInviteAlreadyUsed):
		return "invite_used"
	case errors.Is(err, domain.ErrInviteExpired):
		return "invite_expired"
	case errors.Is(err, domain.ErrInviteNotFound):
		return "invite_not_found"
	}
	return "error"
}

// ValidateRegistration checks the profile and coerces answers for fields, in field order.
// It returns the first failure as a *domain.ValidationError. Answers for unknown field IDs are ignored.
func ValidateRegistration(fields []*domain.RegistrationField, profile domain.Profile, answers map[string]domain.AnswerInput) (*domain.Attendee, []*domain.RegistrationAnswer, error) {
	var errs []*domain.ValidationError

	fullName := strings.TrimSpace(profile.FullName)
	email := normalizeEmail(profile.Email)
	phone := strings.TrimSpace(profile.Phone)
	if fullName == "" || email == "" || phone == "" {
		errs = append(errs, domain.NewValidationError("Full name, email, and phone are required"))
	} else if !validEmail(email) {
		errs = append(errs, domain.NewValidationError("Valid email is required"))
	}
	if profile.Age != nil && *profile.Age < 0 {
		errs = append(errs, domain.NewValidationError("Age must be a non-negative number"))
	}

	staged := make([]*domain.RegistrationAnswer, 0, len(fields))
	for _, f := range fields {
		in := answers[f.ID]
		if f.Kind == domain.FieldCheckbox {
			choices := in.Choices()
			if len(choices) == 0 {
				if f.Required {
					errs = append(errs, domain.NewValidationError("%s is required", f.Label))
				}
				continue
			}
			staged = append(staged, &domain.RegistrationAnswer{FieldID: f.ID, Value: domain.ChoicesAnswer(choices)})
			continue
		}

		text := in.Text()
		if text == "" {
			if f.Required {
				errs = append(errs, domain.NewValidationError("%s is required", f.Label))
			}
			continue
		}
		if f.Kind == domain.FieldNumber {
			n, err := strconv.ParseFloat(text, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				errs = append(errs, domain.NewValidationError("%s must be a number", f.Label))
				continue
			}
			staged = append(staged, &domain.RegistrationAnswer{FieldID: f.ID, Value: domain.NumberAnswer(n)})
			continue
		}
		staged = append(staged, &domain.RegistrationAnswer{FieldID: f.ID, Value: domain.TextAnswer(text)})
	}

	if len(errs) > 0 {
		return nil, nil, errs[0]
	}

	return &domain.Attendee{
		FullName:   fullName,
		Email:      email,
		Phone:      phone,
		Age:        profile.Age,
		Gender:     trimmedOrNil(profile.Gender),
		Dietary:    trimmedOrNil(profile.Dietary),
		TableLabel: trimmedOrNil(profile.Table),
	}, staged, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
