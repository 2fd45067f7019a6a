package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guestpass/internal/domain"
	"guestpass/internal/metrics"
	"guestpass/internal/token"
)

type checkInService struct {
	eventRepo      domain.EventRepository
	attendeeRepo   domain.AttendeeRepository
	contextTimeout time.Duration
	now            func() time.Time
}

// NewCheckInService returns a CheckInService.
func NewCheckInService(eventRepo domain.EventRepository, attendeeRepo domain.AttendeeRepository, timeout time.Duration) domain.CheckInService {
	return &checkInService{
		eventRepo:      eventRepo,
		attendeeRepo:   attendeeRepo,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *checkInService) CheckIn(ctx context.Context, op domain.Operator, eventID, raw string) (*domain.CheckInResult, error) {
	if s.contextTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.contextTimeout)
		defer cancel()
	}

	res, err := s.checkIn(ctx, op, eventID, raw)
	metrics.CheckIns.WithLabelValues(checkInResult(res, err)).Inc()
	return res, err
}

func (s *checkInService) checkIn(ctx context.Context, op domain.Operator, eventID, raw string) (*domain.CheckInResult, error) {
	event, err := s.eventRepo.GetByIDForOwner(ctx, eventID, op.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	// The gate is checked before the payload is even decoded so nothing about attendees leaks early.
	now := s.now()
	if !event.IsOpen(now) {
		return nil, &domain.NotYetOpenError{StartsAt: event.StartAt}
	}

	tok := token.Extract(raw)
	if tok == "" {
		return nil, domain.ErrInvalidToken
	}

	attendee, err := s.attendeeRepo.GetByTokenAndEvent(ctx, tok, event.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAttendeeNotFound) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("get attendee: %w", err)
	}

	if attendee.CheckedInAt != nil {
		return &domain.CheckInResult{
			Status:       domain.CheckInAlreadyAdmitted,
			AttendeeID:   attendee.ID,
			AttendeeName: attendee.FullName,
			CheckedInAt:  *attendee.CheckedInAt,
		}, nil
	}

	first, at, err := s.attendeeRepo.MarkCheckedIn(ctx, attendee.ID, op.ID, now)
	if err != nil {
		if errors.Is(err, domain.ErrAttendeeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("check in attendee: %w", err)
	}
	status := domain.CheckInAdmitted
	if !first {
		status = domain.CheckInAlreadyAdmitted
	}
	return &domain.CheckInResult{
		Status:       status,
		AttendeeID:   attendee.ID,
		AttendeeName: attendee.FullName,
		CheckedInAt:  at,
	}, nil
}

func checkInResult(res *domain.CheckInResult, err error) string {
	var notOpen *domain.NotYetOpenError
	switch {
	case err == nil:
		return string(res.Status)
	case errors.As(err, &notOpen):
		return "not_yet_open"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrAttendeeNotFound), errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}
