package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guestpass/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	fieldRepo      domain.RegistrationFieldRepository
	attendeeRepo   domain.AttendeeRepository
	contextTimeout time.Duration
	now            func() time.Time
}

func NewEventService(eventRepo domain.EventRepository,
	fieldRepo domain.RegistrationFieldRepository,
	attendeeRepo domain.AttendeeRepository,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		fieldRepo:      fieldRepo,
		attendeeRepo:   attendeeRepo,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, op domain.Operator, in domain.CreateEventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if op.ID == "" {
		return nil, fmt.Errorf("event owner is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || in.StartAt.IsZero() || in.EndAt.IsZero() {
		return nil, fmt.Errorf("name, start and end are required: %w", domain.ErrInvalidInput)
	}
	if in.EndAt.Before(in.StartAt) {
		return nil, fmt.Errorf("end must not be before start: %w", domain.ErrInvalidInput)
	}

	now := s.now()
	event := domain.NewEvent(op.ID, name, in.StartAt, in.EndAt, trimmedOrNil(in.Location), now, now)
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, op domain.Operator) ([]*domain.EventSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.eventRepo.ListByOwnerID(ctx, op.ID)
}

// ownedEvent returns ErrNotFound for events owned by someone else.
func (s *eventService) ownedEvent(ctx context.Context, op domain.Operator, eventID string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByIDForOwner(ctx, eventID, op.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, op domain.Operator, eventID string) (*domain.EventDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.ownedEvent(ctx, op, eventID)
	if err != nil {
		return nil, err
	}
	stats, err := s.eventRepo.GetStats(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &domain.EventDetail{Event: event, Stats: stats}, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, op domain.Operator, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, op, eventID); err != nil {
		return err
	}
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *eventService) AddRegistrationField(ctx context.Context, op domain.Operator, eventID string, in domain.CreateFieldInput) (*domain.RegistrationField, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	label := strings.TrimSpace(in.Label)
	kind, ok := domain.ParseFieldKind(in.Kind)
	if label == "" || !ok {
		return nil, fmt.Errorf("label and a valid type are required: %w", domain.ErrInvalidInput)
	}
	options := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	if kind.HasOptions() && len(options) == 0 {
		return nil, fmt.Errorf("options are required for %s fields: %w", kind, domain.ErrInvalidInput)
	}
	if !kind.HasOptions() {
		options = []string{}
	}

	event, err := s.ownedEvent(ctx, op, eventID)
	if err != nil {
		return nil, err
	}
	field := &domain.RegistrationField{
		EventID:   event.ID,
		Label:     label,
		Kind:      kind,
		Required:  in.Required,
		Options:   options,
		CreatedAt: s.now(),
	}
	if err := s.fieldRepo.Create(ctx, field); err != nil {
		return nil, fmt.Errorf("create registration field: %w", err)
	}
	return field, nil
}

func (s *eventService) ListRegistrationFields(ctx context.Context, op domain.Operator, eventID string) ([]*domain.RegistrationField, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, op, eventID); err != nil {
		return nil, err
	}
	fields, err := s.fieldRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registration fields: %w", err)
	}
	return fields, nil
}

func (s *eventService) ListAttendees(ctx context.Context, op domain.Operator, eventID string, filter domain.AttendeeFilter, params domain.PaginationParams) (*domain.AttendeePage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, op, eventID); err != nil {
		return nil, err
	}
	attendees, total, err := s.attendeeRepo.ListByEvent(ctx, eventID, filter, params)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	counts, err := s.attendeeRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count attendees: %w", err)
	}

	ids := make([]string, len(attendees))
	for i, a := range attendees {
		ids[i] = a.ID
	}
	answers, err := s.attendeeRepo.ListAnswersByAttendeeIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byAttendee := make(map[string][]*domain.RegistrationAnswer, len(attendees))
	for _, ans := range answers {
		byAttendee[ans.AttendeeID] = append(byAttendee[ans.AttendeeID], ans)
	}

	items := make([]*domain.AttendeeWithAnswers, len(attendees))
	for i, a := range attendees {
		list := byAttendee[a.ID]
		if list == nil {
			list = []*domain.RegistrationAnswer{}
		}
		items[i] = &domain.AttendeeWithAnswers{Attendee: *a, Answers: list}
	}
	return &domain.AttendeePage{Items: items, Total: total, Counts: *counts}, nil
}
