package domain

import (
	"context"
	"time"
)

// Event represents a private event owned by an organizer.
// swagger:model Event
type Event struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Location  *string   `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(ownerID, name string, startAt, endAt time.Time, location *string, createdAt, updatedAt time.Time) *Event {
	return &Event{
		OwnerID:   ownerID,
		Name:      name,
		StartAt:   startAt,
		EndAt:     endAt,
		Location:  location,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// IsOpen reports whether check-in is allowed at now. The gate opens at StartAt inclusive.
func (e *Event) IsOpen(now time.Time) bool {
	return !e.StartAt.After(now)
}

// EventSummary is an event with its attendee count, as shown in the organizer's event list.
// swagger:model EventSummary
type EventSummary struct {
	Event
	AttendeeCount int `json:"attendee_count"`
}

// EventStats aggregates the lifecycle counters of one event.
// swagger:model EventStats
type EventStats struct {
	InvitesTotal       int `json:"invites_total"`
	InvitesUsed        int `json:"invites_used"`
	Attendees          int `json:"attendees"`
	CheckedIn          int `json:"checked_in"`
	NotCheckedIn       int `json:"not_checked_in"`
	RegistrationFields int `json:"registration_fields"`
}

// EventDetail bundles an event with its statistics.
// swagger:model EventDetail
type EventDetail struct {
	Event *Event      `json:"event"`
	Stats *EventStats `json:"stats"`
}

// CreateEventInput holds the organizer-supplied fields of a new event.
type CreateEventInput struct {
	Name     string
	StartAt  time.Time
	EndAt    time.Time
	Location *string
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	// GetByIDForOwner returns ErrNotFound when the event does not exist or belongs to another owner.
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*Event, error)
	ListByOwnerID(ctx context.Context, ownerID string) ([]*EventSummary, error)
	GetStats(ctx context.Context, eventID string) (*EventStats, error)
	// Delete removes the event together with every owned row in one transaction.
	Delete(ctx context.Context, id string) error
}

// EventService defines organizer-facing event management.
type EventService interface {
	CreateEvent(ctx context.Context, op Operator, in CreateEventInput) (*Event, error)
	ListEvents(ctx context.Context, op Operator) ([]*EventSummary, error)
	GetEvent(ctx context.Context, op Operator, eventID string) (*EventDetail, error)
	DeleteEvent(ctx context.Context, op Operator, eventID string) error
	AddRegistrationField(ctx context.Context, op Operator, eventID string, in CreateFieldInput) (*RegistrationField, error)
	ListRegistrationFields(ctx context.Context, op Operator, eventID string) ([]*RegistrationField, error)
	ListAttendees(ctx context.Context, op Operator, eventID string, filter AttendeeFilter, params PaginationParams) (*AttendeePage, error)
}
