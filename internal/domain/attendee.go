package domain

import (
	"context"
	"time"
)

// Attendee is a person who redeemed an invite. Token is the invite token and is the check-in credential.
// swagger:model Attendee
type Attendee struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	InviteID     string     `json:"invite_id"`
	Token        string     `json:"token"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Age          *int       `json:"age,omitempty"`
	Gender       *string    `json:"gender,omitempty"`
	Dietary      *string    `json:"dietary,omitempty"`
	TableLabel   *string    `json:"table_label,omitempty"`
	RegisteredAt time.Time  `json:"registered_at"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
}

// CheckedIn reports whether the attendee has been admitted.
func (a *Attendee) CheckedIn() bool {
	return a.CheckedInAt != nil
}

// Profile holds the fixed personal fields of a registration. Pointer fields are optional.
type Profile struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	Age      *int    `json:"age,omitempty"`
	Gender   *string `json:"gender,omitempty"`
	Dietary  *string `json:"dietary,omitempty"`
	Table    *string `json:"table,omitempty"`
}

// RegistrationAnswer is one attendee's answer to one registration field.
// swagger:model RegistrationAnswer
type RegistrationAnswer struct {
	ID         string      `json:"id"`
	AttendeeID string      `json:"attendee_id"`
	FieldID    string      `json:"field_id"`
	Value      AnswerValue `json:"value" swaggertype:"object"`
}

// Registration is the result of a successful redemption.
// swagger:model Registration
type Registration struct {
	Attendee *Attendee             `json:"attendee"`
	Answers  []*RegistrationAnswer `json:"answers"`
}

// AttendeeStatus filters the attendee list by check-in state.
type AttendeeStatus string

const (
	AttendeeStatusAll          AttendeeStatus = ""
	AttendeeStatusCheckedIn    AttendeeStatus = "checked-in"
	AttendeeStatusNotCheckedIn AttendeeStatus = "not-checked-in"
)

// ParseAttendeeStatus maps a query value to a filter; unknown values mean no filter.
func ParseAttendeeStatus(s string) AttendeeStatus {
	switch AttendeeStatus(s) {
	case AttendeeStatusCheckedIn, AttendeeStatusNotCheckedIn:
		return AttendeeStatus(s)
	}
	return AttendeeStatusAll
}

// AttendeeFilter narrows the attendee list. Search matches name, email or phone case-insensitively.
type AttendeeFilter struct {
	Status AttendeeStatus
	Search string
}

// AttendeeWithAnswers is an attendee row of the organizer's attendee list.
// swagger:model AttendeeWithAnswers
type AttendeeWithAnswers struct {
	Attendee
	Answers []*RegistrationAnswer `json:"answers"`
}

// AttendeeCounts are the unfiltered totals shown above the attendee list.
// swagger:model AttendeeCounts
type AttendeeCounts struct {
	Total        int `json:"total"`
	CheckedIn    int `json:"checked_in"`
	NotCheckedIn int `json:"not_checked_in"`
}

// AttendeePage is one page of the filtered attendee list.
// swagger:model AttendeePage
type AttendeePage struct {
	Items  []*AttendeeWithAnswers `json:"items"`
	Total  int                    `json:"total"`
	Counts AttendeeCounts         `json:"counts"`
}

// AttendeeRepository defines storage operations for attendees, answers and check-ins.
type AttendeeRepository interface {
	// Register atomically marks the invite USED at usedAt, inserts the attendee and its answers.
	// It returns ErrInviteAlreadyUsed or ErrInviteExpired and persists nothing when the invite
	// is no longer redeemable at usedAt.
	Register(ctx context.Context, invite *Invite, a *Attendee, answers []*RegistrationAnswer, usedAt time.Time) error
	GetByTokenAndEvent(ctx context.Context, token, eventID string) (*Attendee, error)
	// MarkCheckedIn sets checked_in_at and records a check-in row in one transaction.
	// When the attendee was already checked in it returns false and the stored timestamp.
	MarkCheckedIn(ctx context.Context, attendeeID, operatorID string, at time.Time) (checkedIn bool, checkedInAt time.Time, err error)
	ListByEvent(ctx context.Context, eventID string, filter AttendeeFilter, params PaginationParams) ([]*Attendee, int, error)
	ListAnswersByAttendeeIDs(ctx context.Context, attendeeIDs []string) ([]*RegistrationAnswer, error)
	CountByEvent(ctx context.Context, eventID string) (*AttendeeCounts, error)
}

// RegistrationService redeems invites into attendee registrations.
type RegistrationService interface {
	SubmitRegistration(ctx context.Context, token string, profile Profile, answers map[string]AnswerInput) (*Registration, error)
}
