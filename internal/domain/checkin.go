package domain

import (
	"context"
	"time"
)

// CheckInStatus is the outcome of an accepted scan.
type CheckInStatus string

const (
	CheckInAdmitted        CheckInStatus = "checked_in"
	CheckInAlreadyAdmitted CheckInStatus = "already_checked_in"
)

// CheckIn is the audit record of an admission.
type CheckIn struct {
	ID         string    `json:"id"`
	AttendeeID string    `json:"attendee_id"`
	OperatorID string    `json:"operator_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CheckInResult is returned for every scan that resolves to an attendee.
// swagger:model CheckInResult
type CheckInResult struct {
	Status       CheckInStatus `json:"status"`
	AttendeeID   string        `json:"attendee_id"`
	AttendeeName string        `json:"attendee_name"`
	CheckedInAt  time.Time     `json:"checked_in_at"`
}

// CheckInService admits attendees at the door.
type CheckInService interface {
	// CheckIn decodes raw (a token or a check-in URL) and admits the attendee of eventID.
	// It returns *NotYetOpenError before the event start without decoding raw.
	CheckIn(ctx context.Context, op Operator, eventID, raw string) (*CheckInResult, error)
}
