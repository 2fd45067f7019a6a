package domain

import (
	"context"
	"strings"
	"time"
)

// FieldKind is the input type of a registration form field.
type FieldKind string

const (
	FieldText     FieldKind = "TEXT"
	FieldNumber   FieldKind = "NUMBER"
	FieldDropdown FieldKind = "DROPDOWN"
	FieldCheckbox FieldKind = "CHECKBOX"
)

// ParseFieldKind normalizes s and reports whether it names a known kind.
func ParseFieldKind(s string) (FieldKind, bool) {
	k := FieldKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case FieldText, FieldNumber, FieldDropdown, FieldCheckbox:
		return k, true
	}
	return "", false
}

// HasOptions reports whether the kind requires a list of options.
func (k FieldKind) HasOptions() bool {
	return k == FieldDropdown || k == FieldCheckbox
}

// RegistrationField is one question of an event's registration form.
// swagger:model RegistrationField
type RegistrationField struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Label     string    `json:"label"`
	Kind      FieldKind `json:"type"`
	Required  bool      `json:"required"`
	Options   []string  `json:"options"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateFieldInput holds the organizer-supplied definition of a new field.
type CreateFieldInput struct {
	Label    string
	Kind     string
	Required bool
	Options  []string
}

// RegistrationFieldRepository defines storage for registration fields. Fields are append-only.
type RegistrationFieldRepository interface {
	// Create inserts the field at the end of the event's form and sets ID, Order and CreatedAt.
	Create(ctx context.Context, field *RegistrationField) error
	// ListByEventID returns fields ordered by display order, then creation time.
	ListByEventID(ctx context.Context, eventID string) ([]*RegistrationField, error)
}
