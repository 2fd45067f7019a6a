package domain

import (
	"context"
	"time"
)

// InviteStatus is the lifecycle state of an invitation. It only advances CREATED -> SENT -> USED.
type InviteStatus string

const (
	InviteCreated InviteStatus = "CREATED"
	InviteSent    InviteStatus = "SENT"
	InviteUsed    InviteStatus = "USED"
)

// Invite is a single-use emailed credential granting access to an event's registration form.
// swagger:model Invite
type Invite struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	Token     string       `json:"token"`
	Email     string       `json:"email"`
	Status    InviteStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	UsedAt    *time.Time   `json:"used_at,omitempty"`
}

// NewInvite returns a CREATED invite. ID is typically set by the repository on create.
func NewInvite(eventID, token, email string, createdAt time.Time, expiresAt *time.Time) *Invite {
	return &Invite{
		EventID:   eventID,
		Token:     token,
		Email:     email,
		Status:    InviteCreated,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
}

// ExpiredAt reports whether the invite has an expiry strictly before now.
func (i *Invite) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// RedeemableAt returns nil if the invite may still be redeemed at now.
func (i *Invite) RedeemableAt(now time.Time) error {
	if i.Status == InviteUsed {
		return ErrInviteAlreadyUsed
	}
	if i.ExpiredAt(now) {
		return ErrInviteExpired
	}
	return nil
}

// InviteForRedemption is a redeemable invite with its event and ordered form fields.
// swagger:model InviteForRedemption
type InviteForRedemption struct {
	Invite *Invite              `json:"invite"`
	Event  *Event               `json:"event"`
	Fields []*RegistrationField `json:"fields"`
}

// PendingInvite is an invite waiting for email delivery, with the event name needed to render it.
type PendingInvite struct {
	Invite    *Invite
	EventName string
}

// InviteRepository defines storage operations for invites.
type InviteRepository interface {
	Create(ctx context.Context, inv *Invite) error
	GetByToken(ctx context.Context, token string) (*Invite, error)
	ListByEventID(ctx context.Context, eventID string) ([]*Invite, error)
	// MarkSent advances CREATED -> SENT. It returns false when the invite was not in CREATED.
	MarkSent(ctx context.Context, id string) (bool, error)
	// ListPendingDelivery returns unexpired CREATED invites created before createdBefore, oldest first.
	ListPendingDelivery(ctx context.Context, createdBefore, now time.Time, limit int) ([]*PendingInvite, error)
}

// InviteService defines the invite lifecycle operations.
type InviteService interface {
	CreateInvite(ctx context.Context, op Operator, eventID, email string) (*Invite, error)
	ListInvites(ctx context.Context, op Operator, eventID string) ([]*Invite, error)
	ResolveInviteForRedemption(ctx context.Context, token string) (*InviteForRedemption, error)
	// DeliverPending re-sends invites still in CREATED and returns how many were sent.
	DeliverPending(ctx context.Context) (int, error)
}
