package domain

import (
	"context"
	"time"
)

// Attachment is a file attached to an email. ContentID makes it referable inline as cid:<ContentID>.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// EmailMessage is a rendered email ready for delivery.
type EmailMessage struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// QRGenerator renders content as a PNG QR code.
type QRGenerator interface {
	PNG(content string) ([]byte, error)
}

// InviteEmailData holds data for the invitation email.
type InviteEmailData struct {
	Email     string
	EventName string
	InviteURL string
	ExpiresAt *time.Time
}

// RegistrationEmailData holds data for the registration confirmation email.
type RegistrationEmailData struct {
	Email      string
	FullName   string
	EventName  string
	StartAt    time.Time
	Location   *string
	TableLabel *string
	CheckInURL string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendInvite(ctx context.Context, data *InviteEmailData) error
	// SendRegistrationConfirmation attaches a QR code of CheckInURL to the email.
	SendRegistrationConfirmation(ctx context.Context, data *RegistrationEmailData) error
}
