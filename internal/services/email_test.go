package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpass/internal/domain"
)

type fakeMailer struct {
	sent []*domain.EmailMessage
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg *domain.EmailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeRenderer struct {
	rendered []string
}

func (f *fakeRenderer) Render(name string, data any) (string, string, string, error) {
	f.rendered = append(f.rendered, name)
	return "subject:" + name, "<p>" + name + "</p>", name, nil
}

type fakeQR struct {
	content string
	err     error
}

func (f *fakeQR) PNG(content string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.content = content
	return []byte("png:" + content), nil
}

func TestEmailService_SendInvite(t *testing.T) {
	mailer := &fakeMailer{}
	renderer := &fakeRenderer{}
	svc := NewEmailService(mailer, renderer, &fakeQR{}, testLogger())

	err := svc.SendInvite(context.Background(), &domain.InviteEmailData{Email: "a@b.com", EventName: "Gala", InviteURL: "https://x/invite/t"})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@b.com", mailer.sent[0].To)
	assert.Equal(t, "subject:invite", mailer.sent[0].Subject)
	assert.Empty(t, mailer.sent[0].Attachments)
	assert.Equal(t, []string{"invite"}, renderer.rendered)

	assert.Error(t, svc.SendInvite(context.Background(), nil))
}

func TestEmailService_SendRegistrationConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	qr := &fakeQR{}
	svc := NewEmailService(mailer, &fakeRenderer{}, qr, testLogger())

	err := svc.SendRegistrationConfirmation(context.Background(), &domain.RegistrationEmailData{
		Email:      "jane@x.com",
		FullName:   "Jane Doe",
		EventName:  "Gala",
		StartAt:    time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC),
		CheckInURL: "https://x/checkin/qr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://x/checkin/qr-1", qr.content)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "qr-code", msg.Attachments[0].ContentID)
	assert.Equal(t, "image/png", msg.Attachments[0].ContentType)
	assert.Equal(t, []byte("png:https://x/checkin/qr-1"), msg.Attachments[0].Data)
}

func TestEmailService_Failures(t *testing.T) {
	data := &domain.RegistrationEmailData{Email: "jane@x.com", CheckInURL: "https://x/checkin/qr-1"}

	qrFail := NewEmailService(&fakeMailer{}, &fakeRenderer{}, &fakeQR{err: errors.New("too long")}, testLogger())
	assert.Error(t, qrFail.SendRegistrationConfirmation(context.Background(), data))

	sendFail := NewEmailService(&fakeMailer{err: errors.New("rejected")}, &fakeRenderer{}, &fakeQR{}, testLogger())
	err := sendFail.SendRegistrationConfirmation(context.Background(), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
