package services

import (
	"context"
	"fmt"
	"log/slog"

	"guestpass/internal/domain"
	"guestpass/internal/metrics"
)

const (
	templateInvite                = "invite"
	templateRegistrationConfirmed = "registration_confirmed"

	qrContentID = "qr-code"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	qr       domain.QRGenerator
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that renders templates and sends them through mailer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, qr domain.QRGenerator, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, qr: qr, logger: logger}
}

// SendInvite sends the invitation email with the registration link.
func (s *emailService) SendInvite(ctx context.Context, data *domain.InviteEmailData) error {
	if data == nil {
		return fmt.Errorf("invite email data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render(templateInvite, data)
	if err != nil {
		return fmt.Errorf("failed to render invite template: %w", err)
	}
	msg := &domain.EmailMessage{To: data.Email, Subject: subject, HTML: htmlBody, Text: textBody}
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.EmailDeliveries.WithLabelValues(templateInvite, "failure").Inc()
		return fmt.Errorf("failed to send invite email: %w", err)
	}
	metrics.EmailDeliveries.WithLabelValues(templateInvite, "success").Inc()
	s.logger.InfoContext(ctx, "invite email sent", "to", data.Email)
	return nil
}

// SendRegistrationConfirmation sends the confirmation email with the check-in QR code inline.
func (s *emailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationEmailData) error {
	if data == nil {
		return fmt.Errorf("registration email data is nil")
	}
	png, err := s.qr.PNG(data.CheckInURL)
	if err != nil {
		metrics.EmailDeliveries.WithLabelValues(templateRegistrationConfirmed, "failure").Inc()
		return fmt.Errorf("failed to render qr code: %w", err)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(templateRegistrationConfirmed, data)
	if err != nil {
		return fmt.Errorf("failed to render registration template: %w", err)
	}
	msg := &domain.EmailMessage{
		To:      data.Email,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
		Attachments: []domain.Attachment{{
			Filename:    qrContentID + ".png",
			ContentType: "image/png",
			ContentID:   qrContentID,
			Data:        png,
		}},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.EmailDeliveries.WithLabelValues(templateRegistrationConfirmed, "failure").Inc()
		return fmt.Errorf("failed to send registration email: %w", err)
	}
	metrics.EmailDeliveries.WithLabelValues(templateRegistrationConfirmed, "success").Inc()
	s.logger.InfoContext(ctx, "registration email sent", "to", data.Email)
	return nil
}
