// @title Guestpass API
// @version 1.0
// @description Private event invitations, registration and QR check-in.
// @BasePath /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"guestpass/config"
	_ "guestpass/docs"
	"guestpass/internal/adapters/auth"
	"guestpass/internal/adapters/email"
	"guestpass/internal/adapters/qr"
	httpDelivery "guestpass/internal/delivery/http"
	"guestpass/internal/delivery/http/controllers"
	"guestpass/internal/delivery/http/middleware"
	"guestpass/internal/repository/postgres"
	"guestpass/internal/services"
)

const (
	shutdownTimeout = 15 * time.Second
	qrSize          = 512
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger()
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.ApplySchema(ctx, db); err != nil {
		return err
	}
	logger.Info("database ready")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	fieldRepo := postgres.NewRegistrationFieldRepository(db)
	inviteRepo := postgres.NewInviteRepository(db)
	attendeeRepo := postgres.NewAttendeeRepository(db)

	// Email
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("email templates: %w", err)
	}
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	emailService := services.NewEmailService(mailer, renderer, qr.NewGenerator(qrSize), logger)

	// Services
	jwt := auth.NewJWT(cfg.JWTSecret)
	userService := services.NewUserService(userRepo, roleRepo, auth.NewBcryptHasher(bcrypt.DefaultCost), jwt, cfg.JWTExpiry)
	eventService := services.NewEventService(eventRepo, fieldRepo, attendeeRepo, cfg.RequestTimeout)
	inviteService := services.NewInviteService(inviteRepo, eventRepo, fieldRepo, emailService, services.InviteConfig{
		AppURL:  cfg.AppURL,
		TTL:     cfg.InviteTTL,
		Timeout: cfg.RequestTimeout,
	}, logger)
	registrationService := services.NewRegistrationService(inviteRepo, eventRepo, fieldRepo, attendeeRepo, emailService, services.RegistrationConfig{
		AppURL:  cfg.AppURL,
		Timeout: cfg.RequestTimeout,
	}, logger)
	checkInService := services.NewCheckInService(eventRepo, attendeeRepo, cfg.RequestTimeout)

	sweeper := services.NewInviteSweeper(inviteService, logger, services.WithSweepSchedule(cfg.InviteSweepSchedule))
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("invite sweeper: %w", err)
	}
	defer func() { <-sweeper.Stop().Done() }()

	router := httpDelivery.NewRouter(httpDelivery.RouterConfig{
		Logger:               logger,
		Verifier:             jwt,
		AdminSecret:          cfg.AdminSecret,
		RatePerMinute:        cfg.RateLimitPerMinute,
		CheckInRatePerMinute: cfg.CheckInRateLimitPerMinute,
		Auth:                 controllers.NewAuthController(logger, userService),
		Events:               controllers.NewEventController(logger, eventService),
		Invites:              controllers.NewInviteController(logger, inviteService, registrationService),
		CheckIns:             controllers.NewCheckInController(logger, checkInService),
	})
	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.CORSAllowedOrigins, router))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
