package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"guestpass/internal/delivery/http/controllers"
	"guestpass/internal/delivery/http/middleware"
	"guestpass/internal/domain"
)

// RouterConfig holds the collaborators and settings for NewRouter.
type RouterConfig struct {
	Logger      *slog.Logger
	Verifier    domain.TokenVerifier
	AdminSecret string
	// RatePerMinute limits the public invite endpoints and login per client IP.
	RatePerMinute int
	// CheckInRatePerMinute limits check-in calls per client IP; door devices scan in bursts.
	CheckInRatePerMinute int

	Auth     *controllers.AuthController
	Events   *controllers.EventController
	Invites  *controllers.InviteController
	CheckIns *controllers.CheckInController
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.Verifier, cfg.Logger)
	organizerOnly := middleware.RequireRole(domain.RoleOrganizer)
	organizer := func(next http.HandlerFunc) http.HandlerFunc { return auth(organizerOnly(next)) }
	admin := middleware.RequireAdminSecret(cfg.AdminSecret)
	limit := middleware.RateLimitByIP(cfg.RatePerMinute)
	scanLimit := middleware.RateLimitByIP(cfg.CheckInRatePerMinute)

	// Auth
	mux.HandleFunc("POST /auth/login", limit(cfg.Auth.Login))
	mux.HandleFunc("POST /admin/users", admin(cfg.Auth.CreateUser))
	mux.HandleFunc("GET /users/me", auth(cfg.Auth.GetMe))

	// Events
	mux.HandleFunc("POST /events", organizer(cfg.Events.CreateEvent))
	mux.HandleFunc("GET /events", organizer(cfg.Events.ListEvents))
	mux.HandleFunc("GET /events/{eventID}", organizer(cfg.Events.GetEvent))
	mux.HandleFunc("DELETE /events/{eventID}", organizer(cfg.Events.DeleteEvent))
	mux.HandleFunc("GET /events/{eventID}/registration-fields", organizer(cfg.Events.ListRegistrationFields))
	mux.HandleFunc("POST /events/{eventID}/registration-fields", organizer(cfg.Events.AddRegistrationField))
	mux.HandleFunc("GET /events/{eventID}/attendees", organizer(cfg.Events.ListAttendees))

	// Invites
	mux.HandleFunc("GET /events/{eventID}/invites", organizer(cfg.Invites.ListInvites))
	mux.HandleFunc("POST /events/{eventID}/invites", organizer(cfg.Invites.CreateInvite))

	// Check-in
	mux.HandleFunc("POST /events/{eventID}/checkins", scanLimit(organizer(cfg.CheckIns.CheckIn)))

	// Public invite flow
	mux.HandleFunc("GET /invites/{token}", limit(cfg.Invites.GetInvite))
	mux.HandleFunc("POST /invites/{token}/registrations", limit(cfg.Invites.SubmitRegistration))

	mux.Handle("GET /metrics", promhttp.Handler())

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
