package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	h "guestpass/internal/delivery/http/helpers"
	"guestpass/internal/domain"
)

// CreateInviteRequest is the request body for POST /events/{eventID}/invites.
type CreateInviteRequest struct {
	Email string `json:"email" validate:"required"`
}

// RegistrationRequest is the request body for POST /invites/{token}/registrations.
// Answers are keyed by registration field ID; values are strings, numbers or lists.
type RegistrationRequest struct {
	FullName string                        `json:"full_name"`
	Email    string                        `json:"email"`
	Phone    string                        `json:"phone"`
	Age      *int                          `json:"age"`
	Gender   *string                       `json:"gender"`
	Dietary  *string                       `json:"dietary"`
	Table    *string                       `json:"table"`
	Answers  map[string]domain.AnswerInput `json:"answers" swaggertype:"object"`
}

// RegistrationResponse is returned after a successful registration. The check-in token
// is only delivered by email.
type RegistrationResponse struct {
	AttendeeID string `json:"attendee_id"`
	EventID    string `json:"event_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
}

// PublicInviteResponse is the registration form behind an invite link. It is served without
// authentication, so it carries no owner, token or status.
type PublicInviteResponse struct {
	Email     string        `json:"email"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Event     PublicEvent   `json:"event"`
	Fields    []PublicField `json:"fields"`
}

type PublicEvent struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Location *string   `json:"location,omitempty"`
}

type PublicField struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Kind     domain.FieldKind `json:"type"`
	Required bool             `json:"required"`
	Options  []string         `json:"options"`
}

func newPublicInviteResponse(in *domain.InviteForRedemption) PublicInviteResponse {
	resp := PublicInviteResponse{
		Email:     in.Invite.Email,
		ExpiresAt: in.Invite.ExpiresAt,
		Event: PublicEvent{
			ID:       in.Event.ID,
			Name:     in.Event.Name,
			StartAt:  in.Event.StartAt,
			EndAt:    in.Event.EndAt,
			Location: in.Event.Location,
		},
		Fields: make([]PublicField, 0, len(in.Fields)),
	}
	for _, f := range in.Fields {
		options := f.Options
		if options == nil {
			options = []string{}
		}
		resp.Fields = append(resp.Fields, PublicField{
			ID:       f.ID,
			Label:    f.Label,
			Kind:     f.Kind,
			Required: f.Required,
			Options:  options,
		})
	}
	return resp
}

type InviteController struct {
	Logger        *slog.Logger
	Invites       domain.InviteService
	Registrations domain.RegistrationService
}

func NewInviteController(logger *slog.Logger, invites domain.InviteService, registrations domain.RegistrationService) *InviteController {
	return &InviteController{
		Logger:        logger,
		Invites:       invites,
		Registrations: registrations,
	}
}

// writeRedemptionError maps invite state errors. Used and unknown invites are both 404; expiry is 410.
func (c *InviteController) writeRedemptionError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeValidation, verr.Message)
	case errors.Is(err, domain.ErrInviteAlreadyUsed):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeInviteUsed, "invite has already been used")
	case errors.Is(err, domain.ErrInviteExpired):
		h.WriteJSONError(w, http.StatusGone, h.ErrCodeInviteExpired, "invite has expired")
	case errors.Is(err, domain.ErrInviteNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeInviteNotFound, "invalid invite")
	default:
		internalError(c.Logger, w, r, err)
	}
}

// CreateInvite godoc
// @Summary Invite a guest
// @Description Creates an invite with a fresh token and emails the registration link in the background. Email failures do not fail the call; the invite stays CREATED and is retried by the delivery sweep.
// @Tags invites
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body CreateInviteRequest true "Guest email"
// @Success 201 {object} helpers.APIResponse "data contains the invite"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or invalid_email"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/invites [post]
func (c *InviteController) CreateInvite(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	var req CreateInviteRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	inv, err := c.Invites.CreateInvite(r.Context(), op, eventID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail):
			h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeInvalidEmail, "invalid email")
		case errors.Is(err, domain.ErrNotFound):
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "event not found")
		default:
			internalError(c.Logger, w, r, err)
		}
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, inv)
}

// ListInvites godoc
// @Summary List invites
// @Tags invites
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse "data contains invites, newest first"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/invites [get]
func (c *InviteController) ListInvites(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	invites, err := c.Invites.ListInvites(r.Context(), op, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "event not found")
			return
		}
		internalError(c.Logger, w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, invites)
}

// GetInvite godoc
// @Summary Open an invite
// @Description Public. Returns the event and its registration form for a redeemable invite token.
// @Tags public
// @Produce json
// @Param token path string true "Invite token"
// @Success 200 {object} helpers.APIResponse "data contains a controllers.PublicInviteResponse"
// @Failure 404 {object} helpers.APIResponse "error.code: invite_not_found or invite_used"
// @Failure 410 {object} helpers.APIResponse "error.code: invite_expired"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Router /invites/{token} [get]
func (c *InviteController) GetInvite(w http.ResponseWriter, r *http.Request) {
	tok, ok := pathParam(w, r, "token")
	if !ok {
		return
	}
	resolved, err := c.Invites.ResolveInviteForRedemption(r.Context(), tok)
	if err != nil {
		c.writeRedemptionError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, newPublicInviteResponse(resolved))
}

// SubmitRegistration godoc
// @Summary Register with an invite
// @Description Public. Validates the profile and answers, creates the attendee and marks the invite USED in one transaction. The QR pass is emailed afterwards.
// @Tags public
// @Accept json
// @Produce json
// @Param token path string true "Invite token"
// @Param body body RegistrationRequest true "Profile and answers"
// @Success 200 {object} helpers.APIResponse "data contains the registration summary"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or validation_error"
// @Failure 404 {object} helpers.APIResponse "error.code: invite_not_found or invite_used"
// @Failure 410 {object} helpers.APIResponse "error.code: invite_expired"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invites/{token}/registrations [post]
func (c *InviteController) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	tok, ok := pathParam(w, r, "token")
	if !ok {
		return
	}
	var req RegistrationRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Registrations.SubmitRegistration(r.Context(), tok, domain.Profile{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Age:      req.Age,
		Gender:   req.Gender,
		Dietary:  req.Dietary,
		Table:    req.Table,
	}, req.Answers)
	if err != nil {
		c.writeRedemptionError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, RegistrationResponse{
		AttendeeID: reg.Attendee.ID,
		EventID:    reg.Attendee.EventID,
		FullName:   reg.Attendee.FullName,
		Email:      reg.Attendee.Email,
	})
}
