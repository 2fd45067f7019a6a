package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	h "guestpass/internal/delivery/http/helpers"
	"guestpass/internal/domain"
)

// CheckInRequest is the request body for POST /events/{eventID}/checkins. Token may be a bare
// token, a scanned check-in URL or a pasted link.
type CheckInRequest struct {
	Token string `json:"token"`
}

const maxCheckInBody = 64 << 10

type CheckInController struct {
	Logger  *slog.Logger
	Service domain.CheckInService
}

func NewCheckInController(logger *slog.Logger, svc domain.CheckInService) *CheckInController {
	return &CheckInController{
		Logger:  logger,
		Service: svc,
	}
}

// CheckIn godoc
// @Summary Check in an attendee
// @Description Admits the attendee holding the token. Repeat scans return already_checked_in with the original time. Before the event starts every attempt is refused with 403 and error.details.starts_at, whatever the body. A missing or unreadable token is invalid_token.
// @Tags checkins
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body CheckInRequest true "Scanned or typed token"
// @Success 200 {object} helpers.APIResponse "data contains status, attendee_name and checked_in_at"
// @Failure 400 {object} helpers.APIResponse "error.code: invalid_token"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: not_yet_open or forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/checkins [post]
func (c *CheckInController) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	// An unreadable body is an empty token: the start gate in the service answers before it.
	var req CheckInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckInBody)).Decode(&req); err != nil {
		req.Token = ""
	}
	res, err := c.Service.CheckIn(r.Context(), op, eventID, req.Token)
	if err != nil {
		var notOpen *domain.NotYetOpenError
		switch {
		case errors.As(err, &notOpen):
			h.WriteJSONErrorDetails(w, http.StatusForbidden, h.ErrCodeNotYetOpen, notOpen.Error(), map[string]any{
				"starts_at": notOpen.StartsAt.UTC().Format(time.RFC3339),
			})
		case errors.Is(err, domain.ErrInvalidToken):
			h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeInvalidToken, "token is required")
		case errors.Is(err, domain.ErrAttendeeNotFound):
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "attendee not found for this event")
		case errors.Is(err, domain.ErrNotFound):
			h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "event not found")
		default:
			internalError(c.Logger, w, r, err)
		}
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, res)
}
