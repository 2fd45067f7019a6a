package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	h "guestpass/internal/delivery/http/helpers"
	"guestpass/internal/domain"
)

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Name     string    `json:"name" validate:"required,max=200"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Location *string   `json:"location"`
}

// Validate implements helpers.Validator.
func (c CreateEventRequest) Validate() []string {
	var errs []string
	if c.StartAt.IsZero() {
		errs = append(errs, "start_at is required")
	}
	if c.EndAt.IsZero() {
		errs = append(errs, "end_at is required")
	}
	if len(errs) == 0 && c.EndAt.Before(c.StartAt) {
		errs = append(errs, "end_at must not be before start_at")
	}
	return errs
}

// CreateFieldRequest is the request body for POST /events/{eventID}/registration-fields.
type CreateFieldRequest struct {
	Label    string   `json:"label" validate:"required,max=200"`
	Type     string   `json:"type" validate:"required"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}

// AttendeeListResponse is the response body for GET /events/{eventID}/attendees.
type AttendeeListResponse struct {
	Items      []*domain.AttendeeWithAnswers `json:"items"`
	Counts     domain.AttendeeCounts         `json:"counts"`
	Pagination h.PaginationMeta              `json:"pagination"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewEventController(logger *slog.Logger, svc domain.EventService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
	}
}

func (c *EventController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.WriteJSONError(w, http.StatusNotFound, h.ErrCodeNotFound, "event not found")
	case errors.Is(err, domain.ErrInvalidInput):
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, err.Error())
	default:
		internalError(c.Logger, w, r, err)
	}
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates a private event owned by the authenticated organizer.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} helpers.APIResponse "data contains the created event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	event, err := c.Service.CreateEvent(r.Context(), op, domain.CreateEventInput{
		Name:     req.Name,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		Location: req.Location,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, event)
}

// ListEvents godoc
// @Summary List my events
// @Description Lists events owned by the authenticated organizer with attendee counts, soonest first.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the events"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [get]
func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	events, err := c.Service.ListEvents(r.Context(), op)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, events)
}

// GetEvent godoc
// @Summary Get an event
// @Description Returns the event with invite, attendee and check-in statistics.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse "data contains event and stats"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	detail, err := c.Service.GetEvent(r.Context(), op, eventID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, detail)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Deletes the event with its fields, invites, attendees and check-ins.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	if err := c.Service.DeleteEvent(r.Context(), op, eventID); err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, map[string]string{"id": eventID})
}

// AddRegistrationField godoc
// @Summary Add a registration field
// @Description Appends a custom question to the event's registration form. DROPDOWN and CHECKBOX fields need options.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param field body CreateFieldRequest true "Field definition"
// @Success 201 {object} helpers.APIResponse "data contains the field"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registration-fields [post]
func (c *EventController) AddRegistrationField(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	var req CreateFieldRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	field, err := c.Service.AddRegistrationField(r.Context(), op, eventID, domain.CreateFieldInput{
		Label:    req.Label,
		Kind:     req.Type,
		Required: req.Required,
		Options:  req.Options,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, field)
}

// ListRegistrationFields godoc
// @Summary List registration fields
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse "data contains the fields in display order"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registration-fields [get]
func (c *EventController) ListRegistrationFields(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	fields, err := c.Service.ListRegistrationFields(r.Context(), op, eventID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, fields)
}

// ListAttendees godoc
// @Summary List attendees
// @Description Paginated attendee list with answers. Filter with status=checked-in|not-checked-in and search (name, email, phone).
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param status query string false "checked-in or not-checked-in"
// @Param search query string false "Search text"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 50, max 200)"
// @Success 200 {object} controllers.AttendeeListResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/attendees [get]
func (c *EventController) ListAttendees(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	op, ok := requireOperator(w, r)
	if !ok {
		return
	}
	params := h.ParsePagination(r)
	page, err := c.Service.ListAttendees(r.Context(), op, eventID, h.ParseAttendeeFilter(r), params)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, AttendeeListResponse{
		Items:      page.Items,
		Counts:     page.Counts,
		Pagination: h.NewPaginationMeta(params, page.Total),
	})
}
