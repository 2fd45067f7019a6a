package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpass/internal/domain"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type rangeBody struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (b rangeBody) Validate() []string {
	if b.To < b.From {
		return []string{"to must not be before from"}
	}
	return nil
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) *APIError {
	t.Helper()
	var env APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return env.Error
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		dest    func() any
		ok      bool
		message string
	}{
		{name: "valid", body: `{"email":"a@b.com","password":"x"}`, dest: func() any { return &loginBody{} }, ok: true},
		{name: "malformed", body: `{"email":`, dest: func() any { return &loginBody{} }},
		{name: "unknown field", body: `{"email":"a@b.com","password":"x","role":"admin"}`, dest: func() any { return &loginBody{} }},
		{name: "missing password", body: `{"email":"a@b.com"}`, dest: func() any { return &loginBody{} }, message: "password is required"},
		{name: "bad email", body: `{"email":"nope","password":"x"}`, dest: func() any { return &loginBody{} }, message: "email must be a valid email"},
		{name: "validator interface", body: `{"from":3,"to":1}`, dest: func() any { return &rangeBody{} }, message: "to must not be before from"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			got := DecodeAndValidate(rr, req, tt.dest())
			assert.Equal(t, tt.ok, got)
			if tt.ok {
				return
			}
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			apiErr := decodeError(t, rr)
			assert.Equal(t, ErrCodeBadRequest, apiErr.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, apiErr.Message)
			}
		})
	}
}

func TestWriteJSONErrorDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSONErrorDetails(rr, http.StatusForbidden, ErrCodeNotYetOpen, "closed", map[string]any{"starts_at": "2026-06-01T19:00:00Z"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	apiErr := decodeError(t, rr)
	assert.Equal(t, ErrCodeNotYetOpen, apiErr.Code)
	assert.Equal(t, "2026-06-01T19:00:00Z", apiErr.Details["starts_at"])
}

func TestParsePaginationAndFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&page_size=1000&status=checked-in&search=%20jane%20", nil)
	p := ParsePagination(req)
	assert.Equal(t, domain.PaginationParams{Page: 3, PageSize: MaxPageSize}, p)
	f := ParseAttendeeFilter(req)
	assert.Equal(t, domain.AttendeeStatusCheckedIn, f.Status)
	assert.Equal(t, "jane", f.Search)

	req = httptest.NewRequest(http.MethodGet, "/?page=-1&page_size=abc&status=bogus", nil)
	assert.Equal(t, domain.PaginationParams{Page: DefaultPage, PageSize: DefaultPageSize}, ParsePagination(req))
	assert.Equal(t, domain.AttendeeStatusAll, ParseAttendeeFilter(req).Status)

	meta := NewPaginationMeta(domain.PaginationParams{Page: 2, PageSize: 20}, 41)
	assert.Equal(t, 3, meta.TotalPages)
}
