package controllers

import (
	"log/slog"
	"net/http"

	h "guestpass/internal/delivery/http/helpers"
	"guestpass/internal/delivery/http/middleware"
	"guestpass/internal/domain"
)

// requireOperator reads the authenticated operator or writes 401.
func requireOperator(w http.ResponseWriter, r *http.Request) (domain.Operator, bool) {
	op, ok := middleware.OperatorFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
	}
	return op, ok
}

// pathParam reads a required path value or writes 400.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	if v == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	return v, true
}

// internalError logs err and writes a generic 500.
func internalError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "internal server error")
}
