package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// fieldValidator checks single values such as email addresses.
var fieldValidator = validator.New()

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return fieldValidator.Var(email, "required,email") == nil
}

// runAsync starts fn in its own goroutine. Services hold it as a field so tests can run work inline.
func runAsync(fn func()) { go fn() }

// detached returns a context that outlives the request in ctx but is bounded by timeout.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
