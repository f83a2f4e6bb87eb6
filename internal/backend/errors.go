package backend

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingUserID is returned before any request is sent when a user-scoped call has no user id.
	ErrMissingUserID = errors.New("backend: user_id is required")
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("backend: invalid credentials")
	// ErrUserExists is returned when registration hits an existing username.
	ErrUserExists = errors.New("backend: user already exists")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("backend: temporarily unavailable")
)

// StatusError is a non-2xx response that maps to no sentinel.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

type tokenKey struct{}

// WithToken attaches the session token forwarded as a bearer credential.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token set by WithToken, if any.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
