// Package auth holds the credential verifier and the session manager, plus
// the context helpers the HTTP gate uses to hand the verified caller to
// handlers.
package auth

import (
	"context"
	"errors"
)

var (
	ErrMalformedToken = errors.New("auth: malformed token")
	ErrWeakPassword   = errors.New("auth: password does not meet the strength policy")
)

// Payload is the identity carried inside a session token.
type Payload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type ctxKeyPayload struct{}

func WithPayload(ctx context.Context, p Payload) context.Context {
	return context.WithValue(ctx, ctxKeyPayload{}, p)
}

func PayloadFrom(ctx context.Context) (Payload, bool) {
	p, ok := ctx.Value(ctxKeyPayload{}).(Payload)
	return p, ok && p.UserID != ""
}

// UserIDFrom returns the verified caller id, or "" for anonymous requests.
func UserIDFrom(ctx context.Context) string {
	p, _ := PayloadFrom(ctx)
	return p.UserID
}
