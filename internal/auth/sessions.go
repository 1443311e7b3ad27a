package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenStore is the allow-list of issued tokens. store.Queries satisfies it,
// so Issue can run inside a transaction through IssueWith.
type TokenStore interface {
	SaveToken(ctx context.Context, token, userID string, expiresAt time.Time) error
	TokenExists(ctx context.Context, token string) (bool, error)
	DeleteToken(ctx context.Context, token string) error
}

// Recorder receives one event per session outcome: issued, verified,
// rejected or revoked.
type Recorder interface {
	SessionEvent(result string)
}

type claims struct {
	Payload
	jwt.RegisteredClaims
}

type Sessions struct {
	secret []byte
	ttl    time.Duration
	tokens TokenStore
	now    func() time.Time
	log    logrus.FieldLogger
	rec    Recorder
}

type Option func(*Sessions)

func WithClock(now func() time.Time) Option {
	return func(s *Sessions) { s.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sessions) { s.log = log }
}

func WithRecorder(rec Recorder) Option {
	return func(s *Sessions) { s.rec = rec }
}

func NewSessions(secret string, ttl time.Duration, tokens TokenStore, opts ...Option) *Sessions {
	s := &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		tokens: tokens,
		now:    time.Now,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sessions) record(result string) {
	if s.rec != nil {
		s.rec.SessionEvent(result)
	}
}

func (s *Sessions) Issue(ctx context.Context, p Payload) (string, error) {
	return s.IssueWith(ctx, s.tokens, p)
}

// IssueWith signs a token for p and adds it to the allow-list held by ts.
func (s *Sessions) IssueWith(ctx context.Context, ts TokenStore, p Payload) (string, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	c := claims{
		Payload: p,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if err := ts.SaveToken(ctx, token, p.UserID, exp); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	s.record("issued")
	return token, nil
}

// Verify reports whether token is allow-listed and carries a valid
// signature and expiry. A listed token that fails verification is removed
// from the allow-list. Only store failures are returned as errors.
func (s *Sessions) Verify(ctx context.Context, token string) (Payload, bool, error) {
	if token == "" {
		return Payload{}, false, nil
	}
	listed, err := s.tokens.TokenExists(ctx, token)
	if err != nil {
		return Payload{}, false, fmt.Errorf("lookup token: %w", err)
	}
	if !listed {
		s.record("rejected")
		return Payload{}, false, nil
	}

	var c claims
	_, perr := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if perr == nil && c.UserID != "" {
		s.record("verified")
		return c.Payload, true, nil
	}

	fields := logrus.Fields{"err": perr}
	if p, derr := s.Decode(token); derr == nil {
		fields["user_id"] = p.UserID
	}
	s.log.WithFields(fields).Info("session rejected, revoking")

	if err := s.tokens.DeleteToken(ctx, token); err != nil {
		return Payload{}, false, fmt.Errorf("revoke token: %w", err)
	}
	s.record("rejected")
	return Payload{}, false, nil
}

// Decode reads the payload without checking signature or expiry. The result
// is for logging only.
func (s *Sessions) Decode(token string) (Payload, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return c.Payload, nil
}

func (s *Sessions) Revoke(ctx context.Context, token string) error {
	return s.RevokeWith(ctx, s.tokens, token)
}

func (s *Sessions) RevokeWith(ctx context.Context, ts TokenStore, token string) error {
	if err := ts.DeleteToken(ctx, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.record("revoked")
	return nil
}
