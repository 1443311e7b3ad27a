package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapTokens struct {
	mu   sync.Mutex
	rows map[string]string
	fail error
}

func newMapTokens() *mapTokens { return &mapTokens{rows: map[string]string{}} }

func (m *mapTokens) SaveToken(_ context.Context, token, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[token] = userID
	return nil
}

func (m *mapTokens) TokenExists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	_, ok := m.rows[token]
	return ok, nil
}

func (m *mapTokens) DeleteToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, token)
	return nil
}

type countRecorder map[string]int

func (c countRecorder) SessionEvent(result string) { c[result]++ }

var alice = Payload{UserID: "0f8e4a4e-3c55-4d5e-9df0-0c8a1f1b2c3d", Name: "Alice", Email: "alice@example.com"}

func TestIssueVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	tokens := newMapTokens()
	rec := countRecorder{}
	s := NewSessions("secret", 30*time.Minute, tokens, WithRecorder(rec))

	tok, err := s.Issue(ctx, alice)
	require.NoError(t, err)
	assert.Contains(t, tokens.rows, tok)

	p, ok, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice, p)
	assert.Equal(t, 1, rec["issued"])
	assert.Equal(t, 1, rec["verified"])
}

func TestVerifyExpiredRevokes(t *testing.T) {
	ctx := context.Background()
	tokens := newMapTokens()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSessions("secret", 30*time.Minute, tokens, WithClock(func() time.Time { return now }))

	tok, err := s.Issue(ctx, alice)
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, ok, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, tokens.rows, tok)
}

func TestVerifyWrongSecretRevokes(t *testing.T) {
	ctx := context.Background()
	tokens := newMapTokens()
	other := NewSessions("other", time.Hour, tokens)
	s := NewSessions("secret", time.Hour, tokens)

	tok, err := other.Issue(ctx, alice)
	require.NoError(t, err)

	_, ok, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, tokens.rows)
}

func TestVerifyUnlistedToken(t *testing.T) {
	ctx := context.Background()
	s := NewSessions("secret", time.Hour, newMapTokens())
	issuer := NewSessions("secret", time.Hour, newMapTokens())

	tok, err := issuer.Issue(ctx, alice)
	require.NoError(t, err)

	_, ok, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Verify(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyStoreFailure(t *testing.T) {
	tokens := newMapTokens()
	tokens.fail = errors.New("db down")
	s := NewSessions("secret", time.Hour, tokens)

	_, ok, err := s.Verify(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	ctx := context.Background()
	tokens := newMapTokens()
	s := NewSessions("secret", time.Hour, tokens)

	tok, err := s.Issue(ctx, alice)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	tokens.rows[forged] = alice.UserID

	_, ok, err := s.Verify(ctx, forged)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, tokens.rows, forged)
}

func TestDecode(t *testing.T) {
	s := NewSessions("secret", time.Hour, newMapTokens())
	tok, err := NewSessions("someone-else", time.Hour, newMapTokens()).Issue(context.Background(), alice)
	require.NoError(t, err)

	p, err := s.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, p.UserID)

	_, err = s.Decode("not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	tokens := newMapTokens()
	s := NewSessions("secret", time.Hour, tokens)

	tok, err := s.Issue(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, tok))

	_, ok, err := s.Verify(ctx, tok)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPayloadContext(t *testing.T) {
	ctx := WithPayload(context.Background(), alice)
	p, ok := PayloadFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, alice, p)
	assert.Equal(t, alice.UserID, UserIDFrom(ctx))
	assert.Equal(t, "", UserIDFrom(context.Background()))
}
