package auth

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clock *fakeClock, buf *bytes.Buffer) *TokenService {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(buf, nil)))
	svc, err := NewTokenService("test-secret", time.Hour, WithClock(clock.Now), WithLogger(log))
	require.NoError(t, err)
	return svc
}

func testUser() types.User {
	return types.User{ID: uuid.New(), Username: "chef1", Role: types.RoleUser}
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := NewTokenService("   ", time.Hour)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	svc, err := NewTokenService("s", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, svc.TTL())
}

func TestIssue_CarriesIdentityClaims(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock, &bytes.Buffer{})
	user := testUser()

	token, err := svc.Issue(user)
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "chef1", claims.Username)
	assert.Equal(t, types.RoleUser, claims.Role)
	assert.True(t, clock.t.Equal(claims.IssuedAt.Time))
	assert.True(t, clock.t.Add(time.Hour).Equal(claims.ExpiresAt.Time))

	subject, err := svc.SubjectOf(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)
}

func TestValidate_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	buf := &bytes.Buffer{}
	svc := newTestService(t, clock, buf)

	token, err := svc.Issue(testUser())
	require.NoError(t, err)

	assert.True(t, svc.Validate(context.Background(), token))

	clock.t = clock.t.Add(time.Hour + time.Second)
	assert.False(t, svc.Validate(context.Background(), token))
	assert.Contains(t, buf.String(), "reason=expired")
}

func TestValidate_RejectsTamperedAndForeignTokens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	buf := &bytes.Buffer{}
	svc := newTestService(t, clock, buf)

	token, err := svc.Issue(testUser())
	require.NoError(t, err)

	other, err := NewTokenService("another-secret", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.Issue(testUser())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{name: "garbage", token: "not-a-token", reason: "malformed"},
		{name: "empty", token: "", reason: "malformed"},
		{name: "foreign signature", token: foreign, reason: "invalid signature"},
		{name: "tampered signature", token: tampered, reason: "invalid signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			assert.False(t, svc.Validate(context.Background(), tt.token))
			assert.Contains(t, buf.String(), tt.reason)
		})
	}
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	svc := newTestService(t, clock, &bytes.Buffer{})

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	assert.False(t, svc.Validate(context.Background(), token))
}

func TestValidate_RequiresSubject(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	buf := &bytes.Buffer{}
	svc := newTestService(t, clock, buf)

	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	assert.False(t, svc.Validate(context.Background(), token))
	assert.Contains(t, buf.String(), "missing subject")

	_, err = svc.SubjectOf(token)
	require.ErrorIs(t, err, ErrMissingSubject)
}
