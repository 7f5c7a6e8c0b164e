// Package auth issues and validates the signed bearer tokens used by the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/types"
)

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

var (
	// ErrMissingSecret is returned by NewTokenService for an empty signing key.
	ErrMissingSecret = errors.New("jwt secret is required")
	// ErrMissingSubject is returned for tokens without a usable subject claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// Claims is the payload carried by every token. The subject holds the user id.
type Claims struct {
	Username string     `json:"username"`
	Role     types.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs tokens with a symmetric HS256 key.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    logging.Logger
}

// Option customizes a TokenService.
type Option func(*TokenService)

// WithClock replaces the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// WithLogger sets the logger that receives validation failures.
func WithLogger(log logging.Logger) Option {
	return func(s *TokenService) {
		s.log = log
	}
}

func NewTokenService(secret string, ttl time.Duration, opts ...Option) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue returns a signed token for user valid from now until now+TTL.
func (s *TokenService) Issue(user types.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate reports whether token is well formed, correctly signed, carries a
// subject and has not expired. Failures are logged and never returned.
func (s *TokenService) Validate(ctx context.Context, token string) bool {
	if _, err := s.Parse(token); err != nil {
		s.log.Warn(ctx, "token rejected", "reason", failureReason(err), "error", err)
		return false
	}
	return true
}

// SubjectOf returns the user id carried by a token that already passed Validate.
func (s *TokenService) SubjectOf(token string) (uuid.UUID, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrMissingSubject
	}
	return id, nil
}

// Parse verifies token and returns its claims.
func (s *TokenService) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid signature"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenUnverifiable), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return "unsupported"
	case errors.Is(err, ErrMissingSubject):
		return "missing subject"
	default:
		return "invalid"
	}
}
