package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campushub/campushub/internal/model"
)

// CookieName is the credential carrier on the wire.
const CookieName = "token"

// DefaultTokenTTL bounds a session when no TTL is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the payload of every bearer token. Subject carries the user
// id in decimal; ID carries a per-token uuid so two tokens for the same
// user never collide in the revocation list.
type Claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a directory id.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// TokenService signs and verifies HS256 bearer tokens. Constructing it
// with an empty secret is legal; both operations then fail with
// ErrNoSecret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Configured reports whether a signing secret is present.
func (s *TokenService) Configured() bool { return len(s.secret) > 0 }

// TTL is the lifetime stamped into issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a fresh token for u.
func (s *TokenService) Issue(u *model.User) (string, error) {
	if !s.Configured() {
		return "", ErrNoSecret
	}
	now := time.Now().UTC()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the claims. Every
// parse failure collapses into ErrInvalidToken.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	if !s.Configured() {
		return nil, ErrNoSecret
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
