package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campushub/internal/model"
)

func sampleUser() *model.User {
	return &model.User{ID: 42, Email: "rivera@campushub.test", Role: model.RoleTeacher}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("unit-secret", time.Hour)
	raw, err := svc.Issue(sampleUser())
	require.NoError(t, err)

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "rivera@campushub.test", claims.Email)
	assert.Equal(t, model.RoleTeacher, claims.Role)
	assert.NotEmpty(t, claims.ID)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	svc := NewTokenService("unit-secret", time.Hour)
	a, err := svc.Issue(sampleUser())
	require.NoError(t, err)
	b, err := svc.Issue(sampleUser())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc := NewTokenService("unit-secret", time.Hour)
	raw, err := svc.Issue(sampleUser())
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = svc.Verify(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)
	raw, err := issuer.Issue(sampleUser())
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewTokenService("unit-secret", time.Millisecond)
	raw, err := svc.Issue(sampleUser())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	svc := NewTokenService("unit-secret", time.Hour)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMissingSecret(t *testing.T) {
	svc := NewTokenService("", time.Hour)
	assert.False(t, svc.Configured())

	_, err := svc.Issue(sampleUser())
	require.ErrorIs(t, err, ErrNoSecret)

	_, err = svc.Verify("whatever")
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewTokenService("s", 0).TTL())
}
