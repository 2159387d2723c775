package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

func signToken(t *testing.T, subject, role string, exp time.Time) string {
	t.Helper()
	claims := TokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestFromToken_ReadsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, "ana", "CUSTOMER", exp)

	s, err := FromToken(token, models.User{ID: 3, Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, token, s.Token)
	assert.Equal(t, "ana", s.User.Username)
	assert.Equal(t, "CUSTOMER", s.User.Role)
	assert.EqualValues(t, 3, s.User.ID)
	assert.WithinDuration(t, exp, s.ExpiresAt, time.Second)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(exp.Add(time.Second)))
}

func TestFromToken_KeepsExplicitUser(t *testing.T) {
	token := signToken(t, "subject-name", "ADMIN", time.Now().Add(time.Hour))

	s, err := FromToken(token, models.User{Username: "ana", Role: "CUSTOMER"})
	require.NoError(t, err)
	assert.Equal(t, "ana", s.User.Username)
	assert.Equal(t, "CUSTOMER", s.User.Role)
}

func TestFromToken_OpaqueToken(t *testing.T) {
	s, err := FromToken("not-a-jwt", models.User{Username: "ana"})
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.IsZero())
	assert.False(t, s.Expired(time.Now().Add(1000*time.Hour)))
}

func TestFromToken_Empty(t *testing.T) {
	_, err := FromToken("", models.User{})
	assert.ErrorIs(t, err, ErrNoSession)
}
