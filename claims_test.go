package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestJWTClaimsAccessors(t *testing.T) {
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "subject-id",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:      "uid-value",
		AdminFlg: true,
	}

	assert.Equal(t, "subject-id", claims.Subject())
	assert.Equal(t, "uid-value", claims.UserID())
	assert.True(t, claims.Admin())
	assert.WithinDuration(t, now, claims.IssuedAt(), time.Second)
	assert.WithinDuration(t, now.Add(time.Hour), claims.Expires(), time.Second)
}

func TestJWTClaimsUserIDFallsBackToSubject(t *testing.T) {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "subject-id"},
	}

	assert.Equal(t, "subject-id", claims.UserID())
}

func TestJWTClaimsZeroTimes(t *testing.T) {
	claims := &JWTClaims{}

	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}

func TestEnsureTokenID(t *testing.T) {
	claims := &jwt.RegisteredClaims{}
	ensureTokenID(claims)
	assert.NotEmpty(t, claims.ID)

	fixed := &jwt.RegisteredClaims{ID: "existing"}
	ensureTokenID(fixed)
	assert.Equal(t, "existing", fixed.ID)
}
