package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "safety-inspection/pkg/errors"
)

func TestJWT_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, 24*time.Hour)
	userID := uuid.New()

	access, refresh, err := svc.GenerateTokens(userID, "admin")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.False(t, claims.IsRefreshToken)
	assert.NotEmpty(t, claims.TokenID())

	rclaims, err := svc.ValidateToken(refresh)
	require.NoError(t, err)
	assert.True(t, rclaims.IsRefreshToken)
	assert.NotEqual(t, claims.TokenID(), rclaims.TokenID())
}

func TestJWT_Expired(t *testing.T) {
	svc := NewJWTService("secret", time.Minute, time.Hour).(*jwtService)
	past := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return past }
	access, _, err := svc.GenerateTokens(uuid.New(), "reporter")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(access)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestJWT_WrongSecret(t *testing.T) {
	access, _, err := NewJWTService("one", time.Hour, time.Hour).GenerateTokens(uuid.New(), "admin")
	require.NoError(t, err)

	_, err = NewJWTService("two", time.Hour, time.Hour).ValidateToken(access)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
