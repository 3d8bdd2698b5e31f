package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktb-community/board/internal/repository"
	"github.com/ktb-community/board/internal/service"
)

func TestAuthService_LoginAndJWT(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.signup(t, nil)

	auth := service.NewAuthService(repository.NewUserRepository(e.db), "test-secret", time.Hour, false)

	_, err := auth.Login(ctx, user.Email, "wrong-password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	assert.True(t, service.ValidationError.Has(err))

	_, err = auth.Login(ctx, "nobody@board.test", "Tr0ub4dor&3")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	loggedIn, err := auth.Login(ctx, "  "+user.Email+" ", "Tr0ub4dor&3")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	token, expiry, err := auth.GenerateJWT(loggedIn)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)

	claims, err := auth.VerifyJWT(token)
	require.NoError(t, err)
	id, err := service.UserIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	other := service.NewAuthService(repository.NewUserRepository(e.db), "other-secret", time.Hour, false)
	_, err = other.VerifyJWT(token)
	assert.Error(t, err)

	_, err = service.UserIDFromClaims(jwt.MapClaims{"user_id": "7"})
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}
