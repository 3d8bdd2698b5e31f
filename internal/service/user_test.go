package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktb-community/board/internal/service"
)

func TestUserService_SignupAttachesProfileImage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	img := e.upload(t, "me.jpg")
	user, err := e.users.Signup(ctx, service.SignupInput{
		Email:    "  Kim@Board.Test ",
		Password: "Tr0ub4dor&3",
		Nickname: "kim",
		ImageID:  &img.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "kim@board.test", user.Email)
	assert.NotEqual(t, "Tr0ub4dor&3", user.PasswordHash)
	require.NotNil(t, user.ProfileImageID)
	assert.Equal(t, img.ID, *user.ProfileImageID)
	assert.Equal(t, img.URL, user.ProfileImageURL)
	assert.True(t, e.image(t, img.ID).IsPermanent())
	e.requireOwnership(t)
}

func TestUserService_SignupFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.users.Signup(ctx, service.SignupInput{Email: "bad", Password: "Tr0ub4dor&3", Nickname: "kim"})
	assert.True(t, service.ValidationError.Has(err), err)

	_, err = e.users.Signup(ctx, service.SignupInput{Email: "a@board.test", Password: "short", Nickname: "kim"})
	assert.True(t, service.ValidationError.Has(err), err)

	_, err = e.users.Signup(ctx, service.SignupInput{Email: "a@board.test", Password: "Tr0ub4dor&3", Nickname: "kim", ImageID: ptr(int64(404))})
	assert.True(t, service.NotFoundError.Has(err), err)

	// the user insert rolled back with the failed attach
	_, err = e.users.Signup(ctx, service.SignupInput{Email: "a@board.test", Password: "Tr0ub4dor&3", Nickname: "kim"})
	require.NoError(t, err)

	_, err = e.users.Signup(ctx, service.SignupInput{Email: "A@board.test", Password: "Tr0ub4dor&3", Nickname: "lee"})
	assert.True(t, service.ConflictError.Has(err), err)

	_, err = e.users.Signup(ctx, service.SignupInput{Email: "b@board.test", Password: "Tr0ub4dor&3", Nickname: "kim"})
	assert.True(t, service.ConflictError.Has(err), err)
}

func TestUserService_UpdateProfilePrecedence(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	old := e.upload(t, "old.jpg")
	next := e.upload(t, "next.jpg")
	user := e.signup(t, &old.ID)

	updated, err := e.users.UpdateProfile(ctx, user.ID, user.ID, service.ProfileUpdate{
		ImageID:     &next.ID,
		RemoveImage: true,
	})
	require.NoError(t, err)

	require.NotNil(t, updated.ProfileImageID)
	assert.Equal(t, next.ID, *updated.ProfileImageID)
	assert.True(t, e.image(t, next.ID).IsPermanent())

	restored := e.image(t, old.ID)
	require.NotNil(t, restored.ProvisionalUntil)
	assert.True(t, e.now.Add(e.lifecycleTTL()).Equal(*restored.ProvisionalUntil))
	e.requireOwnership(t)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	img := e.upload(t, "a.jpg")
	user := e.signup(t, &img.ID)
	other := e.signup(t, nil)

	_, err := e.users.UpdateProfile(ctx, user.ID, other.ID, service.ProfileUpdate{RemoveImage: true})
	assert.True(t, service.ForbiddenError.Has(err), err)
	assert.True(t, e.image(t, img.ID).IsPermanent())

	_, err = e.users.UpdateProfile(ctx, user.ID, user.ID, service.ProfileUpdate{Nickname: ptr(other.Nickname)})
	assert.True(t, service.ConflictError.Has(err), err)

	_, err = e.users.UpdateProfile(ctx, user.ID, user.ID, service.ProfileUpdate{Nickname: ptr("has space")})
	assert.True(t, service.ValidationError.Has(err), err)

	updated, err := e.users.UpdateProfile(ctx, user.ID, user.ID, service.ProfileUpdate{Nickname: ptr("renamed"), RemoveImage: true})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Nickname)
	assert.Nil(t, updated.ProfileImageID)
	assert.Empty(t, updated.ProfileImageURL)
	assert.False(t, e.image(t, img.ID).IsPermanent())
	e.requireOwnership(t)

	_, err = e.users.UpdateProfile(ctx, 9999, 9999, service.ProfileUpdate{})
	assert.True(t, service.NotFoundError.Has(err), err)
}
