package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImageStates(t *testing.T) {
	now := time.Date(2025, 10, 11, 3, 0, 0, 0, time.UTC)

	permanent := &Image{ID: 1}
	assert.True(t, permanent.IsPermanent())
	assert.False(t, permanent.IsExpired(now))

	until := now.Add(time.Hour)
	provisional := &Image{ID: 2, ProvisionalUntil: &until}
	assert.False(t, provisional.IsPermanent())
	assert.False(t, provisional.IsExpired(now))
	assert.True(t, provisional.IsExpired(now.Add(2*time.Hour)))
}

func TestOwnerRef(t *testing.T) {
	assert.Equal(t, 1, PostOwner(7, 0).Slot)
	assert.NotEqual(t, PostOwner(7, 1), PostOwner(7, 2))
	assert.NotEqual(t, PostOwner(7, 1), ProfileOwner(7))
	assert.Equal(t, "post:7#1", PostOwner(7, 1).String())
	assert.Equal(t, "profile:3", ProfileOwner(3).String())
}
