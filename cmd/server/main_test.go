package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktb-community/board/internal/app"
	"github.com/ktb-community/board/internal/config"
	"github.com/ktb-community/board/internal/db/dbtest"
	"github.com/ktb-community/board/internal/reaper"
	"github.com/ktb-community/board/internal/storage/storagetest"
)

func testApp(t *testing.T, interval time.Duration) *app.App {
	t.Helper()
	cfg := &config.Config{
		AppEnv:              "development",
		Port:                "0",
		JWTSecret:           "server-test-secret",
		JWTExpiry:           time.Hour,
		S3KeyPrefix:         "images",
		ImageProvisionalTTL: time.Hour,
		ImagePresignExpiry:  15 * time.Minute,
		ImageMaxSize:        5 << 20,
		ReaperEnabled:       true,
		ReaperInterval:      interval,
		ReaperSafetyMargin:  7 * 24 * time.Hour,
	}
	return app.Wire(cfg, dbtest.Open(t), storagetest.New())
}

func TestServeReturnsReaperFailure(t *testing.T) {
	a := testApp(t, 0)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), a) }()

	select {
	case err := <-done:
		assert.True(t, reaper.Error.Has(err), err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	a := testApp(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return")
	}
}
