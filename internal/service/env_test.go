package service_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ktb-community/board/internal/db/dbtest"
	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/repository"
	"github.com/ktb-community/board/internal/service"
	"github.com/ktb-community/board/internal/storage/storagetest"
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)
	pngBytes  = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x02}, 64)...)
)

type env struct {
	db        *sqlx.DB
	storage   *storagetest.Fake
	now       time.Time
	images    *service.ImageService
	lifecycle *service.LifecycleManager
	users     *service.UserService
	posts     *service.PostService
	imageRepo repository.ImageRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{
		db:      dbtest.Open(t),
		storage: storagetest.New(),
		now:     time.Date(2025, 10, 11, 3, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return e.now }

	e.imageRepo = repository.NewImageRepository(e.db)
	e.images = service.NewImageService(log, service.ImageConfig{
		KeyPrefix:      "images",
		ProvisionalTTL: time.Hour,
		PresignExpiry:  15 * time.Minute,
		MaxSize:        5 << 20,
	}, e.imageRepo, e.storage)
	e.images.TestingSetNow(clock)

	e.lifecycle = service.NewLifecycleManager(log, time.Hour)
	e.lifecycle.TestingSetNow(clock)

	e.users = service.NewUserService(log, e.db, e.lifecycle)
	e.posts = service.NewPostService(log, e.db, e.lifecycle)
	return e
}

func (e *env) upload(t *testing.T, name string) *model.Image {
	t.Helper()
	img, err := e.images.Upload(context.Background(), service.UploadInput{
		Filename:    name,
		ContentType: "image/jpeg",
		Size:        int64(len(jpegBytes)),
		Body:        bytes.NewReader(jpegBytes),
	})
	require.NoError(t, err)
	return img
}

var userSeq int

func (e *env) signup(t *testing.T, imageID *int64) *model.User {
	t.Helper()
	userSeq++
	nick := "user" + string(rune('a'+userSeq%26)) + string(rune('a'+userSeq/26%26))
	user, err := e.users.Signup(context.Background(), service.SignupInput{
		Email:    nick + "@board.test",
		Password: "Tr0ub4dor&3",
		Nickname: nick,
		ImageID:  imageID,
	})
	require.NoError(t, err)
	return user
}

func (e *env) image(t *testing.T, id int64) *model.Image {
	t.Helper()
	img, err := e.imageRepo.ByID(context.Background(), id)
	require.NoError(t, err)
	return img
}

// requireOwnership checks that every permanent image has exactly one owner
// and no provisional image is referenced.
func (e *env) requireOwnership(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	var ids []int64
	require.NoError(t, e.db.SelectContext(ctx, &ids, `SELECT id FROM images ORDER BY id`))

	for _, id := range ids {
		img := e.image(t, id)
		refs, err := e.imageRepo.References(ctx, id)
		require.NoError(t, err)

		if img.IsPermanent() {
			require.Len(t, refs, 1, "permanent image %d must have exactly one owner", id)
		} else {
			require.Empty(t, refs, "provisional image %d must not be referenced", id)
		}
	}
}

func (e *env) lifecycleTTL() time.Duration { return time.Hour }

func ptr[T any](v T) *T { return &v }
