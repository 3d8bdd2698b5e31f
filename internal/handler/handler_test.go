package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktb-community/board/internal/app"
	"github.com/ktb-community/board/internal/config"
	"github.com/ktb-community/board/internal/db/dbtest"
	"github.com/ktb-community/board/internal/routes"
	"github.com/ktb-community/board/internal/storage/storagetest"
)

var jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)

// clientSeq hands every request its own client IP so rate limits stay out
// of the way.
var clientSeq atomic.Int64

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type server struct {
	handler http.Handler
	storage *storagetest.Fake
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:              "development",
		JWTSecret:           "handler-test-secret",
		JWTExpiry:           time.Hour,
		S3KeyPrefix:         "images",
		ImageProvisionalTTL: time.Hour,
		ImagePresignExpiry:  15 * time.Minute,
		ImageMaxSize:        5 << 20,
		ReaperInterval:      time.Hour,
		ReaperSafetyMargin:  7 * 24 * time.Hour,
	}
	fake := storagetest.New()
	a := app.Wire(cfg, dbtest.Open(t), fake)

	return &server{handler: routes.SetupRoutes(a), storage: fake}
}

func (s *server) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.%d.%d", clientSeq.Add(1)/250, clientSeq.Load()%250))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *server) json(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, token)
}

func (s *server) upload(t *testing.T, filename, contentType string, data []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req, "")
}

type imageData struct {
	ImageID   int64      `json:"imageId"`
	ImageURL  string     `json:"imageUrl"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type userData struct {
	ID              int64  `json:"id"`
	Nickname        string `json:"nickname"`
	ProfileImageID  *int64 `json:"profileImageId"`
	ProfileImageURL string `json:"profileImageUrl"`
}

type postData struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ImageID  *int64 `json:"imageId"`
	ImageURL string `json:"imageUrl"`
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *server) uploadImage(t *testing.T) imageData {
	t.Helper()
	rec, env := s.upload(t, "cat.jpg", "image/jpeg", jpegBytes)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	return decode[imageData](t, env)
}

func (s *server) signupAndLogin(t *testing.T, nickname string, imageID *int64) (userData, string) {
	t.Helper()

	rec, env := s.json(t, http.MethodPost, "/auth/signup", map[string]any{
		"email":    nickname + "@board.test",
		"password": "Tr0ub4dor&3",
		"nickname": nickname,
		"imageId":  imageID,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	user := decode[userData](t, env)

	rec, env = s.json(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    nickname + "@board.test",
		"password": "Tr0ub4dor&3",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, env.Error)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)
	return user, login.Token
}

func TestImageUpload(t *testing.T) {
	s := newServer(t)

	img := s.uploadImage(t)
	assert.Positive(t, img.ImageID)
	assert.Contains(t, img.ImageURL, storagetest.DefaultBaseURL+"/images/")
	assert.NotNil(t, img.ExpiresAt, "new uploads are provisional")
	assert.Equal(t, 1, s.storage.Len())

	rec, env := s.upload(t, "notes.txt", "text/plain", []byte("hello, this is not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, `invalid file type: content type "text/plain" is not allowed`, env.Error)

	rec, env = s.upload(t, "fake.jpg", "image/jpeg", bytes.Repeat([]byte{0x00}, 32))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "does not match a jpeg, png or gif signature")
	assert.NotContains(t, env.Error, "validation:")

	req := httptest.NewRequest(http.MethodPost, "/images", nil)
	rec, _ = s.do(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.storage.FailPut(errors.New("bucket unreachable"))
	rec, env = s.upload(t, "cat.jpg", "image/jpeg", jpegBytes)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, env.Error, "bucket unreachable")
}

func TestImageMetadata(t *testing.T) {
	s := newServer(t)

	url := s.storage.Seed("images/2025/10/11/agent.png", []byte("png"))

	rec, env := s.json(t, http.MethodPost, "/images/metadata", map[string]any{
		"imageUrl":         url,
		"fileSize":         2048,
		"originalFilename": "agent.png",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	img := decode[imageData](t, env)
	assert.Equal(t, url, img.ImageURL)

	rec, _ = s.json(t, http.MethodPost, "/images/metadata", map[string]any{"imageUrl": url}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.json(t, http.MethodPost, "/images/metadata", map[string]any{
		"imageUrl": "https://elsewhere.example.com/images/x.png",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.json(t, http.MethodPost, "/images/metadata", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresignedURL(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/images/presigned-url?filename=Photo.PNG", nil)
	rec, env := s.do(t, req, "")
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var upload struct {
		ImageID         int64     `json:"imageId"`
		UploadURL       string    `json:"uploadUrl"`
		StorageKey      string    `json:"storageKey"`
		ContentType     string    `json:"contentType"`
		ExpiresAt       time.Time `json:"expiresAt"`
		UploadExpiresAt time.Time `json:"uploadExpiresAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &upload))
	assert.Positive(t, upload.ImageID)
	assert.NotEmpty(t, upload.UploadURL)
	assert.Equal(t, "image/png", upload.ContentType)
	assert.True(t, upload.ExpiresAt.After(upload.UploadExpiresAt))

	req = httptest.NewRequest(http.MethodGet, "/images/presigned-url?filename=run.exe", nil)
	rec, env = s.do(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, `extension ".exe" is not allowed`)

	req = httptest.NewRequest(http.MethodGet, "/images/presigned-url", nil)
	rec, _ = s.do(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupLoginAndProfile(t *testing.T) {
	s := newServer(t)

	img := s.uploadImage(t)
	user, token := s.signupAndLogin(t, "alice", &img.ImageID)
	require.NotNil(t, user.ProfileImageID)
	assert.Equal(t, img.ImageID, *user.ProfileImageID)
	assert.Equal(t, img.ImageURL, user.ProfileImageURL)

	rec, env := s.json(t, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[userData](t, env).Nickname)

	// The image now belongs to alice and cannot be taken by another signup.
	rec, _ = s.json(t, http.MethodPost, "/auth/signup", map[string]any{
		"email":    "bob@board.test",
		"password": "Tr0ub4dor&3",
		"nickname": "bob",
		"imageId":  img.ImageID,
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	path := fmt.Sprintf("/users/%d", user.ID)

	rec, _ = s.json(t, http.MethodPatch, path, map[string]any{"nickname": "alicia"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, otherToken := s.signupAndLogin(t, "carol", nil)
	rec, _ = s.json(t, http.MethodPatch, path, map[string]any{"nickname": "mallory"}, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.json(t, http.MethodPatch, path, map[string]any{"nickname": "alicia", "removeImage": true}, token)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	updated := decode[userData](t, env)
	assert.Equal(t, "alicia", updated.Nickname)
	assert.Nil(t, updated.ProfileImageID)

	rec, _ = s.json(t, http.MethodPatch, path, map[string]any{"nickname": "carol"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newServer(t)
	s.signupAndLogin(t, "dave", nil)

	rec, env := s.json(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "dave@board.test",
		"password": "wrong-password1",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.json(t, http.MethodPost, "/auth/signup", map[string]any{
		"email":    "not-an-email",
		"password": "Tr0ub4dor&3",
		"nickname": "erin",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	s := newServer(t)
	_, token := s.signupAndLogin(t, "frank", nil)
	_, otherToken := s.signupAndLogin(t, "grace", nil)

	img := s.uploadImage(t)

	rec, _ := s.json(t, http.MethodPost, "/posts", map[string]any{"title": "hi", "content": "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := s.json(t, http.MethodPost, "/posts", map[string]any{
		"title":   "first post",
		"content": "hello board",
		"imageId": img.ImageID,
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	post := decode[postData](t, env)
	require.NotNil(t, post.ImageID)
	assert.Equal(t, img.ImageID, *post.ImageID)
	assert.Equal(t, img.ImageURL, post.ImageURL)

	path := fmt.Sprintf("/posts/%d", post.ID)

	rec, env = s.json(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "first post", decode[postData](t, env).Title)

	rec, _ = s.json(t, http.MethodPatch, path, map[string]any{"title": "hijacked"}, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.json(t, http.MethodPatch, path, map[string]any{"removeImage": true}, token)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.Nil(t, decode[postData](t, env).ImageID)

	rec, _ = s.json(t, http.MethodDelete, path, nil, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.json(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = s.json(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutingErrors(t *testing.T) {
	s := newServer(t)

	rec, _ := s.json(t, http.MethodGet, "/posts/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.json(t, http.MethodGet, "/users/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.json(t, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec, _ = s.do(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.json(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}
