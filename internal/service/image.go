package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/repository"
	"github.com/ktb-community/board/internal/storage"
	"github.com/ktb-community/board/internal/validation"
)

// ImageConfig carries the upload limits and deadlines.
type ImageConfig struct {
	KeyPrefix      string
	ProvisionalTTL time.Duration
	PresignExpiry  time.Duration
	MaxSize        int64
}

// ImageService implements the three ways an image record comes to exist.
// Every pathway leaves the image provisional until an owner attaches it.
type ImageService struct {
	log     *slog.Logger
	config  ImageConfig
	images  repository.ImageRepository
	storage storage.Gateway
	nowFn   func() time.Time
}

func NewImageService(log *slog.Logger, config ImageConfig, images repository.ImageRepository, gateway storage.Gateway) *ImageService {
	return &ImageService{
		log:     log,
		config:  config,
		images:  images,
		storage: gateway,
		nowFn:   time.Now,
	}
}

// TestingSetNow overrides the clock used for keys and deadlines.
func (s *ImageService) TestingSetNow(nowFn func() time.Time) {
	s.nowFn = nowFn
}

// UploadInput is a server-mediated upload. Size may be -1 when unknown.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PresignedUpload is returned to clients uploading straight to storage.
type PresignedUpload struct {
	ImageID         int64
	UploadURL       string
	StorageKey      string
	ContentType     string
	ExpiresAt       time.Time // provisional deadline of the pre-registered image
	UploadExpiresAt time.Time // end of the upload authorization
}

// Upload validates the payload, stores it, and records a provisional image.
// If the record cannot be written the stored object is deleted again.
func (s *ImageService) Upload(ctx context.Context, in UploadInput) (*model.Image, error) {
	if in.Body == nil {
		return nil, ValidationError.New("file is required")
	}
	if in.Size > 0 {
		err := validation.ValidateSize(in.Size, s.config.MaxSize)
		if err != nil {
			return nil, ValidationError.Wrap(err)
		}
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.config.MaxSize+1))
	if err != nil {
		return nil, ValidationError.New("read upload: %v", err)
	}
	err = validation.ValidateSize(int64(len(data)), s.config.MaxSize)
	if err != nil {
		return nil, ValidationError.Wrap(err)
	}

	err = validation.ValidateImage(in.ContentType, data)
	if err != nil {
		return nil, ValidationError.Wrap(err)
	}

	// the stored name follows the bytes, never the client's filename
	contentType := validation.DetectImageType(data)
	now := s.nowFn()
	key := storage.GenerateKey(s.config.KeyPrefix, "upload"+validation.StorageExtension(contentType), now)

	url, err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		s.log.Error("image upload failed", "key", key, "error", err)
		return nil, StorageError.Wrap(err)
	}

	image := s.provisional(url, int64(len(data)), in.Filename, now)
	err = s.images.Create(ctx, image)
	if err != nil {
		delErr := s.storage.Delete(ctx, key)
		if delErr != nil && !errors.Is(delErr, storage.ErrObjectNotFound) {
			s.log.Error("failed to delete object during cleanup", "key", key, "error", delErr)
		}
		return nil, PersistenceError.Wrap(err)
	}

	s.log.Info("image uploaded", "image_id", image.ID, "key", key, "size", image.Size)
	return image, nil
}

// RegisterMetadata records an object an external agent already stored.
// size and filename are optional and trusted as given.
func (s *ImageService) RegisterMetadata(ctx context.Context, url string, size *int64, filename string) (*model.Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ValidationError.New("image url is required")
	}

	key, err := s.storage.KeyFromURL(url)
	if err != nil {
		s.log.Warn("rejected foreign image url", "url", url)
		return nil, ValidationError.New("image url must start with %s/", s.storage.BaseURL())
	}

	var declared int64
	if size != nil {
		if *size <= 0 {
			return nil, ValidationError.New("file size must be positive")
		}
		if *size > s.config.MaxSize {
			return nil, ValidationError.Wrap(validation.ValidateSize(*size, s.config.MaxSize))
		}
		declared = *size
	}
	if filename == "" {
		filename = path.Base(key)
	}

	exists, err := s.images.ExistsByURL(ctx, url)
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}
	if exists {
		return nil, ConflictError.New("image url already registered: %s", url)
	}

	image := s.provisional(url, declared, filename, s.nowFn())
	err = s.images.Create(ctx, image)
	if errors.Is(err, repository.ErrDuplicateImageURL) {
		return nil, ConflictError.New("image url already registered: %s", url)
	}
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}

	s.log.Info("image metadata registered", "image_id", image.ID, "url", url)
	return image, nil
}

// CreatePresignedUpload authorizes a direct upload of filename and
// pre-registers its image with size 0. contentType is inferred from the
// extension when blank.
func (s *ImageService) CreatePresignedUpload(ctx context.Context, filename, contentType string) (*PresignedUpload, error) {
	err := validation.ValidateImageExtension(filename)
	if err != nil {
		return nil, ValidationError.Wrap(err)
	}

	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = validation.InferContentType(filename)
	}
	if !validation.ImageContentTypes[strings.ToLower(contentType)] {
		return nil, ValidationError.New("content type %q is not allowed", contentType)
	}

	now := s.nowFn()
	key := storage.GenerateKey(s.config.KeyPrefix, filename, now)

	presigned, err := s.storage.PresignPut(ctx, key, contentType, s.config.PresignExpiry)
	if err != nil {
		return nil, StorageError.Wrap(err)
	}

	image := s.provisional(s.storage.URL(key), 0, filename, now)
	err = s.images.Create(ctx, image)
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}

	s.log.Info("presigned upload issued", "image_id", image.ID, "key", key)
	return &PresignedUpload{
		ImageID:         image.ID,
		UploadURL:       presigned.URL,
		StorageKey:      key,
		ContentType:     contentType,
		ExpiresAt:       *image.ProvisionalUntil,
		UploadExpiresAt: now.Add(s.config.PresignExpiry).UTC(),
	}, nil
}

// ByID returns one image record.
func (s *ImageService) ByID(ctx context.Context, id int64) (*model.Image, error) {
	image, err := s.images.ByID(ctx, id)
	if errors.Is(err, repository.ErrImageNotFound) {
		return nil, NotFoundError.New("image %d", id)
	}
	if err != nil {
		return nil, PersistenceError.Wrap(err)
	}
	return image, nil
}

func (s *ImageService) provisional(url string, size int64, filename string, now time.Time) *model.Image {
	until := now.Add(s.config.ProvisionalTTL).UTC()
	return &model.Image{
		URL:              url,
		Size:             size,
		OriginalFilename: filename,
		ProvisionalUntil: &until,
		CreatedAt:        now.UTC(),
	}
}
