package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/response"
	"github.com/ktb-community/board/internal/service"
)

// multipartOverhead leaves room for form boundaries around the file part.
const multipartOverhead = 1 << 20

type ImageHandler struct {
	log          *slog.Logger
	imageService *service.ImageService
	maxSize      int64
}

func NewImageHandler(log *slog.Logger, imageService *service.ImageService, maxSize int64) *ImageHandler {
	return &ImageHandler{
		log:          log,
		imageService: imageService,
		maxSize:      maxSize,
	}
}

type imageResponse struct {
	ImageID   int64      `json:"imageId"`
	ImageURL  string     `json:"imageUrl"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func newImageResponse(image *model.Image) imageResponse {
	return imageResponse{
		ImageID:   image.ID,
		ImageURL:  image.URL,
		ExpiresAt: image.ProvisionalUntil,
	}
}

// Upload accepts a multipart "file" part and stores it as a provisional image.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		response.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	image, err := h.imageService.Upload(r.Context(), service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Created(w, newImageResponse(image))
}

type registerMetadataRequest struct {
	ImageURL         string `json:"imageUrl"`
	FileSize         *int64 `json:"fileSize"`
	OriginalFilename string `json:"originalFilename"`
}

// RegisterMetadata records an object an external agent already put in the
// bucket.
func (h *ImageHandler) RegisterMetadata(w http.ResponseWriter, r *http.Request) {
	var req registerMetadataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ImageURL == "" {
		response.BadRequest(w, "imageUrl is required")
		return
	}

	image, err := h.imageService.RegisterMetadata(r.Context(), req.ImageURL, req.FileSize, req.OriginalFilename)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Created(w, newImageResponse(image))
}

type presignedURLResponse struct {
	ImageID         int64     `json:"imageId"`
	UploadURL       string    `json:"uploadUrl"`
	StorageKey      string    `json:"storageKey"`
	ContentType     string    `json:"contentType"`
	ExpiresAt       time.Time `json:"expiresAt"`
	UploadExpiresAt time.Time `json:"uploadExpiresAt"`
}

// PresignedURL pre-registers an image and hands back a direct upload URL.
// It answers 201 because the image record is created up front.
func (h *ImageHandler) PresignedURL(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		response.BadRequest(w, "filename is required")
		return
	}

	upload, err := h.imageService.CreatePresignedUpload(r.Context(), filename, r.URL.Query().Get("content_type"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Created(w, presignedURLResponse{
		ImageID:         upload.ImageID,
		UploadURL:       upload.UploadURL,
		StorageKey:      upload.StorageKey,
		ContentType:     upload.ContentType,
		ExpiresAt:       upload.ExpiresAt,
		UploadExpiresAt: upload.UploadExpiresAt,
	})
}
