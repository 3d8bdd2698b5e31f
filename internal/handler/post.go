package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ktb-community/board/internal/ctxkeys"
	"github.com/ktb-community/board/internal/model"
	"github.com/ktb-community/board/internal/response"
	"github.com/ktb-community/board/internal/service"
)

type PostHandler struct {
	log         *slog.Logger
	postService *service.PostService
}

func NewPostHandler(log *slog.Logger, postService *service.PostService) *PostHandler {
	return &PostHandler{
		log:         log,
		postService: postService,
	}
}

type postResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageID   *int64    `json:"imageId"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newPostResponse(post *model.Post) postResponse {
	return postResponse{
		ID:        post.ID,
		UserID:    post.UserID,
		Title:     post.Title,
		Content:   post.Content,
		ImageID:   post.ImageID,
		ImageURL:  post.ImageURL,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	ImageID *int64 `json:"imageId"`
}

// updatePostRequest is a partial edit. imageId takes precedence over
// removeImage when both are sent.
type updatePostRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	ImageID     *int64  `json:"imageId"`
	RemoveImage bool    `json:"removeImage"`
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.postService.Create(r.Context(), ctxkeys.UserID(r.Context()), service.PostInput{
		Title:   req.Title,
		Content: req.Content,
		ImageID: req.ImageID,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Created(w, newPostResponse(post))
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	post, err := h.postService.ByID(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.OK(w, newPostResponse(post))
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.postService.Update(r.Context(), id, ctxkeys.UserID(r.Context()), service.PostUpdate{
		Title:       req.Title,
		Content:     req.Content,
		ImageID:     req.ImageID,
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.OK(w, newPostResponse(post))
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	err := h.postService.Delete(r.Context(), id, ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.NoContent(w)
}
