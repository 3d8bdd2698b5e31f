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

type UserHandler struct {
	log         *slog.Logger
	userService *service.UserService
}

func NewUserHandler(log *slog.Logger, userService *service.UserService) *UserHandler {
	return &UserHandler{
		log:         log,
		userService: userService,
	}
}

type userResponse struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Nickname        string    `json:"nickname"`
	ProfileImageID  *int64    `json:"profileImageId"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:              user.ID,
		Email:           user.Email,
		Nickname:        user.Nickname,
		ProfileImageID:  user.ProfileImageID,
		ProfileImageURL: user.ProfileImageURL,
		CreatedAt:       user.CreatedAt,
	}
}

// updateProfileRequest is a partial edit. imageId takes precedence over
// removeImage when both are sent.
type updateProfileRequest struct {
	Nickname    *string `json:"nickname"`
	ImageID     *int64  `json:"imageId"`
	RemoveImage bool    `json:"removeImage"`
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.userService.ByID(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.OK(w, newUserResponse(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), id, ctxkeys.UserID(r.Context()), service.ProfileUpdate{
		Nickname:    req.Nickname,
		ImageID:     req.ImageID,
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.OK(w, newUserResponse(user))
}
