package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ktb-community/board/internal/response"
	"github.com/ktb-community/board/internal/service"
)

type AuthHandler struct {
	log         *slog.Logger
	authService *service.AuthService
	userService *service.UserService
}

func NewAuthHandler(log *slog.Logger, authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		log:         log,
		authService: authService,
		userService: userService,
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	ImageID  *int64 `json:"imageId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
		ImageID:  req.ImageID,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.Created(w, newUserResponse(user))
}

// Login verifies credentials, returns a JWT, and also sets it as a cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn("login failed", "error", err)
		writeError(w, h.log, err)
		return
	}

	token, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.authService.SetJWTCookie(w, token, expiry)

	user, err = h.userService.ByID(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	response.OK(w, tokenResponse{
		Token:     token,
		ExpiresAt: expiry,
		User:      newUserResponse(user),
	})
}
