package routes

import (
	"net/http"

	"github.com/ktb-community/board/internal/app"
	"github.com/ktb-community/board/internal/handler"
	"github.com/ktb-community/board/internal/middleware"
	"github.com/ktb-community/board/internal/response"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	image := handler.NewImageHandler(app.Log, app.ImageService, app.Cfg.ImageMaxSize)
	auth := handler.NewAuthHandler(app.Log, app.AuthService, app.UserService)
	user := handler.NewUserHandler(app.Log, app.UserService)
	post := handler.NewPostHandler(app.Log, app.PostService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	// Images - anonymous so signup can carry a profile image (rate limited)
	imageLimiter := middleware.RateLimitImages()

	mux.HandleFunc("POST /images", imageLimiter(image.Upload))
	mux.HandleFunc("POST /images/metadata", imageLimiter(image.RegisterMetadata))
	mux.HandleFunc("GET /images/presigned-url", imageLimiter(image.PresignedURL))

	// Auth (rate limited)
	authLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("POST /auth/signup", authLimiter(auth.Signup))
	mux.HandleFunc("POST /auth/login", authLimiter(auth.Login))

	// Reads
	mux.HandleFunc("GET /users/{id}", user.Get)
	mux.HandleFunc("GET /posts/{id}", post.Get)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("PATCH /users/{id}", middleware.RequireAuth(user.Update))
	mux.HandleFunc("POST /posts", middleware.RequireAuth(post.Create))
	mux.HandleFunc("PATCH /posts/{id}", middleware.RequireAuth(post.Update))
	mux.HandleFunc("DELETE /posts/{id}", middleware.RequireAuth(post.Delete))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "route not found")
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestLogging(app.Log),
		middleware.AuthMiddleware(app.AuthService),
	)

	return handler
}
