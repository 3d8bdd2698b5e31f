package app

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/ktb-community/board/internal/config"
	"github.com/ktb-community/board/internal/db"
	"github.com/ktb-community/board/internal/logger"
	"github.com/ktb-community/board/internal/reaper"
	"github.com/ktb-community/board/internal/repository"
	"github.com/ktb-community/board/internal/service"
	"github.com/ktb-community/board/internal/storage"
)

type App struct {
	Cfg          *config.Config
	Log          *slog.Logger
	DB           *sqlx.DB
	Storage      storage.Gateway
	Lifecycle    *service.LifecycleManager
	AuthService  *service.AuthService
	UserService  *service.UserService
	PostService  *service.PostService
	ImageService *service.ImageService
	Reaper       *reaper.Reaper
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Storage
	imageStorage, err := storage.New(cfg, logger.For("storage"))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	return Wire(cfg, database, imageStorage), nil
}

// Wire builds the services over an already opened database and storage
// gateway.
func Wire(cfg *config.Config, database *sqlx.DB, gateway storage.Gateway) *App {
	lifecycle := service.NewLifecycleManager(logger.For("lifecycle"), cfg.ImageProvisionalTTL)

	imageService := service.NewImageService(
		logger.For("image"),
		service.ImageConfig{
			KeyPrefix:      cfg.S3KeyPrefix,
			ProvisionalTTL: cfg.ImageProvisionalTTL,
			PresignExpiry:  cfg.ImagePresignExpiry,
			MaxSize:        cfg.ImageMaxSize,
		},
		repository.NewImageRepository(database),
		gateway,
	)
	authService := service.NewAuthService(
		repository.NewUserRepository(database),
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.IsProduction(),
	)
	userService := service.NewUserService(logger.For("user"), database, lifecycle)
	postService := service.NewPostService(logger.For("post"), database, lifecycle)

	imageReaper := reaper.New(logger.For("reaper"), reaper.Config{
		Enabled:      cfg.ReaperEnabled,
		Interval:     cfg.ReaperInterval,
		SafetyMargin: cfg.ReaperSafetyMargin,
	}, database, gateway)

	return &App{
		Cfg:          cfg,
		Log:          logger.For("http"),
		DB:           database,
		Storage:      gateway,
		Lifecycle:    lifecycle,
		AuthService:  authService,
		UserService:  userService,
		PostService:  postService,
		ImageService: imageService,
		Reaper:       imageReaper,
	}
}

func (a *App) Close() error {
	if a.Reaper != nil {
		a.Reaper.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
