package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppEnv string
	Port   string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: AWS S3, MinIO, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services
	S3KeyPrefix string // Logical prefix for image object keys

	// Images
	ImageProvisionalTTL time.Duration // How long an unattached image survives
	ImagePresignExpiry  time.Duration // Validity of client-direct upload URLs
	ImageMaxSize        int64

	// Reaper
	ReaperEnabled      bool
	ReaperInterval     time.Duration
	ReaperSafetyMargin time.Duration // Minimum age before an unreferenced permanent image is swept
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppEnv: envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:   envString("PORT", "8080"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/board.db?_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 24*time.Hour),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		S3Region:    envRequired("S3_REGION"),
		S3Bucket:    envRequired("S3_BUCKET"),
		S3AccessKey: envRequired("S3_ACCESS_KEY"),
		S3SecretKey: envRequired("S3_SECRET_KEY"),
		S3Endpoint:  envString("S3_ENDPOINT", ""), // Optional: for non-AWS providers
		S3KeyPrefix: envString("S3_KEY_PREFIX", "images"),

		// Images
		ImageProvisionalTTL: envDuration("IMAGE_PROVISIONAL_TTL", 1*time.Hour),
		ImagePresignExpiry:  envDuration("IMAGE_PRESIGN_EXPIRY", 15*time.Minute),
		ImageMaxSize:        envInt64("IMAGE_MAX_SIZE", 5<<20), // 5MB

		// Reaper
		ReaperEnabled:      envBool("REAPER_ENABLED", true),
		ReaperInterval:     envDuration("REAPER_INTERVAL", 24*time.Hour),
		ReaperSafetyMargin: envDuration("REAPER_SAFETY_MARGIN", 7*24*time.Hour),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction rejects settings that are only acceptable for local testing.
func validateProduction(cfg *Config) {
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires a JWT_SECRET of at least 32 characters")
		os.Exit(1)
	}
	if cfg.ReaperSafetyMargin < 24*time.Hour {
		slog.Error("production deployment requires REAPER_SAFETY_MARGIN of at least 24h",
			"value", cfg.ReaperSafetyMargin)
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	if d <= 0 {
		slog.Warn("config duration must be positive, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
