package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	StorageDriverFile = "file"
	StorageDriverHTTP = "http"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	PGSchema    string

	StorageDriver      string
	StoragePath        string
	StorageBaseURL     string
	StorageUploadURL   string
	StorageUploadToken string

	SourcesFile      string
	UserAgent        string
	HTTPTimeout      time.Duration
	HeadlessBrowser  bool
	ImageMaxDim      int
	ImageQuality     int
	ImageAttempts    int
	MaxItemsPerRun   int
	ItemDelay        time.Duration
	SourceParallel   int
	NoteMaxLength    int
	IngestSchedule   string
	RebuildURL       string
	RebuildAttempts  int
	RebuildBackoff   time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	AdminToken       string
	CORSOrigins      []string
}

// LoadConfig loads .env files when present, then reads environment variables
// and applies defaults where needed.
func LoadConfig() (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PGSchema:    strings.TrimSpace(os.Getenv("PG_SCHEMA")),

		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFile)),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		StorageUploadURL:   strings.TrimRight(os.Getenv("STORAGE_UPLOAD_URL"), "/"),
		StorageUploadToken: os.Getenv("STORAGE_UPLOAD_TOKEN"),

		SourcesFile:      getEnv("SOURCES_FILE", "sources.yaml"),
		UserAgent:        os.Getenv("USER_AGENT"),
		HTTPTimeout:      time.Second * time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)),
		HeadlessBrowser:  getEnvBool("HEADLESS_BROWSER", true),
		ImageMaxDim:      getEnvInt("IMAGE_MAX_DIMENSION", 800),
		ImageQuality:     getEnvInt("IMAGE_JPEG_QUALITY", 82),
		ImageAttempts:    getEnvInt("IMAGE_FETCH_ATTEMPTS", 2),
		MaxItemsPerRun:   getEnvInt("MAX_ITEMS_PER_RUN", 0),
		ItemDelay:        time.Millisecond * time.Duration(getEnvInt("ITEM_DELAY_MS", 1500)),
		SourceParallel:   getEnvInt("SOURCE_PARALLELISM", 1),
		NoteMaxLength:    getEnvInt("NOTE_MAX_LENGTH", 500),
		IngestSchedule:   getEnv("INGEST_SCHEDULE", "@every 30m"),
		RebuildURL:       strings.TrimSpace(os.Getenv("REBUILD_WEBHOOK_URL")),
		RebuildAttempts:  getEnvInt("REBUILD_MAX_ATTEMPTS", 3),
		RebuildBackoff:   time.Second * time.Duration(getEnvInt("REBUILD_BACKOFF_SECONDS", 5)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		AdminToken:       strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		CORSOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.StorageDriver {
	case StorageDriverFile:
	case StorageDriverHTTP:
		if cfg.StorageUploadURL == "" {
			return nil, fmt.Errorf("STORAGE_UPLOAD_URL is required for the http storage driver")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.ImageQuality < 1 || cfg.ImageQuality > 100 {
		return nil, fmt.Errorf("IMAGE_JPEG_QUALITY must be between 1 and 100")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
