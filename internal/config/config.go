package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// DefaultMaxUploadBytes is the request body cap applied to every endpoint (16 MiB).
const DefaultMaxUploadBytes int64 = 16 << 20

// Config holds the application configuration.
type Config struct {
	ServerPort  int
	DatabaseURL string
	SecretKey   string
	// SecretKeyGenerated is set when SECRET_KEY was absent and a random key was used.
	SecretKeyGenerated bool
	MaxUploadBytes     int64
	AllowedOrigins     []string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	AnalysisMaxTokens int
	AnalysisTimeout   time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file, then builds the configuration from
// environment variables, falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", strconv.FormatInt(DefaultMaxUploadBytes, 10)), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", os.Getenv("MAX_UPLOAD_BYTES"))
	}

	maxTokens, err := strconv.Atoi(getEnv("ANALYSIS_MAX_TOKENS", "4096"))
	if err != nil || maxTokens <= 0 {
		return nil, fmt.Errorf("invalid ANALYSIS_MAX_TOKENS %q", os.Getenv("ANALYSIS_MAX_TOKENS"))
	}

	timeout, err := time.ParseDuration(getEnv("ANALYSIS_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_TIMEOUT: %w", err)
	}

	cfg := &Config{
		ServerPort:        port,
		DatabaseURL:       NormalizeDatabaseURL(getEnv("DATABASE_URL", "sqlite:///meals.db")),
		SecretKey:         os.Getenv("SECRET_KEY"),
		MaxUploadBytes:    maxUpload,
		AllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		AnalysisMaxTokens: maxTokens,
		AnalysisTimeout:   timeout,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = uuid.NewString()
		cfg.SecretKeyGenerated = true
	}

	return cfg, nil
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme to postgresql://.
func NormalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}
	return raw
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
