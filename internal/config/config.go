package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cookie     CookieConfig
	Log        LogConfig
	AI         AIConfig
	Assignment AssignmentConfig
}

type AppConfig struct {
	Name           string
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // postgres, sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

type AIConfig struct {
	Provider string // mistral, gemini
	APIKey   string
	BaseURL  string
	Models   []string // tried in order
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

type AssignmentConfig struct {
	RemovalPolicy string // keep, prune, prune_idle
	Lock          string // local, redis
	RedisURL      string
	LockTTL       time.Duration
}

var (
	defaultMistralModels = []string{"mistral-small-latest", "mistral-medium-latest", "mistral-large-latest", "open-mixtral-8x22b"}
	defaultGeminiModels  = []string{"gemini-1.5-flash-8b", "gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"}
)

func LoadConfig() (*Config, error) {
	// A missing .env is fine: plain environment variables are used instead.
	_ = godotenv.Load()

	logMaxSize, _ := strconv.Atoi(getEnv("LOG_MAX_SIZE", "100"))
	logMaxBackups, _ := strconv.Atoi(getEnv("LOG_MAX_BACKUPS", "5"))
	logMaxAge, _ := strconv.Atoi(getEnv("LOG_MAX_AGE", "30"))
	aiAttempts, _ := strconv.Atoi(getEnv("AI_ATTEMPTS", "3"))

	provider := strings.ToLower(getEnv("AI_PROVIDER", "mistral"))
	defaultModels := defaultMistralModels
	if provider == "gemini" {
		defaultModels = defaultGeminiModels
	}

	cfg := &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", "Abricot"),
			Port:           getEnv("PORT", "3000"),
			Env:            getEnv("APP_ENV", "development"),
			AllowedOrigins: allowedOrigins(),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "abricot"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			Path:     getEnv("DB_PATH", "abricot.db"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    parseDuration(getEnv("JWT_TTL", "168h"), 168*time.Hour),
		},
		Cookie: CookieConfig{
			Name:   getEnv("COOKIE_NAME", "token"),
			Domain: os.Getenv("DOMAIN"),
			Secure: getEnv("COOKIE_SECURE", "true") == "true",
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE", "logs/app.log"),
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAge,
			Compress:   getEnv("LOG_COMPRESS", "true") == "true",
		},
		AI: AIConfig{
			Provider: provider,
			APIKey:   os.Getenv("AI_API_KEY"),
			BaseURL:  getEnv("AI_BASE_URL", "https://api.mistral.ai/v1"),
			Models:   splitList(os.Getenv("AI_MODELS"), defaultModels),
			Attempts: aiAttempts,
			Backoff:  parseDuration(getEnv("AI_BACKOFF", "1s"), time.Second),
			Timeout:  parseDuration(getEnv("AI_TIMEOUT", "15s"), 15*time.Second),
		},
		Assignment: AssignmentConfig{
			RemovalPolicy: getEnv("ASSIGNMENT_REMOVAL_POLICY", "prune_idle"),
			Lock:          getEnv("ASSIGNMENT_LOCK", "local"),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			LockTTL:       parseDuration(getEnv("ASSIGNMENT_LOCK_TTL", "10s"), 10*time.Second),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

// DSN builds the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// splitList turns "a, b,c" into ["a" "b" "c"], falling back when empty.
func splitList(s string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

func allowedOrigins() []string {
	origins := []string{"http://localhost:3000", "http://localhost:5173"}

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	return append(origins, splitList(os.Getenv("ALLOWED_ORIGINS"), nil)...)
}
