package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	PDF      PDFConfig
	LLM      LLMConfig
	Auth     AuthConfig
	LogLevel string
}

// DatabaseConfig holds the extraction journal connection settings.
// An empty DSN selects an in-memory SQLite database.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string
	GRPCAddr    string
	MaxUploadMB int
}

// PDFConfig holds text extraction and rasterization settings.
type PDFConfig struct {
	Pdftoppm      string
	DPI           int
	MinTextChars  int
	MaxImagePages int
	CacheEntries  int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	Temperature   float32
	Timeout       time.Duration
}

// AuthConfig points at the credentials file.
type AuthConfig struct {
	ConfigPath string
}

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:    os.Getenv("GRPC_ADDR"),
			MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 32),
		},
		PDF: PDFConfig{
			Pdftoppm:      getEnv("PDFTOPPM", "pdftoppm"),
			DPI:           getEnvAsInt("RENDER_DPI", 150),
			MinTextChars:  getEnvAsInt("MIN_TEXT_CHARS", 100),
			MaxImagePages: getEnvAsInt("MAX_IMAGE_PAGES", 3),
			CacheEntries:  getEnvAsInt("CACHE_ENTRIES", 64),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
		Auth: AuthConfig{
			ConfigPath: getEnv("AUTH_CONFIG", "config.yaml"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// APIKey returns the credential for the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateExtraction checks what the extraction pipeline needs.
// The batch command only runs this half.
func (c *Config) ValidateExtraction() error {
	v := NewValidator().
		Field("LLM_PROVIDER", c.LLM.Provider, Required, OneOf(ProviderGemini, ProviderOpenAI))
	if c.LLM.Provider == ProviderOpenAI {
		v.Field("OPENAI_API_KEY", c.LLM.OpenAIAPIKey, Required)
	} else {
		v.Field("GEMINI_API_KEY", c.LLM.GeminiAPIKey, Required)
	}
	v.Field("MAX_IMAGE_PAGES", c.PDF.MaxImagePages, Positive).
		Field("MIN_TEXT_CHARS", c.PDF.MinTextChars, NonNegative)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}

// Validate validates the loaded configuration for the server.
func (c *Config) Validate() error {
	if err := c.ValidateExtraction(); err != nil {
		return err
	}
	v := NewValidator().
		Field("HTTP_ADDR", c.Server.HTTPAddr, Required).
		Field("AUTH_CONFIG", c.Auth.ConfigPath, Required).
		Field("MAX_UPLOAD_MB", c.Server.MaxUploadMB, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}
