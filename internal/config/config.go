// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/dialogue-tree/internal/layout"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        []string

	// NATS settings
	NATSEnabled  bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret     string
	JWTWriteScope string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Summarizer settings
	SummarizerTransport string
	SummarizerEndpoint  string
	SummarizerModel     string
	SummarizerLocale    string
	SummarizerAPIKey    string
	SummarizerTimeout   time.Duration

	// Layout settings
	Layout layout.Options

	// Rate limiting
	RateLimitRequests     int
	EditRateLimitRequests int
	RateLimitWindow       time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	defaults := layout.DefaultOptions()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		CORSOrigins:        getListEnv("CORS_ALLOWED_ORIGINS"),

		// NATS
		NATSEnabled:  getBoolEnv("NATS_ENABLED", true),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTWriteScope: getEnv("JWT_WRITE_SCOPE", ""),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),

		// Summarizer
		SummarizerTransport: getEnv("SUMMARIZER_TRANSPORT", "anthropic"),
		SummarizerEndpoint:  getEnv("SUMMARIZER_ENDPOINT", ""),
		SummarizerModel:     getEnv("SUMMARIZER_MODEL", ""),
		SummarizerLocale:    getEnv("SUMMARIZER_LOCALE", "en"),
		SummarizerAPIKey:    getEnv("SUMMARIZER_API_KEY", ""),
		SummarizerTimeout:   getDurationEnv("SUMMARIZER_TIMEOUT", 60*time.Second),

		// Layout
		Layout: layout.Options{
			BaseHorizontalGap: getFloatEnv("LAYOUT_BASE_H_GAP", defaults.BaseHorizontalGap),
			BaseVerticalGap:   getFloatEnv("LAYOUT_BASE_V_GAP", defaults.BaseVerticalGap),
			MinHorizontalGap:  getFloatEnv("LAYOUT_MIN_H_GAP", defaults.MinHorizontalGap),
			MinVerticalGap:    getFloatEnv("LAYOUT_MIN_V_GAP", defaults.MinVerticalGap),
			GapDecay:          getFloatEnv("LAYOUT_GAP_DECAY", defaults.GapDecay),
			MaxLabelRunes:     getIntEnv("LAYOUT_MAX_LABEL_RUNES", defaults.MaxLabelRunes),
			FitPadding:        getFloatEnv("LAYOUT_FIT_PADDING", defaults.FitPadding),
			MinZoom:           getFloatEnv("LAYOUT_MIN_ZOOM", defaults.MinZoom),
			ZoomDamping:       getFloatEnv("LAYOUT_ZOOM_DAMPING", defaults.ZoomDamping),
		},

		// Rate limiting
		RateLimitRequests:     getIntEnv("RATE_LIMIT_REQUESTS", 60),
		EditRateLimitRequests: getIntEnv("EDIT_RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:       getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// SummarizerDefaults returns the connection used when an edit request does
// not override it. Without SUMMARIZER_API_KEY the provider key matching the
// transport is used.
func (c *Config) SummarizerDefaults() model.ConnectionParams {
	credential := c.SummarizerAPIKey
	if credential == "" {
		switch strings.ToLower(c.SummarizerTransport) {
		case "anthropic", "claude":
			credential = c.AnthropicAPIKey
		default:
			credential = c.OpenAIAPIKey
		}
	}
	return model.ConnectionParams{
		Endpoint:   c.SummarizerEndpoint,
		Credential: credential,
		Transport:  c.SummarizerTransport,
		Locale:     c.SummarizerLocale,
		Model:      c.SummarizerModel,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
