package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Anthropic
	AnthropicAPIKey      string
	AnthropicModel       string
	AnthropicTemperature float64
	AnthropicMaxTokens   int
	AnthropicCallsPerMin int

	// Search
	SearchDebounce time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAI      int

	// Reminder
	ReminderInterval      time.Duration
	ReminderMaxConcurrent int

	// Link Check
	LinkCheckInterval    time.Duration
	LinkCheckTTL         time.Duration
	LinkCheckTimeout     time.Duration
	LinkCheckMaxSize     int64
	LinkCheckMaxPerCycle int

	// Cleanup
	ReminderRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// ANTHROPIC_API_KEYの検証はここでは行わず、クライアント生成時に必須とする
// （永続化のみを使うworkerモードではキーなしでも起動できる）。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AnthropicModel = getEnvString("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022")
	cfg.AnthropicTemperature = getEnvFloat("ANTHROPIC_TEMPERATURE", 0.7)
	cfg.AnthropicMaxTokens = getEnvInt("ANTHROPIC_MAX_TOKENS", 1000)
	cfg.AnthropicCallsPerMin = getEnvInt("ANTHROPIC_CALLS_PER_MIN", 60)
	cfg.SearchDebounce = getEnvDuration("SEARCH_DEBOUNCE", 400*time.Millisecond)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAI = getEnvInt("RATE_LIMIT_AI", 20)
	cfg.ReminderInterval = getEnvDuration("REMINDER_INTERVAL", time.Hour)
	cfg.ReminderMaxConcurrent = getEnvInt("REMINDER_MAX_CONCURRENT", 10)
	cfg.LinkCheckInterval = getEnvDuration("LINK_CHECK_INTERVAL", 6*time.Hour)
	cfg.LinkCheckTTL = getEnvDuration("LINK_CHECK_TTL", 24*time.Hour)
	cfg.LinkCheckTimeout = getEnvDuration("LINK_CHECK_TIMEOUT", 10*time.Second)
	cfg.LinkCheckMaxSize = getEnvInt64("LINK_CHECK_MAX_SIZE", 1048576)
	cfg.LinkCheckMaxPerCycle = getEnvInt("LINK_CHECK_MAX_PER_CYCLE", 200)
	cfg.ReminderRetentionDays = getEnvInt("REMINDER_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
