// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and validates them for either the server or the offline tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationMode selects which settings are required.
type ValidationMode int

const (
	// ServerMode requires LINE credentials.
	ServerMode ValidationMode = iota
	// ToolMode only needs data settings (faqctl).
	ToolMode
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir           string
	CorpusFile        string // JSON array, or a SQLite file when it ends in .db/.sqlite
	StopwordsZHFile   string
	StopwordsENFile   string
	Tokenizer         string // "gse" or "bigram"
	SegmenterDict     string // gse embedded dictionary: zh, zh_s, zh_t
	CorpusLoadTimeout time.Duration

	// Matching Configuration
	Threshold      float64
	FallbackAnswer string

	Bot BotConfig
	R2  R2Config

	// Sentry (Better Stack Errors)
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack Logs
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // empty = no auth
}

// BotConfig holds bot-specific configuration
type BotConfig struct {
	WebhookTimeout time.Duration

	// Rate Limits (Token Bucket Algorithm)
	UserRateLimitBurst        float64
	UserRateLimitRefillPerSec float64
	GlobalRateLimitRPS        float64

	// LINE API Constraints
	MaxEventsPerWebhook int
	MinReplyTokenLength int
	MaxMessageLength    int

	// GroupAnswerAll answers every text in group and room chats instead of
	// only messages that @mention the bot.
	GroupAnswerAll bool
}

// R2Config locates the published corpus bundle in Cloudflare R2.
type R2Config struct {
	Enabled         bool
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Prefix          string // object key prefix, e.g. "faq/"
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForTool reads configuration for the offline CLI; LINE credentials are
// not required.
func LoadForTool() (*Config, error) {
	return LoadForMode(ToolMode)
}

// LoadForMode reads configuration and validates it for mode.
// It attempts to load a .env file first.
func LoadForMode(mode ValidationMode) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		Port:            getEnv(EnvPort, DefaultPort),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:           getEnv(EnvDataDir, "."),
		CorpusFile:        getEnv(EnvCorpusFile, DefaultCorpusFile),
		StopwordsZHFile:   getEnv(EnvStopwordsZHFile, DefaultStopwordsZHFile),
		StopwordsENFile:   getEnv(EnvStopwordsENFile, DefaultStopwordsENFile),
		Tokenizer:         strings.ToLower(getEnv(EnvTokenizer, TokenizerGse)),
		SegmenterDict:     getEnv(EnvSegmenterDict, "zh"),
		CorpusLoadTimeout: getDurationEnv(EnvCorpusLoadTimeout, CorpusLoad),

		Threshold:      getFloatEnv(EnvThreshold, DefaultThreshold),
		FallbackAnswer: getEnv(EnvFallbackAnswer, DefaultFallbackAnswer),

		Bot: BotConfig{
			WebhookTimeout:            getDurationEnv(EnvWebhookTimeout, WebhookProcessing),
			UserRateLimitBurst:        getFloatEnv(EnvUserRateBurst, 10),
			UserRateLimitRefillPerSec: getFloatEnv(EnvUserRateRefill, 0.2), // 1 per 5s
			GlobalRateLimitRPS:        getFloatEnv(EnvGlobalRateRPS, 80),   // LINE allows 100
			MaxEventsPerWebhook:       LINEMaxEventsPerWebhook,
			MinReplyTokenLength:       LINEMinReplyTokenLength,
			MaxMessageLength:          LINEMaxTextMessageLength,
			GroupAnswerAll:            getBoolEnv(EnvGroupAnswerAll, false),
		},

		R2: R2Config{
			Enabled:         getBoolEnv(EnvR2Enabled, false),
			AccountID:       getEnv(EnvR2AccountID, ""),
			AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
			SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
			BucketName:      getEnv(EnvR2BucketName, ""),
			Prefix:          getEnv(EnvR2Prefix, "faq/"),
		},

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for server mode.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks the configuration, joining every problem found.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if mode == ServerMode {
		if c.LineChannelToken == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
		}
		if c.LineChannelSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
		}
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if err := c.Bot.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bot config: %w", err))
		}
	}

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.CorpusFile == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvCorpusFile))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvThreshold, c.Threshold))
	}
	if strings.TrimSpace(c.FallbackAnswer) == "" {
		errs = append(errs, fmt.Errorf("%s cannot be blank", EnvFallbackAnswer))
	}
	if c.Tokenizer != TokenizerGse && c.Tokenizer != TokenizerBigram {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvTokenizer, TokenizerGse, TokenizerBigram, c.Tokenizer))
	}
	if c.CorpusLoadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCorpusLoadTimeout, c.CorpusLoadTimeout))
	}
	if err := c.R2.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("r2 config: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks bot limits.
func (b BotConfig) Validate() error {
	var errs []error
	if b.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", b.WebhookTimeout))
	}
	if b.UserRateLimitBurst <= 0 || b.UserRateLimitRefillPerSec <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if b.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate limit must be positive, got %v", b.GlobalRateLimitRPS))
	}
	if b.MaxMessageLength <= 0 || b.MaxMessageLength > LINEMaxTextMessageLength {
		errs = append(errs, fmt.Errorf("max message length must be within (0, %d]", LINEMaxTextMessageLength))
	}
	return errors.Join(errs...)
}

// Validate checks R2 settings when R2 is enabled.
func (r R2Config) Validate() error {
	if !r.Enabled {
		return nil
	}
	var errs []error
	for key, v := range map[string]string{
		EnvR2AccountID:       r.AccountID,
		EnvR2AccessKeyID:     r.AccessKeyID,
		EnvR2SecretAccessKey: r.SecretAccessKey,
		EnvR2BucketName:      r.BucketName,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required when %s is set", key, EnvR2Enabled))
		}
	}
	return errors.Join(errs...)
}

// CorpusPath returns the full path to the corpus file.
func (c *Config) CorpusPath() string {
	return filepath.Join(c.DataDir, c.CorpusFile)
}

// StopwordPaths returns the full paths of the two stop-word lists.
func (c *Config) StopwordPaths() (zh, en string) {
	return filepath.Join(c.DataDir, c.StopwordsZHFile), filepath.Join(c.DataDir, c.StopwordsENFile)
}

// DataFiles lists every file the corpus loader reads, relative to DataDir.
// Remote sync uses the same names as object keys.
func (c *Config) DataFiles() []string {
	return []string{c.CorpusFile, c.StopwordsZHFile, c.StopwordsENFile}
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves bool environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
