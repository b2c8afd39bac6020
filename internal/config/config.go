// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	RNGSeed     uint64

	Draw     DrawConfig
	Wallet   WalletConfig
	Reasoner ReasonerConfig
	OpenAI   OpenAIConfig
	ChatRate RateConfig
}

// DrawConfig holds the length of each draw phase.
type DrawConfig struct {
	Open     time.Duration
	CutOff   time.Duration
	Reveal   time.Duration
	Complete time.Duration
}

// WalletConfig holds the game economics.
type WalletConfig struct {
	EntryCost       int
	StartingBalance int
}

// ReasonerConfig selects and exposes the reasoning backend.
type ReasonerConfig struct {
	URL         string
	Timeout     time.Duration
	GRPCAddr    string
	GRPCPort    string
	ServeHTTP   bool
	PromptsPath string
}

// OpenAIConfig configures the in-process tool-calling reasoner.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// RateConfig bounds how often a player may message the assistant.
type RateConfig struct {
	PerMinute int
	Burst     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/pick27.db"),
		RNGSeed:     getEnvUint64("RNG_SEED", 0),
		Draw: DrawConfig{
			Open:     getEnvDuration("DRAW_OPEN_DURATION", 60*time.Second),
			CutOff:   getEnvDuration("DRAW_CUTOFF_DURATION", 10*time.Second),
			Reveal:   getEnvDuration("DRAW_REVEAL_DURATION", 10*time.Second),
			Complete: getEnvDuration("DRAW_COMPLETE_DURATION", 5*time.Second),
		},
		Wallet: WalletConfig{
			EntryCost:       getEnvInt("ENTRY_COST", 10),
			StartingBalance: getEnvInt("STARTING_BALANCE", 1000),
		},
		Reasoner: ReasonerConfig{
			URL:         getEnv("REASONER_URL", ""),
			Timeout:     getEnvDuration("REASONER_TIMEOUT", 30*time.Second),
			GRPCAddr:    getEnv("REASONER_GRPC_ADDR", ""),
			GRPCPort:    getEnv("REASONER_GRPC_PORT", ""),
			ServeHTTP:   getEnvBool("SERVE_REASONER", false),
			PromptsPath: getEnv("PROMPTS_PATH", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 500),
			Timeout:     getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		ChatRate: RateConfig{
			PerMinute: getEnvInt("CHAT_RATE_LIMIT_PER_MINUTE", 10),
			Burst:     getEnvInt("CHAT_RATE_LIMIT_BURST", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	for name, d := range map[string]time.Duration{
		"DRAW_OPEN_DURATION":     c.Draw.Open,
		"DRAW_CUTOFF_DURATION":   c.Draw.CutOff,
		"DRAW_REVEAL_DURATION":   c.Draw.Reveal,
		"DRAW_COMPLETE_DURATION": c.Draw.Complete,
	} {
		if d < time.Second {
			return fmt.Errorf("%s must be at least 1s", name)
		}
	}
	if c.Wallet.EntryCost < 0 {
		return fmt.Errorf("ENTRY_COST must be >= 0")
	}
	if c.Wallet.StartingBalance < 0 {
		return fmt.Errorf("STARTING_BALANCE must be >= 0")
	}
	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be > 0")
	}
	if c.ChatRate.PerMinute <= 0 || c.ChatRate.Burst <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_PER_MINUTE and CHAT_RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvUint64(key string, fallback uint64) uint64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
