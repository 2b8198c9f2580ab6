package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	envOpenAIAPIKey      = "OPENAI_API_KEY"
	envOpenAIAssistantID = "OPENAI_ASSISTANT_ID"
	envTwilioSID         = "TWILIO_SID"
	envTwilioAuth        = "TWILIO_AUTH"
	envTwilioNumber      = "TWILIO_NUMBER"
	envTelnyxAPIKey      = "TELNYX_API_KEY"
	envTelnyxNumber      = "TELNYX_NUMBER"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envRedisAddr         = "REDIS_ADDR"
	envSupabaseURL       = "SUPABASE_URL"
	envSupabaseKey       = "SUPABASE_KEY"
	envCalendlyLink      = "CALENDLY_LINK"
	envForwardToNumber   = "FORWARD_TO_NUMBER"
	envOwnerNumber       = "OWNER_NUMBER"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Responder  ResponderConfig  `json:"responder"`
	Providers  ProvidersConfig  `json:"providers"`
	Channels   ChannelsConfig   `json:"channels"`
	Contexts   ContextsConfig   `json:"contexts"`
	Transcript TranscriptConfig `json:"transcript"`
	Business   BusinessConfig   `json:"business"`
	Gateway    GatewayConfig    `json:"gateway"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ResponderConfig selects the reply strategy and run resolution limits.
type ResponderConfig struct {
	Mode                string  `json:"mode"`
	Model               string  `json:"model"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
	PollBackoffFactor   float64 `json:"poll_backoff_factor"`
	PollMaxAttempts     int     `json:"poll_max_attempts"`
	RunTimeoutSeconds   int     `json:"run_timeout_seconds"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenAI OpenAIProviderConfig `json:"openai"`
}

// OpenAIProviderConfig configures the OpenAI generation backend client.
type OpenAIProviderConfig struct {
	BaseURL               string `json:"base_url"`
	Organization          string `json:"organization"`
	Project               string `json:"project"`
	APIKey                string `json:"api_key"`
	AssistantID           string `json:"assistant_id"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Twilio   TwilioConfig   `json:"twilio"`
	Telnyx   TelnyxConfig   `json:"telnyx"`
	Telegram TelegramConfig `json:"telegram"`
}

// TwilioConfig configures the Twilio SMS/voice webhook adapter.
type TwilioConfig struct {
	Enabled    bool   `json:"enabled"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	Number     string `json:"number"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
}

// TelnyxConfig configures the Telnyx SMS webhook adapter.
type TelnyxConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
	Number  string `json:"number"`
	BaseURL string `json:"base_url"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// ContextsConfig selects the sender-to-context store driver.
type ContextsConfig struct {
	Driver     string `json:"driver"`
	RedisAddr  string `json:"redis_addr"`
	RedisDB    int    `json:"redis_db"`
	TTLMinutes int    `json:"ttl_minutes"`
}

// TranscriptConfig selects the transcript sink strategy and row backend.
type TranscriptConfig struct {
	Enabled       bool   `json:"enabled"`
	Strategy      string `json:"strategy"`
	Backend       string `json:"backend"`
	SupabaseURL   string `json:"supabase_url"`
	SupabaseKey   string `json:"supabase_key"`
	Table         string `json:"table"`
	RetryAttempts int    `json:"retry_attempts"`
}

// BusinessConfig feeds the single-turn prompt template and call handling.
type BusinessConfig struct {
	Services        string `json:"services"`
	ServiceArea     string `json:"service_area"`
	Hours           string `json:"hours"`
	BookingLink     string `json:"booking_link"`
	ForwardToNumber string `json:"forward_to_number"`
	OwnerNumber     string `json:"owner_number"`
}

// GatewayConfig configures the status HTTP server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides injects secrets and deploy-specific settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	setIfEnv(&cfg.Providers.OpenAI.APIKey, envOpenAIAPIKey)
	setIfEnv(&cfg.Providers.OpenAI.AssistantID, envOpenAIAssistantID)
	setIfEnv(&cfg.Channels.Twilio.AccountSID, envTwilioSID)
	setIfEnv(&cfg.Channels.Twilio.AuthToken, envTwilioAuth)
	setIfEnv(&cfg.Channels.Twilio.Number, envTwilioNumber)
	setIfEnv(&cfg.Channels.Telnyx.APIKey, envTelnyxAPIKey)
	setIfEnv(&cfg.Channels.Telnyx.Number, envTelnyxNumber)
	setIfEnv(&cfg.Channels.Telegram.Token, envTelegramBotToken)
	setIfEnv(&cfg.Contexts.RedisAddr, envRedisAddr)
	setIfEnv(&cfg.Transcript.SupabaseURL, envSupabaseURL)
	setIfEnv(&cfg.Transcript.SupabaseKey, envSupabaseKey)
	setIfEnv(&cfg.Business.BookingLink, envCalendlyLink)
	setIfEnv(&cfg.Business.ForwardToNumber, envForwardToNumber)
	setIfEnv(&cfg.Business.OwnerNumber, envOwnerNumber)

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}
}

func setIfEnv(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is DIALPILOT_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("DIALPILOT_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("DIALPILOT_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
