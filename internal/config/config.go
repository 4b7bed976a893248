package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server   ServerConfig
	Ark      ArkConfig
	Ollama   OllamaConfig
	Store    StoreConfig
	Chat     ChatConfig
	Personas PersonaConfig
	Health   HealthConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	chatCfg, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	healthCfg, err := loadHealthConfig()
	if err != nil {
		return nil, err
	}

	arkCfg, err := loadArkConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Ark:      arkCfg,
		Ollama:   loadOllamaConfig(),
		Store:    storeCfg,
		Chat:     chatCfg,
		Personas: PersonaConfig{Path: strings.TrimSpace(os.Getenv("PERSONAS_PATH"))},
		Health:   healthCfg,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ArkConfig describes the remote Ark model backend. Temperature and
// MaxTokens are backend-level defaults; per-persona values take precedence.
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates an Ark chat model instance from this config.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY (or AK/SK pair) and ARK_MODEL")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadArkConfig() (ArkConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ArkConfig{}, err
	}
	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// OllamaConfig describes the local Ollama backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// Enabled reports whether a model has been configured.
func (c OllamaConfig) Enabled() bool {
	return c.Model != ""
}

func loadOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		Model:   strings.TrimSpace(os.Getenv("OLLAMA_MODEL")),
	}
}

// StoreConfig selects and tunes the session store.
type StoreConfig struct {
	Driver        string // "memory" or "sqlite"
	SQLitePath    string
	RetentionCap  int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", "memory"))
	if driver != "memory" && driver != "sqlite" {
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q: want memory or sqlite", driver)
	}

	retention, err := parseIntEnv("STORE_RETENTION_CAP", 200)
	if err != nil {
		return StoreConfig{}, err
	}

	idle, err := parseDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return StoreConfig{}, err
	}

	sweep, err := parseDurationEnv("SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return StoreConfig{}, err
	}

	return StoreConfig{
		Driver:        driver,
		SQLitePath:    getEnvOrDefault("STORE_SQLITE_PATH", "data/sessions.db"),
		RetentionCap:  retention,
		IdleTimeout:   idle,
		SweepInterval: sweep,
	}, nil
}

// ChatConfig bounds inbound messages.
type ChatConfig struct {
	MaxMessageChars int
}

func loadChatConfig() (ChatConfig, error) {
	maxChars, err := parseIntEnv("CHAT_MAX_MESSAGE_CHARS", 8000)
	if err != nil {
		return ChatConfig{}, err
	}
	return ChatConfig{MaxMessageChars: maxChars}, nil
}

// PersonaConfig points at the persona definitions file; empty means the
// built-in seed personas are used.
type PersonaConfig struct {
	Path string
}

// HealthConfig tunes the backend health checker.
type HealthConfig struct {
	CheckInterval time.Duration
}

func loadHealthConfig() (HealthConfig, error) {
	interval, err := parseDurationEnv("HEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return HealthConfig{}, err
	}
	return HealthConfig{CheckInterval: interval}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
