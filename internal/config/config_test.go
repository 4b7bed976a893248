package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "STORE_RETENTION_CAP", "SESSION_IDLE_TIMEOUT",
		"SWEEP_INTERVAL", "CHAT_MAX_MESSAGE_CHARS", "HEALTH_CHECK_INTERVAL",
		"OLLAMA_MODEL", "ARK_MODEL", "ARK_API_KEY", "ARK_TEMPERATURE",
		"ARK_MAX_TOKENS", "PERSONAS_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Store.Driver)
	}
	if cfg.Store.RetentionCap != 200 {
		t.Errorf("expected retention cap 200, got %d", cfg.Store.RetentionCap)
	}
	if cfg.Store.IdleTimeout != 30*time.Minute {
		t.Errorf("expected 30m idle timeout, got %v", cfg.Store.IdleTimeout)
	}
	if cfg.Chat.MaxMessageChars != 8000 {
		t.Errorf("expected 8000 max chars, got %d", cfg.Chat.MaxMessageChars)
	}
	if cfg.Health.CheckInterval != 30*time.Second {
		t.Errorf("expected 30s check interval, got %v", cfg.Health.CheckInterval)
	}
	if cfg.Ollama.Enabled() {
		t.Error("ollama should be disabled without OLLAMA_MODEL")
	}
	if cfg.Ark.Enabled() {
		t.Error("ark should be disabled without credentials")
	}
}

func TestLoadServerConfigPortForms(t *testing.T) {
	cases := map[string]string{
		"9000":           ":9000",
		":9000":          ":9000",
		"127.0.0.1:9000": "127.0.0.1:9000",
	}
	for raw, want := range cases {
		t.Setenv("PORT", raw)
		cfg, err := loadServerConfig()
		if err != nil {
			t.Errorf("PORT=%q: %v", raw, err)
			continue
		}
		if cfg.Addr != want {
			t.Errorf("PORT=%q: expected %q, got %q", raw, want, cfg.Addr)
		}
	}

	t.Setenv("PORT", "80 80")
	if _, err := loadServerConfig(); err == nil {
		t.Error("expected error for PORT with spaces")
	}
}

func TestLoadStoreConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	if _, err := loadStoreConfig(); err == nil {
		t.Error("expected error for unknown STORE_DRIVER")
	}
}

func TestParseEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if val, err := parseIntEnv("TEST_INT", 1); err != nil || val != 42 {
		t.Errorf("parseIntEnv: got %d, %v", val, err)
	}
	t.Setenv("TEST_INT", "not-a-number")
	if _, err := parseIntEnv("TEST_INT", 1); err == nil {
		t.Error("expected error for malformed int")
	}

	t.Setenv("TEST_OPT", "")
	if val, err := parseOptionalFloatEnv("TEST_OPT"); err != nil || val != nil {
		t.Errorf("parseOptionalFloatEnv empty: got %v, %v", val, err)
	}
	t.Setenv("TEST_OPT", "0.7")
	if val, err := parseOptionalFloatEnv("TEST_OPT"); err != nil || val == nil || *val != 0.7 {
		t.Errorf("parseOptionalFloatEnv: got %v, %v", val, err)
	}
	t.Setenv("TEST_OPT", "256")
	if val, err := parseOptionalIntEnv("TEST_OPT"); err != nil || val == nil || *val != 256 {
		t.Errorf("parseOptionalIntEnv: got %v, %v", val, err)
	}

	t.Setenv("TEST_DUR", "90s")
	if val, err := parseDurationEnv("TEST_DUR", time.Minute); err != nil || val != 90*time.Second {
		t.Errorf("parseDurationEnv: got %v, %v", val, err)
	}
	t.Setenv("TEST_DUR", "ninety")
	if _, err := parseDurationEnv("TEST_DUR", time.Minute); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestArkConfigEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  ArkConfig
		want bool
	}{
		{"api key", ArkConfig{Model: "m", APIKey: "k"}, true},
		{"ak/sk pair", ArkConfig{Model: "m", AccessKey: "a", SecretKey: "s"}, true},
		{"missing model", ArkConfig{APIKey: "k"}, false},
		{"partial pair", ArkConfig{Model: "m", AccessKey: "a"}, false},
		{"nothing", ArkConfig{}, false},
	}
	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Errorf("%s: expected %t, got %t", tc.name, tc.want, got)
		}
	}
}
