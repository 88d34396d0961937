package config

import (
	"log/slog"
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Server.MCPPort != 4001 {
		t.Errorf("Server.MCPPort = %d, want 4001", cfg.Server.MCPPort)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "qwen2.5:3b" {
		t.Errorf("Ollama.ChatModel = %q, want qwen2.5:3b", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q, want nomic-embed-text", cfg.Ollama.EmbedModel)
	}
	if cfg.Index.TopK != 3 {
		t.Errorf("Index.TopK = %d, want 3", cfg.Index.TopK)
	}
	if cfg.Remote.APIKey != "" {
		t.Errorf("Remote.APIKey = %q, want empty", cfg.Remote.APIKey)
	}
}

func TestBackendOverride(t *testing.T) {
	b := &mapBackend{data: map[string]any{
		"server.port":       5000,
		"ollama.chat_model": "llama3.1:8b",
		"storage.data_dir":  "/tmp/applypilot-test",
	}}
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Ollama.ChatModel != "llama3.1:8b" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Storage.DataDir != "/tmp/applypilot-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestEnvOverride(t *testing.T) {
	b := &mapBackend{data: map[string]any{
		"ollama.embed_model": "backend-model",
	}}
	t.Setenv("APPLYPILOT_OLLAMA_EMBED_MODEL", "env-model")
	t.Setenv("APPLYPILOT_INDEX_TOP_K", "7")

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.EmbedModel != "env-model" {
		t.Errorf("EmbedModel = %q, want env override", cfg.Ollama.EmbedModel)
	}
	if cfg.Index.TopK != 7 {
		t.Errorf("Index.TopK = %d, want 7", cfg.Index.TopK)
	}
}

func TestKeychainFallbackForAPIKey(t *testing.T) {
	t.Setenv("APPLYPILOT_REMOTE_API_KEY", "")
	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{value: "kc-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.APIKey != "kc-key" {
		t.Errorf("Remote.APIKey = %q, want keychain value", cfg.Remote.APIKey)
	}
}

func TestEnvAPIKeyBeatsKeychain(t *testing.T) {
	t.Setenv("APPLYPILOT_REMOTE_API_KEY", "env-key")
	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{value: "kc-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.APIKey != "env-key" {
		t.Errorf("Remote.APIKey = %q, want env value", cfg.Remote.APIKey)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Remote.APIKey = "super-secret"
	for _, ki := range ShowAll(cfg) {
		if ki.Key == "remote.api_key" {
			t.Error("ShowAll exposed remote.api_key")
		}
		if ki.Value == "super-secret" {
			t.Errorf("ShowAll leaked the secret via %s", ki.Key)
		}
	}
}

func TestShowAllMarksEnvOverrides(t *testing.T) {
	t.Setenv("APPLYPILOT_SERVER_PORT", "5000")
	cfg := defaults()
	applyEnvOverrides(&cfg)

	for _, ki := range ShowAll(cfg) {
		switch ki.Key {
		case "server.port":
			if !ki.FromEnv || ki.Value != "5000" {
				t.Errorf("server.port = %+v, want FromEnv with value 5000", ki)
			}
		default:
			if ki.FromEnv {
				t.Errorf("%s marked FromEnv without an override", ki.Key)
			}
		}
	}
}

func TestSetKeyRejectsUnknownAndSecret(t *testing.T) {
	err := SetKey("no.such.key", "x")
	if err == nil {
		t.Fatal("SetKey accepted an unknown key")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("unknown-key error does not list valid keys: %v", err)
	}
	if err := SetKey("remote.api_key", "x"); err == nil {
		t.Error("SetKey accepted a secret key")
	}
}

func TestUnsetKeyRejectsUnknown(t *testing.T) {
	if err := UnsetKey("no.such.key"); err == nil {
		t.Error("UnsetKey accepted an unknown key")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LogConfig{Level: tt.in}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
