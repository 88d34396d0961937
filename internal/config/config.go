package config

import (
	"log/slog"
	"path/filepath"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Remote  RemoteConfig
	Profile ProfileConfig
	Index   IndexConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type OllamaConfig struct {
	BaseURL       string
	ChatModel     string
	ClassifyModel string
	EmbedModel    string
}

// RemoteConfig drives the hosted chat/completions gateway. The API key is
// optional; without it only the local Ollama path is available.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type ProfileConfig struct {
	Path string
}

type IndexConfig struct {
	TopK int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// SlogLevel maps the configured level name onto slog. Unknown names fall
// back to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Ollama: OllamaConfig{
			BaseURL:       "http://localhost:11434",
			ChatModel:     "qwen2.5:3b",
			ClassifyModel: "qwen2.5:3b",
			EmbedModel:    "nomic-embed-text",
		},
		Remote: RemoteConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
		},
		Profile: ProfileConfig{
			Path: filepath.Join(dataDir, "profile.yaml"),
		},
		Index: IndexConfig{
			TopK: 3,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.applypilot.app) and the
// remote API key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/applypilot/config.json
// and the key falls back to $XDG_DATA_HOME/applypilot/secrets.json.
//
// Environment variables (APPLYPILOT_*) override backend values on all
// platforms. A missing remote API key is not an error: answering works
// against local Ollama without one.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret retrieval for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Remote.APIKey == "" {
		if key, err := kc.Get("applypilot", "remote_api_key"); err == nil && key != "" {
			cfg.Remote.APIKey = key
		}
	}

	return cfg, nil
}

type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	return keychainGet(service, account)
}
