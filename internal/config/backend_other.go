//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "applypilot-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "applypilot")
}

func apiKeyHint() string {
	return ""
}

// fileBackend keeps settings as a flat JSON object under the XDG config
// directory. Values are normalized to strings on load so the file stays
// hand-editable; integer keys are parsed on read.
type fileBackend struct {
	path string
	data map[string]string
}

func newPlatformBackend() ConfigBackend {
	b := &fileBackend{path: configFilePath(), data: map[string]string{}}
	b.load()
	return b
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("applypilot", "config.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "applypilot", "config.json")
}

func (b *fileBackend) load() {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("config file unreadable, using defaults", "path", b.path, "error", err)
		return
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		slog.Warn("config file malformed, using defaults", "path", b.path, "error", err)
		return
	}
	for k, v := range values {
		b.data[k] = fmt.Sprint(v)
	}
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, raw, 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	s, ok := b.data[key]
	return s, ok, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	s, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s is not an integer: %q", key, s)
	}
	return i, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = strconv.Itoa(val)
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
