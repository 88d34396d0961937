package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// KeyInfo describes one settable key for the config command.
type KeyInfo struct {
	Key     string
	EnvVar  string
	Value   string
	FromEnv bool
}

// ShowAll lists every non-secret key with its effective value. FromEnv marks
// values currently overridden by their environment variable.
func ShowAll(cfg Config) []KeyInfo {
	infos := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if s.secret {
			continue
		}
		infos = append(infos, KeyInfo{
			Key:     s.key,
			EnvVar:  s.env,
			Value:   fmt.Sprint(s.extract(cfg)),
			FromEnv: os.Getenv(s.env) != "",
		})
	}
	return infos
}

func findSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key == key {
			if s.secret {
				return keySpec{}, fmt.Errorf("%s is a secret; %s", key, RemoteKeyHint())
			}
			return s, nil
		}
	}
	return keySpec{}, fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(ValidKeys(), ", "))
}

// SetKey persists one key to the platform backend.
func SetKey(key, value string) error {
	s, err := findSpec(key)
	if err != nil {
		return err
	}
	b := newPlatformBackend()
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s expects an integer: %w", key, err)
		}
		return b.SetInt(key, i)
	default:
		return b.SetString(key, value)
	}
}

// UnsetKey removes a persisted key so the built-in default applies again.
func UnsetKey(key string) error {
	s, err := findSpec(key)
	if err != nil {
		return err
	}
	return newPlatformBackend().Delete(s.key)
}

// ValidKeys lists the non-secret key names accepted by SetKey.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
