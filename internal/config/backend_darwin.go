//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Settings live in the user defaults database under this domain, scriptable
// via the defaults(1) tool.
const defaultsDomain = "com.applypilot.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "applypilot-data"
	}
	return filepath.Join(home, "Library", "Application Support", "applypilot")
}

func apiKeyHint() string {
	return " or macOS Keychain (service: applypilot, account: remote_api_key)"
}

type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain}
}

// run invokes defaults(1). A missing key surfaces as exit code 1, which is
// reported as found=false rather than an error.
func (b *defaultsBackend) run(args ...string) (string, bool, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults %s: %w (%s)", args[0], err, s)
	}
	return s, true, nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	return b.run("read", b.domain, key)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.run("read", b.domain, key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s is not an integer: %q", key, s)
	}
	return i, true, nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	_, _, err := b.run("write", b.domain, key, "-string", val)
	return err
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	_, _, err := b.run("write", b.domain, key, "-int", strconv.Itoa(val))
	return err
}

// Delete tolerates keys that were never set.
func (b *defaultsBackend) Delete(key string) error {
	_, _, err := b.run("delete", b.domain, key)
	return err
}
