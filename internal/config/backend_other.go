//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// xdgDir resolves an XDG base directory, falling back to a path under $HOME.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "adcraft")
}

func apiKeyHint() string {
	return " or " + secretsFilePath()
}

// jsonBackend keeps settings as a flat JSON object at
// $XDG_CONFIG_HOME/adcraft/config.json.
type jsonBackend struct {
	path   string
	values map[string]any
}

func newPlatformBackend() ConfigBackend {
	path := filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "adcraft", "config.json")
	return openJSONBackend(path)
}

func openJSONBackend(path string) *jsonBackend {
	b := &jsonBackend{path: path, values: make(map[string]any)}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(raw, &b.values); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			b.values = make(map[string]any)
		}
	}
	return b
}

func (b *jsonBackend) flush() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(b.path, out, 0o600)
}

func (b *jsonBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (b *jsonBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unsupported value type %T", key, v)
}

func (b *jsonBackend) SetString(key, val string) error {
	b.values[key] = val
	return b.flush()
}

func (b *jsonBackend) SetInt(key string, val int) error {
	b.values[key] = val
	return b.flush()
}

func (b *jsonBackend) Delete(key string) error {
	delete(b.values, key)
	return b.flush()
}
