package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Extract ExtractConfig
	Tagger  TaggerConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port       int
	MCPEnabled bool
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	Temperature float64
	MaxTokens   int
}

type StorageConfig struct {
	// DSN selects the campaign store. Empty means SQLite under DataDir;
	// a postgres:// URL selects PostgreSQL.
	DSN     string
	DataDir string
}

type ExtractConfig struct {
	Timeout string
}

type TaggerConfig struct {
	MaxTags int
}

type LogConfig struct {
	Level string
}

// ConfigBackend abstracts platform-specific config storage.
// macOS uses UserDefaults (via `defaults` CLI), other platforms use an
// XDG JSON file.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// TimeoutDuration parses Timeout, falling back to 15s when it is malformed.
func (e ExtractConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Extract: ExtractConfig{
			Timeout: "15s",
		},
		Tagger: TaggerConfig{
			MaxTags: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.adcraft.app) and the API
// key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/adcraft/config.json
// and the API key falls back to $XDG_DATA_HOME/adcraft/secrets.json.
//
// Environment variables (ADCRAFT_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get("adcraft", "llm_api_key"); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: LLM API key. "+
			"Set it via environment variable ADCRAFT_LLM_API_KEY%s", apiKeyHint())
	}
	if cfg.LLM.Model == "" {
		return Config{}, fmt.Errorf("missing required config: llm.model (ADCRAFT_LLM_MODEL)")
	}
	if cfg.LLM.VisionModel == "" {
		cfg.LLM.VisionModel = cfg.LLM.Model
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
