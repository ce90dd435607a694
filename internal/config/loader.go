package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".sealbot", "config.json")
}

// DataDir returns the sealbot data directory, creating it if needed.
func DataDir() string {
	dir := filepath.Join(homeDir(), ".sealbot")
	os.MkdirAll(dir, 0o755)
	return dir
}

// CursorDBPath returns the sqlite cursor file, honoring the configured
// override.
func (c *Config) CursorDBPath() string {
	if c.Cursors.Path != "" {
		return c.Cursors.Path
	}
	return filepath.Join(homeDir(), ".sealbot", "cursors.db")
}

// Load reads configuration from the default path, then applies environment
// overrides (a .env file is honored when present).
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads configuration from a specific path, falling back to
// defaults for anything missing.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	// Zero-value defaults for fields older config files may lack.
	if cfg.Playerok.RequestTimeout == 0 {
		cfg.Playerok.RequestTimeout = 15
	}
	if cfg.Playerok.MaxChallengeRetries == 0 {
		cfg.Playerok.MaxChallengeRetries = 7
	}
	if cfg.Listener.PollInterval == 0 {
		cfg.Listener.PollInterval = 4
	}
	if cfg.Listener.PageSize == 0 {
		cfg.Listener.PageSize = 24
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays secrets from the environment so they can stay out of
// the config file. A .env next to the working directory is loaded first.
func applyEnv(cfg *Config) {
	godotenv.Load()

	if v := os.Getenv("SEALBOT_TOKEN"); v != "" {
		cfg.Playerok.Token = v
	}
	if v := os.Getenv("SEALBOT_PROXY"); v != "" {
		cfg.Playerok.Proxy = v
	}
	if v := os.Getenv("SEALBOT_USER_AGENT"); v != "" {
		cfg.Playerok.UserAgent = v
	}
	if v := os.Getenv("SEALBOT_DISCORD_TOKEN"); v != "" {
		cfg.Notifications.Discord.Token = v
	}
	if v := os.Getenv("SEALBOT_DISCORD_CHANNEL"); v != "" {
		cfg.Notifications.Discord.ChannelID = v
	}
}

// Save writes configuration to the default path.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes configuration to a specific path.
func SaveTo(cfg *Config, path string) error {
	os.MkdirAll(filepath.Dir(path), 0o755)

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o600)
}

// Upgrade reads the existing config file, deep-merges it on top of
// DefaultConfig (local values win), and saves the result so new fields get
// their defaults without losing user values.
func Upgrade() (*Config, error) {
	path := ConfigPath()

	defaultData, _ := json.Marshal(DefaultConfig())
	var defaultMap map[string]any
	json.Unmarshal(defaultData, &defaultMap)

	localData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var localMap map[string]any
	if err := json.Unmarshal(localData, &localMap); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	merged := deepMerge(defaultMap, localMap)

	cfg := DefaultConfig()
	reData, _ := json.Marshal(merged)
	if err := json.Unmarshal(reData, cfg); err != nil {
		return nil, fmt.Errorf("apply merged config: %w", err)
	}

	if err := Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deepMerge recursively merges src into dst. Values from src take priority;
// nested maps merge recursively.
func deepMerge(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, srcVal := range src {
		dstVal, exists := result[k]
		if !exists {
			result[k] = srcVal
			continue
		}
		dstMap, dstOK := dstVal.(map[string]any)
		srcMap, srcOK := srcVal.(map[string]any)
		if dstOK && srcOK {
			result[k] = deepMerge(dstMap, srcMap)
		} else {
			result[k] = srcVal
		}
	}
	return result
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}
