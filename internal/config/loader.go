package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment. Environment
// variables use the SKYCAST_ prefix with underscores for nesting, e.g.
// SKYCAST_SERVER_PORT overrides server.port.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".skycast", "skycast.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("SKYCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindKeys(v)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Logging.File == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Logging.File = filepath.Join(home, ".skycast", "skycast.log")
		}
	}

	return cfg, nil
}

// bindKeys registers every config key with viper so that env-only
// overrides are picked up even without a config file.
func bindKeys(v *viper.Viper) {
	keys := []string{
		"server.host",
		"server.port",
		"server.max_sessions",
		"server.max_message_bytes",
		"dispatch.time_budget",
		"dispatch.max_result_bytes",
		"weather.key",
		"weather.base_url",
		"weather.timeout",
		"logging.level",
		"logging.file",
		"logging.max_size",
		"logging.max_age",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
