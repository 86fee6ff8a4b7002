// Package config loads client configuration from a calsync.yaml file and
// CALSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/and161185/calsync/internal/renewal"
	"github.com/and161185/calsync/internal/validate"
)

// EnvPrefix prefixes every environment override, e.g. CALSYNC_API_URL.
const EnvPrefix = "CALSYNC"

// Token store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Config is the client configuration.
type Config struct {
	APIURL         string           `mapstructure:"api_url" validate:"required,http_url"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout" validate:"gt=0"`
	LogLevel       string           `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	TokenStore     TokenStoreConfig `mapstructure:"token_store"`
	Renew          RenewConfig      `mapstructure:"renew"`
	MetricsAddr    string           `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// TokenStoreConfig selects where the session token lives.
type TokenStoreConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=memory file"`
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

// RenewConfig drives the background renewal of the watch command.
type RenewConfig struct {
	Schedule string `mapstructure:"schedule" validate:"required"`
}

// SetDefaults registers defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:4000/api")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("log_level", "warn")
	v.SetDefault("token_store.backend", BackendFile)
	v.SetDefault("token_store.path", "")
	v.SetDefault("token_store.passphrase", "")
	v.SetDefault("renew.schedule", renewal.DefaultSchedule)
	v.SetDefault("metrics_addr", "")
}

// Init points v at configFile, or at the first calsync.yaml/.yml found in the
// working directory or the user config directory, and enables env overrides.
func Init(v *viper.Viper, configFile string) {
	if configFile == "" {
		configFile = findConfigFile(searchPaths())
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("calsync")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

func searchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "calsync"))
	}
	return paths
}

func findConfigFile(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			p := filepath.Join(dir, "calsync"+ext)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// Load reads the file (if any), applies env overrides and validates.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and the cross-field ones.
func (c *Config) Validate() error {
	if err := validate.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", validate.Join(err))
	}
	if err := renewal.ValidSchedule(c.Renew.Schedule); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.TokenStore.Backend == BackendMemory && c.TokenStore.Path != "" {
		return errors.New("invalid config: token_store.path is only used by the file backend")
	}
	return nil
}
