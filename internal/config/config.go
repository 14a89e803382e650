// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"dlev/finsync/internal/models"
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Database struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Sync struct {
		DefaultDays int `mapstructure:"default_days" yaml:"default_days"`
	} `mapstructure:"sync" yaml:"sync"`

	Retry struct {
		MaxAttempts    int `mapstructure:"max_attempts" yaml:"max_attempts"`
		InitialDelayMS int `mapstructure:"initial_delay_ms" yaml:"initial_delay_ms"`
	} `mapstructure:"retry" yaml:"retry"`

	Mappings struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"mappings" yaml:"mappings"`

	// Email carries the shared mailbox used by scraping sources for MFA code
	// retrieval. Opaque to the sync core.
	Email struct {
		Address  string `mapstructure:"address" yaml:"address"`
		Password string `mapstructure:"password" yaml:"-"`
		IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	} `mapstructure:"email" yaml:"email"`

	Institutions []InstitutionConfig `mapstructure:"institutions" yaml:"institutions"`
}

// InstitutionConfig configures one institution: how to reach it and which
// credential sets to sync.
type InstitutionConfig struct {
	Name        string             `mapstructure:"name" yaml:"name"`
	Type        string             `mapstructure:"type" yaml:"type"`
	Source      SourceConfig       `mapstructure:"source" yaml:"source"`
	Credentials []CredentialConfig `mapstructure:"credentials" yaml:"credentials"`
}

// SourceConfig selects and parameterizes the source variant.
type SourceConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"`
	Path string `mapstructure:"path" yaml:"path"`
}

// CredentialConfig is one credential set for an institution. Label is the
// user-assigned handle used by the --account selector.
type CredentialConfig struct {
	Label    string `mapstructure:"label" yaml:"label"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"-"`
	ID       string `mapstructure:"id" yaml:"id"`
}

// Load initializes Viper configuration with hierarchical loading:
// defaults, then an optional config file, then FINSYNC_* environment
// variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.finsync")
		v.AddConfigPath(".finsync")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FINSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path != "" {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			// A broken discovered file must not take the tool down, but
			// silently ignoring it hides real mistakes.
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
		// No config file is fine; defaults and env vars still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.path", filepath.Join(".finsync", "ledger.db"))
	v.SetDefault("sync.default_days", 30)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay_ms", 500)
	v.SetDefault("mappings.file", filepath.Join(".finsync", "mappings.yaml"))
}

func validate(cfg *Config) error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", cfg.Log.Format)
	}
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.MaxAttempts > 10 {
		return fmt.Errorf("retry.max_attempts must be between 1 and 10, got: %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Sync.DefaultDays < 1 {
		return fmt.Errorf("sync.default_days must be positive, got: %d", cfg.Sync.DefaultDays)
	}
	for _, inst := range cfg.Institutions {
		if !models.Institution(inst.Name).Valid() {
			return fmt.Errorf("unknown institution: %s", inst.Name)
		}
		switch models.SyncType(inst.Type) {
		case models.SyncTypeBroker, models.SyncTypePension, models.SyncTypeCreditCard:
		default:
			return fmt.Errorf("institution %s: invalid type %q", inst.Name, inst.Type)
		}
		if len(inst.Credentials) == 0 {
			return fmt.Errorf("institution %s: no credential sets configured", inst.Name)
		}
	}
	return nil
}

// Institution returns the configuration block for one institution.
func (c *Config) Institution(name models.Institution) (InstitutionConfig, bool) {
	for _, inst := range c.Institutions {
		if models.Institution(inst.Name) == name {
			return inst, true
		}
	}
	return InstitutionConfig{}, false
}

// ConfigureLogging builds a logrus logger from the Log section.
func ConfigureLogging(cfg *Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.ToLower(cfg.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
