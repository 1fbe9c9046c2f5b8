// Package config resolves runtime settings from defaults, an optional YAML
// file, PHOTO_RATER_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. PHOTO_RATER_PORT.
const EnvPrefix = "PHOTO_RATER"

// Keys.
const (
	KeyProvider     = "provider"
	KeyModel        = "model"
	KeyConcurrency  = "concurrency"
	KeyTick         = "tick"
	KeyMaxDimension = "max_dimension"
	KeyMaxAttempts  = "max_attempts"
	KeyBackoffBase  = "backoff_base"
	KeyReportSample = "report_sample"
	KeyPort         = "port"
	KeyDataDir      = "data_dir"
	KeyLogLevel     = "log_level"
)

// MaxConcurrency bounds the concurrency setting.
const MaxConcurrency = 16

// Config is the validated runtime configuration.
type Config struct {
	Provider     string
	Model        string
	Concurrency  int
	Tick         time.Duration
	MaxDimension int
	MaxAttempts  int
	BackoffBase  time.Duration
	ReportSample int
	Port         int
	DataDir      string
	LogLevel     string
}

// DefaultDataDir returns ~/.photo-rater.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".photo-rater"
	}
	return filepath.Join(home, ".photo-rater")
}

// Init registers defaults, the config file search path and env binding on v.
// cfgFile overrides the search path when set. A missing config file is not
// an error.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DefaultDataDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyProvider, chat.DefaultProvider)
	v.SetDefault(KeyModel, "")
	v.SetDefault(KeyConcurrency, batch.DefaultConcurrency)
	v.SetDefault(KeyTick, batch.DefaultTickInterval)
	v.SetDefault(KeyMaxDimension, filehandler.DefaultMaxDimension)
	v.SetDefault(KeyMaxAttempts, rating.DefaultMaxAttempts)
	v.SetDefault(KeyBackoffBase, rating.DefaultBackoffBase)
	v.SetDefault(KeyReportSample, rating.DefaultSampleSize)
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDataDir, DefaultDataDir())
	v.SetDefault(KeyLogLevel, "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the resolved settings from v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Provider:     strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		Model:        strings.TrimSpace(v.GetString(KeyModel)),
		Concurrency:  v.GetInt(KeyConcurrency),
		Tick:         v.GetDuration(KeyTick),
		MaxDimension: v.GetInt(KeyMaxDimension),
		MaxAttempts:  v.GetInt(KeyMaxAttempts),
		BackoffBase:  v.GetDuration(KeyBackoffBase),
		ReportSample: v.GetInt(KeyReportSample),
		Port:         v.GetInt(KeyPort),
		DataDir:      v.GetString(KeyDataDir),
		LogLevel:     v.GetString(KeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Model = chat.ResolveModelName(cfg.Provider, cfg.Model)
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if err := chat.ValidateProvider(c.Provider); err != nil {
		return err
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("%s must be between 1 and %d, got %d", KeyConcurrency, MaxConcurrency, c.Concurrency)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyTick, c.Tick)
	}
	if c.MaxDimension < 64 {
		return fmt.Errorf("%s must be at least 64, got %d", KeyMaxDimension, c.MaxDimension)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyMaxAttempts, c.MaxAttempts)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyBackoffBase, c.BackoffBase)
	}
	if c.ReportSample < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyReportSample, c.ReportSample)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%s must be a valid TCP port, got %d", KeyPort, c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%s must be set", KeyDataDir)
	}
	return nil
}

// Policy returns the retry policy for rating and reporting.
func (c *Config) Policy() rating.Policy {
	return rating.Policy{MaxAttempts: c.MaxAttempts, Base: c.BackoffBase}
}
