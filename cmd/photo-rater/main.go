package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/config"
	"github.com/fpang/photo-rater/internal/logging"
	"github.com/fpang/photo-rater/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "photo-rater",
	Short: "Rate batches of photos S, A or B with an AI critic",
	Long: `Photo Rater sends each photo of a batch to an AI model and records a
tier grade (S, A or B) with a short critique. Run a local web UI with
"serve", or rate a directory from the terminal with "rate".

Examples:
  photo-rater serve
  photo-rater rate -d ~/Pictures/trip --out ratings.csv --report
  photo-rater key set --provider anthropic`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.photo-rater/config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("provider", chat.DefaultProvider, "rating provider (gemini, anthropic)")
	pf.StringP("model", "m", "", "model name (default depends on provider)")
	pf.String("data-dir", config.DefaultDataDir(), "directory for the settings database")
	pf.IntP("concurrency", "c", batch.DefaultConcurrency, "maximum rating requests in flight")

	_ = viper.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyProvider, pf.Lookup("provider"))
	_ = viper.BindPFlag(config.KeyModel, pf.Lookup("model"))
	_ = viper.BindPFlag(config.KeyDataDir, pf.Lookup("data-dir"))
	_ = viper.BindPFlag(config.KeyConcurrency, pf.Lookup("concurrency"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	start := time.Now()

	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	c, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Init(c.LogLevel)
	cfg = c

	logging.NewStartupLogger(cmd.Name()).
		Version(version).
		Config("provider", c.Provider).
		Config("model", c.Model).
		Config("concurrency", fmt.Sprint(c.Concurrency)).
		Config("max_attempts", fmt.Sprint(c.MaxAttempts)).
		Config("backoff_base", c.BackoffBase.String()).
		Feature("configFile", viper.ConfigFileUsed() != "").
		InitDuration(time.Since(start)).
		Log()
	return nil
}

// openStore opens the settings database under the data directory.
func openStore(c *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(filepath.Join(c.DataDir, store.DefaultFileName))
}
