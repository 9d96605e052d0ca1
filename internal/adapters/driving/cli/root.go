// Package cli provides the hybridsearch command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/hybridsearch/internal/app"
	"github.com/custodia-labs/hybridsearch/internal/core/domain"
	"github.com/custodia-labs/hybridsearch/internal/core/ports/driving"
	"github.com/custodia-labs/hybridsearch/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// skipServices marks commands that only need settings.
const skipServices = "skip-services"

var (
	configPath string
	envFile    string
	verbose    bool
)

// Services used by the commands. setup wires them from the settings unless
// they were injected beforehand.
var (
	settings      = domain.DefaultSettings()
	settingsStore *file.SettingsStore
	searchService driving.SearchService
	ingestService driving.IngestService
	application   *app.App
)

var rootCmd = &cobra.Command{
	Use:   "hybridsearch",
	Short: "Hybrid keyword and semantic search over your team's documents",
	Long: `hybridsearch ingests Jira issues, Confluence pages, GitHub issues and local
files, and answers queries by fusing BM25 keyword ranking with vector
similarity.

Configuration is read from ~/.hybridsearch/config.toml unless --config is
given. Secrets are referenced by environment variable name and may be kept
in a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.hybridsearch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and releases whatever it wired.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := teardown(); cerr != nil {
		logger.Warn("Shutdown: %v", cerr)
	}
	return err
}

// setup loads the environment and settings, then wires the services.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if err := loadEnv(); err != nil {
		return err
	}

	store, err := file.NewSettingsStore(configPath)
	if err != nil {
		return err
	}
	loaded, err := store.Load()
	if err != nil {
		return err
	}
	settingsStore = store
	settings = *loaded
	logger.Debug("Config: %s", store.Path())

	if _, skip := cmd.Annotations[skipServices]; skip {
		return nil
	}
	if searchService != nil && ingestService != nil {
		return nil
	}

	a, err := app.New(cmd.Context(), settings)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	application = a
	searchService = a.Search
	ingestService = a.Ingest
	return nil
}

// loadEnv loads --env-file, or ./.env when present.
func loadEnv() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// teardown closes the wired application, if any.
func teardown() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	searchService = nil
	ingestService = nil
	return err
}
