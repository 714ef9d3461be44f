// Package cmd provides the CLI commands for the search core.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutao/search-core/internal/config"
	searcherrors "github.com/tutao/search-core/internal/errors"
	"github.com/tutao/search-core/internal/logging"
	"github.com/tutao/search-core/pkg/version"
)

var (
	debugMode      bool
	storePathFlag  string
	fixtureDirFlag string
	loggingCleanup func()
)

// NewRootCmd creates the root command for search-cli.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search-cli",
		Short:   "Query and extend an encrypted full-text mail index",
		Long:    `search-cli drives the encrypted search core directly: run a query, page through more of its results, or extend index coverage back to a point in time.`,
		Version: version.Version,
	}
	cmd.SetVersionTemplate("search-cli version {{.Version}}\n")
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&storePathFlag, "store", "", "Override the index database path")
	cmd.PersistentFlags().StringVar(&fixtureDirFlag, "fixtures", "", "Override the fixture document directory")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newMoreCmd())
	cmd.AddCommand(newExtendCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command, rendering a returned error the way the
// teacher's CLI reports failures: a concise message plus hint and error
// code, not cobra's raw err.Error() dump.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, searcherrors.FormatForCLI(err))
	}
	return err
}

// loadConfig layers the project configuration under the current directory
// and applies this invocation's CLI overrides on top, the highest-precedence
// source per internal/config's layering order.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if storePathFlag != "" {
		cfg.Store.Path = storePathFlag
	}
	if fixtureDirFlag != "" {
		cfg.Indexer.FixtureDir = fixtureDirFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
