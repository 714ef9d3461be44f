// Package cmd provides the CLI commands for the search-mcp binary.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutao/search-core/internal/app"
	"github.com/tutao/search-core/internal/config"
	"github.com/tutao/search-core/internal/logging"
	"github.com/tutao/search-core/internal/mcp"
	"github.com/tutao/search-core/pkg/version"
)

var (
	debugMode      bool
	storePathFlag  string
	fixtureDirFlag string
	loggingCleanup func()
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search-mcp",
		Short:   "Expose the encrypted search core over the Model Context Protocol",
		Long:    `search-mcp runs the search core behind an MCP stdio server, exposing search, get_more_search_results, and extend_index tools to an MCP client.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	cmd.SetVersionTemplate("search-mcp version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&storePathFlag, "store", "", "Override the index database path")
	cmd.PersistentFlags().StringVar(&fixtureDirFlag, "fixtures", "", "Override the fixture document directory")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build search core: %w", err)
	}
	defer a.Close()

	srv, err := mcp.NewServer(a, cfg)
	if err != nil {
		return fmt.Errorf("build MCP server: %w", err)
	}

	return srv.Serve(cmd.Context(), cfg.Server.Transport)
}

func startLogging(_ *cobra.Command, _ []string) error {
	level := "info"
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupMCPModeWithLevel(level)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

func Execute() error {
	return NewRootCmd().Execute()
}

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

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	return cmd
}
