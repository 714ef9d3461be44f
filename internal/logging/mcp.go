package logging

import (
	"log/slog"

	"github.com/tutao/search-core/internal/model"
)

// SetupMCPMode initializes logging for MCP server mode.
//
// The MCP stdio transport reserves stdout exclusively for the JSON-RPC
// stream; any other write to stdout (or, depending on the client, stderr)
// corrupts the protocol framing and the client sees a silent disconnect.
// This mode logs to file only, always at debug level for full diagnostics.
func SetupMCPMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupMCPModeWithLevel initializes MCP-safe logging with a specific level.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// SearchPage logs one page of search results: a hash of the query rather
// than its plaintext (mail content is sensitive even in local debug logs),
// term and result counts, and the per-page timing breakdown.
func SearchPage(logger *slog.Logger, queryHash string, termCount, resultCount int, timing *model.Timing) {
	if timing == nil {
		timing = &model.Timing{}
	}
	logger.Info("search_page",
		slog.String("query_hash", queryHash),
		slog.Int("term_count", termCount),
		slog.Int("result_count", resultCount),
		slog.Int64("total_ns", timing.TotalNs),
		slog.Int64("metaread_ns", timing.MetaReadNs),
		slog.Int64("decrypt_ns", timing.DecryptNs),
		slog.Int64("assemble_ns", timing.AssembleNs),
	)
}
