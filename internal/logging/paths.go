package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.local/share/tuta-search/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tuta-search", "logs")
	}
	return filepath.Join(home, ".local", "share", "tuta-search", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// IndexerLogPath returns the demo indexer's log path.
func IndexerLogPath() string {
	return filepath.Join(DefaultLogDir(), "indexer.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceServer is the search server logs (default).
	LogSourceServer LogSource = "server"
	// LogSourceIndexer is the demo indexer's logs.
	LogSourceIndexer LogSource = "indexer"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.local/share/tuta-search/logs/server.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceServer:
		path := DefaultLogPath()
		checked = append(checked, path)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}

	case LogSourceIndexer:
		path := IndexerLogPath()
		checked = append(checked, path)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}

	case LogSourceAll:
		serverPath, indexerPath := DefaultLogPath(), IndexerLogPath()
		checked = append(checked, serverPath, indexerPath)
		if _, err := os.Stat(serverPath); err == nil {
			paths = append(paths, serverPath)
		}
		if _, err := os.Stat(indexerPath); err == nil {
			paths = append(paths, indexerPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: server, indexer, all)", source)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\nRun search-cli with --debug to generate logs.", source, checked)
	}
	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "indexer":
		return LogSourceIndexer
	case "all":
		return LogSourceAll
	default:
		return LogSourceServer
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
