package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.treewatch/logs, or a temp directory when the home
// directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".treewatch", "logs")
	}
	return filepath.Join(home, ".treewatch", "logs")
}

// DefaultLogPath returns the CLI log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "treewatch.log")
}

// DaemonLogPath returns the daemon log path.
func DaemonLogPath() string {
	return filepath.Join(DefaultLogDir(), "daemon.log")
}

// LogSource selects which log files to view.
type LogSource string

const (
	LogSourceCLI    LogSource = "cli"
	LogSourceDaemon LogSource = "daemon"
	LogSourceAll    LogSource = "all"
)

// ParseLogSource parses s, defaulting to all sources.
func ParseLogSource(s string) LogSource {
	switch s {
	case "cli":
		return LogSourceCLI
	case "daemon":
		return LogSourceDaemon
	default:
		return LogSourceAll
	}
}

// FindLogFiles returns the existing log files for source. An explicit path
// takes precedence and must exist.
func FindLogFiles(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("log file not found: %s", explicit)
		}
		return []string{explicit}, nil
	}

	var candidates []string
	switch source {
	case LogSourceCLI:
		candidates = []string{DefaultLogPath()}
	case LogSourceDaemon:
		candidates = []string{DaemonLogPath()}
	case LogSourceAll:
		candidates = []string{DefaultLogPath(), DaemonLogPath()}
	default:
		return nil, fmt.Errorf("unknown log source: %s (use: cli, daemon, all)", source)
	}

	var paths []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no log files found for source %q.\nChecked: %v\n\n%s", source, candidates, logHint(source))
	}
	return paths, nil
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}

func logHint(source LogSource) string {
	switch source {
	case LogSourceCLI:
		return "To generate CLI logs:\n  treewatch --debug watch <dir>"
	case LogSourceDaemon:
		return "To generate daemon logs:\n  treewatch daemon start"
	default:
		return "To generate logs:\n  treewatch --debug watch <dir>\n  treewatch daemon start"
	}
}
