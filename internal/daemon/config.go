// Package daemon runs a long-lived treewatch process that owns a watch
// registry and serves it over a Unix socket, so CLI invocations can start,
// stop and subscribe to watches without holding them themselves.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.treewatch/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// The single-instance lock lives next to it at PIDPath + ".lock".
	// Default: ~/.treewatch/daemon.pid
	PIDPath string

	// Timeout bounds one client request, not a subscription stream.
	// Default: 5s
	Timeout time.Duration

	// ShutdownGracePeriod is how long Run waits for open connections.
	// Default: 5s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config rooted at ~/.treewatch.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".treewatch")

	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 5 * time.Second,
	}
}

// LockPath returns the single-instance lock file path.
func (c Config) LockPath() string {
	return c.PIDPath + ".lock"
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if pidDir := filepath.Dir(c.PIDPath); pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
