// Package cmd provides the CLI commands for treewatch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/config"
	"github.com/Aman-CERP/treewatch/internal/daemon"
	"github.com/Aman-CERP/treewatch/internal/logging"
	"github.com/Aman-CERP/treewatch/internal/output"
	"github.com/Aman-CERP/treewatch/internal/profiling"
	"github.com/Aman-CERP/treewatch/pkg/version"
)

// Persistent flag state
var (
	debugMode      bool
	loggingCleanup func()

	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the treewatch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treewatch",
		Short: "Debounced change notifications for directory trees",
		Long: `treewatch watches directory trees and reports which matching files
changed, once per burst of activity.

Run 'treewatch watch' in a directory to print changed Markdown files,
or start the daemon and let several clients share the same watches.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("treewatch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.treewatch/logs/")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "cpuprofile", "", "Write a CPU profile to `file`")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "memprofile", "", "Write a heap profile to `file` on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "trace", "", "Write an execution trace to `file`")
	for _, name := range []string{"cpuprofile", "memprofile", "trace"} {
		_ = cmd.PersistentFlags().MarkHidden(name)
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := startLogging(cmd, args); err != nil {
			return err
		}
		return startProfiling()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		err := stopProfiling()
		return errors.Join(err, stopLogging(cmd, args))
	}

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSubscribeCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newFilesCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the debug file logger when --debug is set. Without
// it, warnings still reach stderr.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		slog.SetDefault(logging.Stderr("warn"))
		return nil
	}

	cleanup, err := logging.SetupDefault(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

func startProfiling() error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return fmt.Errorf("start profiling: %w", err)
	}
	profileSession = s
	slog.Debug("Profiling enabled",
		slog.String("cpu", profileOpts.CPU),
		slog.String("heap", profileOpts.Heap),
		slog.String("trace", profileOpts.Trace))
	return nil
}

func stopProfiling() error {
	if profileSession == nil {
		return nil
	}
	err := profileSession.Stop()
	profileSession = nil
	return err
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	ran, err := root.ExecuteContextC(ctx)
	// PersistentPostRunE is skipped when RunE fails.
	if perr := stopProfiling(); perr != nil {
		slog.Warn("failed to write profiles", slog.String("error", perr.Error()))
	}
	if err != nil {
		if ran == nil {
			ran = root
		}
		reportError(ran, err)
	}
	return err
}

// reportError prints err on the command's error stream, as JSON when the
// command was asked for JSON output.
func reportError(cmd *cobra.Command, err error) {
	w := output.New(cmd.ErrOrStderr())
	if jsonRequested(cmd) {
		if jerr := w.FailJSON(err); jerr == nil {
			return
		}
	}
	w.Fail(err)
}

func jsonRequested(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return config.Load(cwd)
}

// daemonConfig builds the daemon settings from cfg.
func daemonConfig(cfg *config.Config) daemon.Config {
	dc := daemon.DefaultConfig()
	dc.SocketPath = cfg.Daemon.SocketPath
	dc.PIDPath = cfg.Daemon.PIDPath
	dc.Timeout = cfg.DaemonTimeout()
	return dc
}

// daemonClient loads configuration and returns a client for the daemon.
func daemonClient() (*daemon.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return daemon.NewClient(daemonConfig(cfg)), cfg, nil
}

// absPath resolves dir against the working directory. The daemon runs
// elsewhere, so relative paths must never reach it.
func absPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}
