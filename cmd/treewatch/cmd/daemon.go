package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/config"
	"github.com/Aman-CERP/treewatch/internal/daemon"
	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/logging"
	"github.com/Aman-CERP/treewatch/internal/output"
	"github.com/Aman-CERP/treewatch/internal/preflight"
	"github.com/Aman-CERP/treewatch/internal/ui"
	"github.com/Aman-CERP/treewatch/pkg/version"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background watch daemon",
		Long: `The daemon owns a set of watches and serves them over a Unix socket, so
several clients can share one watch per directory.

Commands:
  run     Run the daemon in the foreground
  start   Start the daemon in the background
  stop    Stop the running daemon
  status  Show daemon status and active watches

Examples:
  treewatch daemon start        # Start daemon in background
  treewatch start ~/notes       # Ask it to watch a directory
  treewatch subscribe           # Stream its notifications
  treewatch daemon stop         # Stop it, releasing every watch`,
	}

	cmd.AddCommand(newDaemonRunCmd())
	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonRunCmd() *cobra.Command {
	var detached bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonForeground(cmd.Context(), cmd, detached)
		},
	}

	// Set by 'daemon start' for the re-executed child.
	cmd.Flags().BoolVar(&detached, "detached", false, "Log to file only")
	_ = cmd.Flags().MarkHidden("detached")
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStart(cmd.Context(), cmd, skipCheck)
		},
	}

	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running daemon.

Sends SIGTERM so every watch is released before the daemon exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonForeground(ctx context.Context, cmd *cobra.Command, detached bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DaemonConfig(cfg.Logging.Level)
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	logCfg.WriteToStderr = !detached
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup daemon logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}

	if !detached {
		out := output.New(cmd.OutOrStdout())
		out.Status("", "Starting daemon in foreground...")
		out.Status("", "Socket: "+cfg.Daemon.SocketPath)
		out.Status("", "Logs: "+logCfg.FilePath)
		out.Status("", "Press Ctrl+C to stop")
		out.Newline()
	}

	logger.Info("daemon starting",
		slog.String("version", version.Version),
		slog.String("socket", cfg.Daemon.SocketPath),
		slog.Bool("detached", detached))

	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("daemon exited", errs.LogAttrs(err)...)
		return err
	}
	return nil
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	opts, err := cfg.WatchOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger

	daemonOpts := []daemon.Option{
		daemon.WithWatchOptions(opts),
		daemon.WithLogger(logger),
	}
	if cfg.JournalEnabled() {
		daemonOpts = append(daemonOpts, daemon.WithJournal(cfg.Journal.Path, cfg.JournalRetention()))
	}
	return daemon.NewDaemon(daemonConfig(cfg), daemonOpts...)
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, skipCheck bool) error {
	out := output.New(cmd.OutOrStdout())
	client, cfg, err := daemonClient()
	if err != nil {
		return err
	}

	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if !skipCheck {
		if err := quickPreflight(ctx, cfg); err != nil {
			return err
		}
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgCmd := exec.Command(execPath, "daemon", "run", "--detached")
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice if it dies before it is ready.
	exited := make(chan error, 1)
	go func() { exited <- bgCmd.Wait() }()

	readyCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-exited:
			cancel()
		case <-readyCtx.Done():
		}
	}()

	if err := client.WaitReady(readyCtx); err != nil {
		return errs.New(errs.ErrCodeDaemonUnavailable, "daemon failed to start", err).
			WithSuggestion("Check the daemon log: treewatch logs --source daemon")
	}

	out.Successf("Daemon started (pid: %d)", bgCmd.Process.Pid)
	return nil
}

// quickPreflight runs doctor checks once per version before spawning the daemon.
func quickPreflight(ctx context.Context, cfg *config.Config) error {
	dataDir := config.DataDir()
	if !preflight.NeedsCheck(dataDir, version.Version) {
		return nil
	}

	checker := preflight.New()
	results := checker.RunAll(ctx, preflightTargets(cfg))
	if checker.HasCriticalFailures(results) {
		return errs.New(errs.ErrCodeDaemonUnavailable, "system check failed", nil).
			WithSuggestion("Run 'treewatch doctor' for details")
	}
	if err := preflight.MarkPassed(dataDir, version.Version); err != nil {
		slog.Debug("failed to record preflight marker", slog.String("error", err.Error()))
	}
	return nil
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(cfg.Daemon.PIDPath)
	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	// A killed daemon cannot clean up after itself.
	_ = pidFile.Remove()
	_ = os.Remove(cfg.Daemon.SocketPath)

	out.Success("Daemon killed")
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	client, cfg, err := daemonClient()
	if err != nil {
		return err
	}

	info := ui.StatusInfo{SocketPath: cfg.Daemon.SocketPath}
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !ui.IsTTY(cmd.OutOrStdout()) || ui.DetectNoColor())

	if client.IsRunning() {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		watches, err := client.ListWatches(ctx)
		if err != nil {
			return err
		}
		info.Running = true
		info.PID = status.PID
		info.Uptime = status.Uptime
		info.Subscribers = status.Bus.Subscribers
		info.Published = status.Bus.Published
		info.Dropped = status.Bus.Dropped
		info.JournalPath = status.Journal
		info.Metrics = &status.Metrics
		if status.Journal != "" {
			if fi, err := os.Stat(status.Journal); err == nil {
				info.JournalSize = fi.Size()
			}
		}
		info.Watches = watches
	}

	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	if err := renderer.Render(info); err != nil {
		return err
	}
	if !info.Running {
		output.New(cmd.OutOrStdout()).Status("", "Run 'treewatch daemon start' to start it")
	}
	return nil
}
