package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/config"
	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/preflight"
	"github.com/Aman-CERP/treewatch/internal/ui"
	"github.com/Aman-CERP/treewatch/pkg/version"
)

func newDoctorCmd() *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor [dir...]",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to ensure treewatch can operate correctly.

Checks:
  - Data directory and socket directory are writable
  - Disk space (50MB minimum)
  - File descriptor limits
  - inotify watch limit (Linux)
  - Each given directory can be watched

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Check the system
  treewatch doctor

  # Also check that two directories can be watched
  treewatch doctor ~/notes ~/wiki

  # JSON output for scripting
  treewatch doctor --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, args, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, roots []string, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dataDir := config.DataDir()
	lastPassed := preflight.MarkerAge(dataDir)

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	targets := preflightTargets(cfg)
	targets.Roots = roots
	results := checker.RunAll(cmd.Context(), targets)

	if jsonOutput {
		if err := checker.PrintJSON(results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if lastPassed > 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nLast successful check: %s\n",
				ui.FormatAge(time.Now().Add(-lastPassed)))
		}
	}

	if checker.HasCriticalFailures(results) {
		return errs.New(errs.ErrCodeInternal, "system check failed", nil).
			WithSuggestion("Fix the errors listed above and run 'treewatch doctor' again")
	}
	return preflight.MarkPassed(dataDir, version.Version)
}

// preflightTargets returns the locations cfg writes to.
func preflightTargets(cfg *config.Config) preflight.Targets {
	t := preflight.Targets{
		DataDir:   config.DataDir(),
		SocketDir: filepath.Dir(cfg.Daemon.SocketPath),
	}
	if cfg.JournalEnabled() {
		t.JournalDir = filepath.Dir(cfg.Journal.Path)
	}
	return t
}
