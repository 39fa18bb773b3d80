// Package preflight runs the checks behind `treewatch doctor`: whether the
// host can sustain recursive watches and whether the daemon and journal have
// somewhere to live.
//
// The package validates:
//   - Free disk space for logs and the journal
//   - File descriptor limits (required where kqueue holds one per file)
//   - The inotify max_user_watches limit on Linux
//   - Write permission in the data and socket directories
//   - That each requested watch root is an existing directory
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Targets{DataDir: dir})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
