package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/output"
	"github.com/Aman-CERP/treewatch/internal/ui"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <dir>",
		Short: "Ask the daemon to watch a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cmd, args[0])
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <dir>",
		Short: "Ask the daemon to stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), cmd, args[0])
		},
	}
}

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the daemon's active watches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newSubscribeCmd() *cobra.Command {
	var (
		root       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Stream notifications from the daemon",
		Long: `Stream notifications from the daemon until interrupted.

Without --root every watch is included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubscribe(cmd.Context(), cmd, root, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Only stream notifications for this watch root")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print notifications as JSON lines")
	return cmd
}

func runStart(ctx context.Context, cmd *cobra.Command, dir string) error {
	client, _, err := daemonClient()
	if err != nil {
		return err
	}
	path, err := absPath(dir)
	if err != nil {
		return err
	}

	res, err := client.StartWatch(ctx, path)
	if err != nil {
		return err
	}
	output.New(cmd.OutOrStdout()).Successf("Watching %s (id %d)", res.Root, res.ID)
	return nil
}

func runStop(ctx context.Context, cmd *cobra.Command, dir string) error {
	client, _, err := daemonClient()
	if err != nil {
		return err
	}
	path, err := absPath(dir)
	if err != nil {
		return err
	}

	if err := client.StopWatch(ctx, path); err != nil {
		return err
	}
	output.New(cmd.OutOrStdout()).Successf("Stopped watching %s", path)
	return nil
}

func runList(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	client, _, err := daemonClient()
	if err != nil {
		return err
	}

	watches, err := client.ListWatches(ctx)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		if watches == nil {
			watches = []watcher.WatchInfo{}
		}
		return out.JSON(watches)
	}

	rows := make([][]string, 0, len(watches))
	for _, w := range watches {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(w.ID), 10),
			w.Root,
			string(w.Backend),
			strconv.FormatUint(w.Flushes, 10),
			w.StartedAt.Local().Format(time.DateTime),
		})
	}
	out.Table([]string{"ID", "ROOT", "BACKEND", "FLUSHES", "STARTED"}, rows, "No active watches")
	return nil
}

func runSubscribe(ctx context.Context, cmd *cobra.Command, root string, jsonOutput bool) error {
	client, _, err := daemonClient()
	if err != nil {
		return err
	}
	if root != "" {
		if root, err = absPath(root); err != nil {
			return err
		}
	}

	var renderer ui.Renderer
	if jsonOutput {
		renderer = newJSONRenderer(cmd.OutOrStdout())
	} else {
		renderer = ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout()))
	}

	return client.Subscribe(ctx, root, func(n watcher.Notification) error {
		renderer.Notify(n)
		return nil
	})
}
