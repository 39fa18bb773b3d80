package cmd

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/journal"
	"github.com/Aman-CERP/treewatch/internal/output"
)

func newHistoryCmd() *cobra.Command {
	var (
		root       string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded notifications from the journal",
		Long: `Show the newest notifications recorded in the journal.

The journal is written by 'treewatch watch --journal' and by the daemon
when journal.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), cmd, root, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Only show notifications for this watch root")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runHistory(ctx context.Context, cmd *cobra.Command, root string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		return errs.New(errs.ErrCodeJournalFailed, "no journal at "+cfg.Journal.Path, err).
			WithSuggestion("Record one with 'treewatch watch --journal' or set journal.enabled")
	}
	if root != "" {
		if root, err = absPath(root); err != nil {
			return err
		}
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(ctx, journal.Query{Root: root, Limit: limit})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return out.JSON(entries)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := strings.Join(e.Paths, ", ")
		if e.Code != "" {
			detail = e.Code + ": " + e.Reason
		}
		rows = append(rows, []string{
			e.Time.Local().Format(time.DateTime),
			string(e.Kind),
			e.Root,
			strconv.Itoa(len(e.Paths)),
			detail,
		})
	}
	out.Table([]string{"TIME", "KIND", "ROOT", "FILES", "DETAIL"}, rows, "No notifications recorded")
	return nil
}
