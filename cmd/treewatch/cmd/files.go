package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/fsops"
	"github.com/Aman-CERP/treewatch/internal/output"
	"github.com/Aman-CERP/treewatch/internal/ui"
)

func newFilesCmd() *cobra.Command {
	var (
		suffixes   []string
		subdir     string
		children   bool
		gitignore  bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "files <dir>",
		Short: "List the files a watch on dir would report",
		Long: `List files under dir that match the watch suffixes, relative to dir.

With --children, list the direct entries of dir instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if children {
				return runChildren(cmd, args[0], jsonOutput)
			}
			return runFiles(cmd.Context(), cmd, args[0], subdir, suffixes, gitignore, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&suffixes, "suffix", nil, "File suffix to list (default from config)")
	cmd.Flags().StringVar(&subdir, "subdir", "", "List only this subdirectory of dir")
	cmd.Flags().BoolVar(&gitignore, "gitignore", false, "Skip paths matched by dir's .gitignore")
	cmd.Flags().BoolVar(&children, "children", false, "List direct entries with size and kind")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runFiles(ctx context.Context, cmd *cobra.Command, dir, subdir string, suffixes []string, gitignore, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(suffixes) == 0 {
		suffixes = cfg.Watch.Suffixes
	}

	files, err := fsops.ListFiles(ctx, dir, fsops.ListOptions{
		Subdir:    subdir,
		Suffixes:  suffixes,
		Ignore:    cfg.Watch.Ignore,
		Gitignore: gitignore || cfg.GitignoreEnabled(),
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(files)
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Path, time.UnixMilli(f.Modified).Local().Format(time.DateTime)})
	}
	out.Table([]string{"PATH", "MODIFIED"}, rows, "No matching files")
	return nil
}

func runChildren(cmd *cobra.Command, dir string, jsonOutput bool) error {
	entries, err := fsops.ReadDir(dir)
	if err != nil {
		return err
	}

	metas := make([]fsops.FileMeta, 0, len(entries))
	for _, e := range entries {
		m, err := fsops.Meta(filepath.Join(dir, e.Name))
		if err != nil {
			// Entry vanished between listing and stat.
			continue
		}
		m.Path = e.Name
		metas = append(metas, m)
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(metas)
	}

	rows := make([][]string, 0, len(metas))
	for _, m := range metas {
		size := ui.FormatBytes(m.Size)
		if m.Kind == fsops.KindDirectory {
			size = "-"
		}
		rows = append(rows, []string{m.Kind, size, m.Path})
	}
	out.Table([]string{"KIND", "SIZE", "NAME"}, rows, "Empty directory")
	return nil
}
