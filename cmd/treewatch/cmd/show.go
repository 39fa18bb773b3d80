package cmd

import (
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/fsops"
	"github.com/Aman-CERP/treewatch/internal/state"
	"github.com/Aman-CERP/treewatch/internal/ui"
)

const (
	maxShowBytes     = 4 << 20
	defaultShowWidth = 80
)

func newShowCmd() *cobra.Command {
	var (
		raw   bool
		width int
	)

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print a Markdown file rendered for the terminal",
		Long: `Print a Markdown file. On a terminal it is rendered in the saved
theme (see 'treewatch project theme'); otherwise the file is printed as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], raw, width)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the file without rendering")
	cmd.Flags().IntVar(&width, "width", defaultShowWidth, "Wrap rendered text at this column")
	return cmd
}

func runShow(cmd *cobra.Command, path string, raw bool, width int) error {
	data, err := fsops.ReadFile(path, maxShowBytes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if raw || !ui.IsTTY(out) || ui.DetectNoColor() {
		_, err = out.Write(data)
		return err
	}

	rendered, err := renderMarkdown(string(data), markdownStyle(savedTheme()), width)
	if err != nil {
		return errs.InternalError("render "+path, err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}

// markdownStyle maps a UI theme to a glamour standard style.
func markdownStyle(theme string) string {
	if theme == state.ThemeDark {
		return "dark"
	}
	return "light"
}

func renderMarkdown(src, style string, width int) (string, error) {
	if width <= 0 {
		width = defaultShowWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(src)
}
