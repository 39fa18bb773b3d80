package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/output"
	"github.com/Aman-CERP/treewatch/internal/state"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Remember the current and recent projects",
		Long: `Track which directory you are working in between runs.

'treewatch watch' with no arguments watches the current project when one
is set and the working directory otherwise.`,
		Example: `  treewatch project set ~/notes
  treewatch project recent
  treewatch project theme dark`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <dir>",
		Short: "Make a directory the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := stateStore()
			if err != nil {
				return err
			}
			st, err := store.SetCurrentProject(args[0])
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Current project: %s", st.CurrentProject)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Print the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := stateStore()
			if err != nil {
				return err
			}
			st, err := store.Load()
			if err != nil {
				return err
			}
			if st.CurrentProject == "" {
				output.New(cmd.OutOrStdout()).Status("", "No current project")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), st.CurrentProject)
			return err
		},
	})

	var jsonOutput bool
	recent := &cobra.Command{
		Use:   "recent",
		Short: "List recently used projects, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := stateStore()
			if err != nil {
				return err
			}
			projects, err := store.RecentProjects()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(projects)
			}
			if len(projects) == 0 {
				out.Status("", "No recent projects")
				return nil
			}
			for _, p := range projects {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	recent.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.AddCommand(recent)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget recent projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := stateStore()
			if err != nil {
				return err
			}
			if err := store.ClearRecent(); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Success("Cleared recent projects")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the UI theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{state.ThemeLight, state.ThemeDark},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := stateStore()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				theme, err := store.Theme()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), theme)
				return err
			}
			if err := store.SetTheme(args[0]); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Theme set to %s", args[0])
			return nil
		},
	})

	return cmd
}

func stateStore() (*state.Store, error) {
	path, err := state.DefaultPath()
	if err != nil {
		return nil, err
	}
	return state.NewStore(path), nil
}
