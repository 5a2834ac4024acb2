package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/config"
)

// newUseCmd persists the selected project so subsequent commands do not need
// --project. The selection lives in the config file, never in process state.
func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <project-id>",
		Short: "Select the default project for subsequent commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q: %w", args[0], err)
			}
			// Verify the project exists before persisting it.
			project, err := app.client.GetProject(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := config.SaveProject(app.cfgPath, id.String()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Using project %s (%s)\n", project.Name, project.ID)
			return nil
		},
	}
}
