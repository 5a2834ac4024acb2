package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
)

// matchResult is the terminal payload of the matching task.
type matchResult struct {
	Opportunities int64 `json:"opportunities"`
	Matched       int64 `json:"matched"`
	Processed     int64 `json:"processed"`
}

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match prompts against crawled content",
	}
	cmd.AddCommand(newMatchRunCmd())
	return cmd
}

func newMatchRunCmd() *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run matching for the selected project and poll to completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			op := app.operation("match",
				func(ctx context.Context) (string, error) {
					ref, err := app.client.StartMatching(ctx, projectID)
					if err != nil {
						return "", err
					}
					return ref.ID(), nil
				},
				cache.Key("project-stats", projectID.String()),
				cache.Key("opportunities", projectID.String()),
				cache.Key("prompts", projectID.String()),
			)
			op.Message = func(st jobs.Status) string {
				var res matchResult
				if len(st.Result) > 0 {
					if err := json.Unmarshal(st.Result, &res); err == nil {
						return fmt.Sprintf("Found %d content opportunities", res.Opportunities)
					}
				}
				if st.Progress != nil {
					return fmt.Sprintf("Found %d content opportunities", st.Progress.Opportunities)
				}
				return "Matching completed"
			}
			if detach {
				taskID, err := op.Start(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), taskID)
				return nil
			}
			_, err = app.poller.Run(cmd.Context(), op)
			return err
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "start matching and print its task id without polling")
	return cmd
}
