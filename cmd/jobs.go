package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control background tasks",
	}
	cmd.AddCommand(
		newJobsStatusCmd(),
		newJobsWatchCmd(),
		newJobsCancelCmd(),
	)
	return cmd
}

func newJobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Fetch a task's current status once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			st, err := app.client.JobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "task:  %s\n", st.TaskID)
			fmt.Fprintf(out, "state: %s\n", st.State)
			if st.Progress != nil {
				fmt.Fprintf(out, "progress: %d/%d processed, %d failed",
					st.Progress.Processed, st.Progress.Total, st.Progress.Failed)
				if st.Progress.Determinate() {
					fmt.Fprintf(out, " (%d%%)", st.Progress.Percent)
				}
				fmt.Fprintln(out)
			}
			if st.Error != "" {
				fmt.Fprintf(out, "error: %s\n", st.Error)
			}
			if len(st.Result) > 0 {
				fmt.Fprintf(out, "result: %s\n", st.Result)
			}
			return nil
		},
	}
}

// newJobsWatchCmd attaches to a task started elsewhere (or with --detach) and
// polls it to completion.
func newJobsWatchCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Poll a running task until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			op := jobs.Operation{
				Kind:     kind,
				Status:   app.client.JobStatus,
				Interval: app.cfg.Poll.Interval(kind),
			}
			st, err := app.poller.Wait(cmd.Context(), op, args[0])
			if err != nil {
				return err
			}
			if st.State == jobs.StateFailed {
				return fmt.Errorf("task %s failed: %s", st.TaskID, st.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "task", "operation kind, sets the poll cadence")
	return cmd
}

// newJobsCancelCmd asks the backend to revoke the task. The backend owns
// whether the task can actually be interrupted; this never just stops
// watching.
func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.client.CancelJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.notifier.Success(fmt.Sprintf("Requested cancellation of task %s", args[0]))
			return nil
		},
	}
}
