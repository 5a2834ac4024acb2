package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the selected project's site",
	}
	cmd.AddCommand(
		newCrawlStartCmd(),
		newCrawlJobsCmd(),
		newCrawlCancelCmd(),
	)
	return cmd
}

func newCrawlStartCmd() *cobra.Command {
	var startURLs []string
	var detach bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a crawl and poll it to completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			op := app.operation("crawl",
				func(ctx context.Context) (string, error) {
					ref, err := app.client.StartCrawl(ctx, projectID, startURLs)
					if err != nil {
						return "", err
					}
					return ref.ID(), nil
				},
				cache.Key("pages", projectID.String()),
				cache.Key("page-stats", projectID.String()),
				cache.Key("project-stats", projectID.String()),
			)
			op.Message = func(st jobs.Status) string {
				if st.Progress != nil {
					return fmt.Sprintf("Crawled %d pages (%d failed)",
						st.Progress.Processed, st.Progress.Failed)
				}
				return "Crawl completed"
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
	cmd.Flags().StringArrayVar(&startURLs, "url", nil, "crawl start URL instead of the target domains (repeatable)")
	cmd.Flags().BoolVar(&detach, "detach", false, "start the crawl and print its task id without polling")
	return cmd
}

func newCrawlJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List crawl jobs for the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			crawls, err := app.client.ListCrawlJobs(cmd.Context(), projectID, api.PageParams{})
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "STATUS", "CRAWLED", "TOTAL", "FAILED", "STARTED", "COMPLETED")
			for _, c := range crawls.Items {
				t.row(c.ID.String(), string(c.Status),
					strconv.FormatInt(c.CrawledURLs, 10),
					strconv.FormatInt(c.TotalURLs, 10),
					strconv.FormatInt(c.FailedURLs, 10),
					fmtTimePtr(c.StartedAt), fmtTimePtr(c.CompletedAt))
			}
			t.flush()
			return nil
		},
	}
}

func newCrawlCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <crawl-job-id>",
		Short: "Cancel a running crawl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid crawl job id: %w", err)
			}
			ack, err := app.client.CancelCrawlJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			app.notifier.Success(fmt.Sprintf("Crawl %s is now %s", ack.JobID, ack.Status))
			return nil
		},
	}
}
