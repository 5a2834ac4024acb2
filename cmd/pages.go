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

func newPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Browse crawled site pages",
	}
	cmd.AddCommand(
		newPagesListCmd(),
		newPagesShowCmd(),
		newPagesStatsCmd(),
		newPagesOrphansCmd(),
		newPagesDeleteCmd(),
	)
	return cmd
}

func newPagesListCmd() *cobra.Command {
	var filterType, search string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crawled pages for the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			f := api.PageFilter{
				ProjectID:  projectID,
				FilterType: filterType,
				Search:     search,
				PageParams: api.PageParams{Page: page, PageSize: pageSize},
			}
			key := cache.Key("pages", projectID.String(), f.Encode().Encode())
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.ListPages(ctx, f)
			})
			if err != nil {
				return err
			}
			result := cached.(api.PageOf[api.Page])

			t := newTable(cmd.OutOrStdout(), "ID", "URL", "TITLE", "STATUS", "WORDS", "CRAWLED")
			for _, pg := range result.Items {
				t.row(pg.ID.String(), truncate(pg.URL, 50), truncate(pg.Title, 40),
					pg.StatusCode, strconv.FormatInt(pg.WordCount, 10), fmtTimePtr(pg.CrawledAt))
			}
			t.flush()
			pageFooter(cmd.OutOrStdout(), result.Page, result.Pages, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&filterType, "filter", "", "filter pages (successful|failed|with_jsonld|with_hreflang)")
	cmd.Flags().StringVar(&search, "search", "", "search url and title")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")
	return cmd
}

func newPagesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <page-id>",
		Short: "Show one crawled page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid page id: %w", err)
			}
			pg, err := app.client.GetPage(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pg)
		},
	}
}

func newPagesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show crawl corpus statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			key := cache.Key("page-stats", projectID.String())
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.PageStats(ctx, projectID)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cached.(api.PageStats))
		},
	}
}

func newPagesOrphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Find pages no imported prompt matches well",
	}
	cmd.AddCommand(
		newPagesOrphansListCmd(),
		newPagesOrphansSuggestCmd(),
	)
	return cmd
}

func newPagesOrphansListCmd() *cobra.Command {
	var threshold float64
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orphan pages for the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			result, err := app.client.ListOrphanPages(cmd.Context(), projectID, threshold,
				api.PageParams{Page: page, PageSize: pageSize})
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "URL", "TITLE", "BEST MATCH", "STATUS")
			for _, pg := range result.OrphanPages {
				best := "-"
				if pg.BestMatchScore != nil {
					best = fmtScore(*pg.BestMatchScore)
				}
				t.row(pg.ID.String(), truncate(pg.URL, 50), truncate(pg.Title, 40),
					best, pg.MatchStatus)
			}
			t.flush()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d orphan pages below match threshold %.2f\n",
				result.Total, result.MinMatchThreshold)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "best-match score below which a page counts as orphan")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")
	return cmd
}

func newPagesOrphansSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <page-id>",
		Short: "Generate prompt suggestions covering one orphan page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid page id: %w", err)
			}
			// The backend generates suggestions inline; the operation's
			// empty task id tells the poller to apply completion side
			// effects without polling.
			var suggestion api.OrphanSuggestion
			op := app.operation("orphan_suggest",
				func(ctx context.Context) (string, error) {
					s, err := app.client.GenerateOrphanSuggestions(ctx, id)
					if err != nil {
						return "", err
					}
					suggestion = s
					return "", nil
				},
			)
			op.Message = func(jobs.Status) string {
				return fmt.Sprintf("Generated prompt suggestions for %s", suggestion.URL)
			}
			if _, err := app.poller.Run(cmd.Context(), op); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), suggestion.Suggestion)
		},
	}
}

func newPagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <page-id>",
		Short: "Delete one crawled page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid page id: %w", err)
			}
			if err := app.client.DeletePage(cmd.Context(), id); err != nil {
				return err
			}
			if projectID, perr := app.projectID(); perr == nil {
				app.cache.InvalidatePrefix(cache.Key("pages", projectID.String()))
				app.cache.Invalidate(cache.Key("page-stats", projectID.String()))
			}
			app.notifier.Success(fmt.Sprintf("Deleted page %s", id))
			return nil
		},
	}
}
