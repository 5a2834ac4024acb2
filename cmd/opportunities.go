package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
)

func newOpportunitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps"},
		Short:   "Triage detected content opportunities",
	}
	cmd.AddCommand(
		newOppsListCmd(),
		newOppsShowCmd(),
		newOppsUpdateCmd(),
		newOppsSuggestCmd(),
		newOppsRegenerateCmd(),
		newOppsExportCmd(),
	)
	return cmd
}

func newOppsListCmd() *cobra.Command {
	var (
		status, action                          string
		minPriority, maxPriority, maxDifficulty float64
		page, pageSize                          int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List opportunities for the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			f := api.OpportunityFilter{
				ProjectID:     projectID,
				Status:        api.OpportunityStatus(status),
				Action:        api.RecommendedAction(action),
				MinPriority:   minPriority,
				MaxPriority:   maxPriority,
				MaxDifficulty: maxDifficulty,
				PageParams:    api.PageParams{Page: page, PageSize: pageSize},
			}
			key := cache.Key("opportunities", projectID.String(), f.Encode().Encode())
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.ListOpportunities(ctx, f)
			})
			if err != nil {
				return err
			}
			result := cached.(api.PageOf[api.Opportunity])

			t := newTable(cmd.OutOrStdout(), "ID", "PROMPT", "PRIORITY", "DIFFICULTY", "ACTION", "STATUS")
			for _, o := range result.Items {
				t.row(o.ID.String(), truncate(o.PromptText, 50),
					fmtScore(o.PriorityScore), fmtScore(o.DifficultyScore),
					string(o.Action), string(o.Status))
			}
			t.flush()
			pageFooter(cmd.OutOrStdout(), result.Page, result.Pages, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (new|in_progress|resolved|dismissed)")
	cmd.Flags().StringVar(&action, "action", "", "filter by recommended action")
	cmd.Flags().Float64Var(&minPriority, "min-priority", 0, "minimum priority score")
	cmd.Flags().Float64Var(&maxPriority, "max-priority", 0, "maximum priority score")
	cmd.Flags().Float64Var(&maxDifficulty, "max-difficulty", 0, "maximum difficulty score")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")
	return cmd
}

func newOppsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <opportunity-id>",
		Short: "Show one opportunity with its suggestion and related pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid opportunity id: %w", err)
			}
			opp, err := app.client.GetOpportunity(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), opp)
		},
	}
}

func newOppsUpdateCmd() *cobra.Command {
	var status, assignee, notes string
	cmd := &cobra.Command{
		Use:   "update <opportunity-id>",
		Short: "Update an opportunity's triage fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid opportunity id: %w", err)
			}
			var in api.OpportunityUpdate
			if cmd.Flags().Changed("status") {
				s := api.OpportunityStatus(status)
				in.Status = &s
			}
			if cmd.Flags().Changed("assignee") {
				in.AssignedTo = &assignee
			}
			if cmd.Flags().Changed("notes") {
				in.Notes = &notes
			}
			opp, err := app.client.UpdateOpportunity(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			if projectID, perr := app.projectID(); perr == nil {
				app.cache.InvalidatePrefix(cache.Key("opportunities", projectID.String()))
				app.cache.Invalidate(cache.Key("project-stats", projectID.String()))
			}
			app.notifier.Success(fmt.Sprintf("Opportunity %s is now %s", opp.ID, opp.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new|in_progress|resolved|dismissed")
	cmd.Flags().StringVar(&assignee, "assignee", "", "who owns this opportunity")
	cmd.Flags().StringVar(&notes, "notes", "", "triage notes")
	return cmd
}

func newOppsSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <opportunity-id>",
		Short: "Generate a content suggestion for one opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid opportunity id: %w", err)
			}
			// The backend generates the suggestion inline and returns the
			// updated opportunity; there is no task to poll.
			opp, err := app.client.GenerateSuggestion(cmd.Context(), id)
			if err != nil {
				return err
			}
			if projectID, perr := app.projectID(); perr == nil {
				app.cache.InvalidatePrefix(cache.Key("opportunities", projectID.String()))
			}
			app.notifier.Success(fmt.Sprintf("Generated suggestion for opportunity %s", opp.ID))
			return printJSON(cmd.OutOrStdout(), opp.ContentSuggestion)
		},
	}
}

func newOppsRegenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate content suggestions across the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			op := app.operation("suggest",
				func(ctx context.Context) (string, error) {
					ref, err := app.client.RegenerateSuggestions(ctx, projectID)
					if err != nil {
						return "", err
					}
					return ref.ID(), nil
				},
				cache.Key("opportunities", projectID.String()),
			)
			op.Message = func(st jobs.Status) string {
				if st.Progress != nil {
					return fmt.Sprintf("Regenerated %d suggestions", st.Progress.Processed)
				}
				return "Suggestions regenerated"
			}
			_, err = app.poller.Run(cmd.Context(), op)
			return err
		},
	}
}

func newOppsExportCmd() *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export opportunities as CSV or JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			if format != "csv" && format != "json" {
				return fmt.Errorf("invalid --format %q, expected csv or json", format)
			}
			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}
			if err := app.client.ExportOpportunities(cmd.Context(), projectID, format, out); err != nil {
				return err
			}
			if outPath != "" {
				app.notifier.Success(fmt.Sprintf("Exported opportunities to %s", outPath))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "export format (csv|json)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}
