package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
)

func newPromptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Browse and reclassify imported prompts",
	}
	cmd.AddCommand(
		newPromptsListCmd(),
		newPromptsShowCmd(),
		newPromptsTopicsCmd(),
		newPromptsLanguagesCmd(),
		newPromptsReclassifyCmd(),
	)
	return cmd
}

func newPromptsListCmd() *cobra.Command {
	var (
		topic, language, intent, matchStatus, search string
		minTransaction                               float64
		importID                                     string
		page, pageSize                               int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts for the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			f := api.PromptFilter{
				ProjectID:           projectID,
				Topic:               topic,
				Language:            language,
				IntentLabel:         intent,
				MatchStatus:         api.MatchStatus(matchStatus),
				MinTransactionScore: minTransaction,
				Search:              search,
				PageParams:          api.PageParams{Page: page, PageSize: pageSize},
			}
			if importID != "" {
				id, err := uuid.Parse(importID)
				if err != nil {
					return fmt.Errorf("invalid import id: %w", err)
				}
				f.CSVImportID = id
			}
			key := cache.Key("prompts", projectID.String(), f.Encode().Encode())
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.ListPrompts(ctx, f)
			})
			if err != nil {
				return err
			}
			result := cached.(api.PageOf[api.Prompt])

			t := newTable(cmd.OutOrStdout(), "ID", "PROMPT", "INTENT", "MATCH", "TXN", "TOPIC")
			for _, p := range result.Items {
				t.row(p.ID.String(), truncate(p.Text, 60), p.IntentLabel,
					string(p.MatchStatus), fmtScore(p.TransactionScore), p.Topic)
			}
			t.flush()
			pageFooter(cmd.OutOrStdout(), result.Page, result.Pages, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "filter by topic")
	cmd.Flags().StringVar(&language, "language", "", "filter by language")
	cmd.Flags().StringVar(&intent, "intent", "", "filter by intent label")
	cmd.Flags().StringVar(&matchStatus, "match-status", "", "filter by match status (pending|answered|partial|gap)")
	cmd.Flags().Float64Var(&minTransaction, "min-transaction-score", 0, "minimum transaction score")
	cmd.Flags().StringVar(&search, "search", "", "full-text search")
	cmd.Flags().StringVar(&importID, "import", "", "filter by CSV import id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")
	return cmd
}

func newPromptsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <prompt-id>",
		Short: "Show one prompt with its page matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid prompt id: %w", err)
			}
			prompt, err := app.client.GetPrompt(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), prompt)
		},
	}
}

func newPromptsTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List prompt topics with their counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			topics, err := app.client.ListTopics(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			printCounts(cmd.OutOrStdout(), "TOPIC", topics)
			return nil
		},
	}
}

func newPromptsLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List detected prompt languages with their counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			languages, err := app.client.ListLanguages(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			printCounts(cmd.OutOrStdout(), "LANGUAGE", languages)
			return nil
		},
	}
}

func newPromptsReclassifyCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reclassify [prompt-id]",
		Short: "Re-run intent classification for one prompt or the whole project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("pass a prompt id or --all")
			}
			if all && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with a prompt id")
			}

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid prompt id: %w", err)
				}
				prompt, err := app.client.ReclassifyPrompt(cmd.Context(), id)
				if err != nil {
					return err
				}
				app.notifier.Success(fmt.Sprintf("Reclassified as %s", prompt.IntentLabel))
				return nil
			}

			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			// The backend reclassifies inline and returns the count, so
			// there is no task to poll.
			res, err := app.client.ReclassifyAll(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			app.cache.InvalidatePrefix(cache.Key("prompts", projectID.String()))
			app.cache.Invalidate(cache.Key("project-stats", projectID.String()))
			app.notifier.Success(fmt.Sprintf("Reclassified %d prompts", res.UpdatedCount))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reclassify every prompt in the project")
	return cmd
}
