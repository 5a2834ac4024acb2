package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage analysis projects",
	}
	cmd.AddCommand(
		newProjectsListCmd(),
		newProjectsCreateCmd(),
		newProjectsShowCmd(),
		newProjectsStatsCmd(),
		newProjectsUpdateCmd(),
		newProjectsDeleteCmd(),
	)
	return cmd
}

func newProjectsListCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			params := api.PageParams{Page: page, PageSize: pageSize}
			key := cache.Key("projects", strconv.Itoa(page), strconv.Itoa(pageSize))
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.ListProjects(ctx, params)
			})
			if err != nil {
				return err
			}
			result := cached.(api.PageOf[api.Project])

			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "DOMAINS", "PROMPTS", "PAGES", "OPPORTUNITIES", "CREATED")
			for _, p := range result.Items {
				t.row(p.ID.String(), p.Name, strings.Join(p.TargetDomains, ","),
					strconv.FormatInt(p.PromptCount, 10),
					strconv.FormatInt(p.PageCount, 10),
					strconv.FormatInt(p.OpportunityCount, 10),
					fmtTime(p.CreatedAt))
			}
			t.flush()
			pageFooter(cmd.OutOrStdout(), result.Page, result.Pages, result.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")
	return cmd
}

func newProjectsCreateCmd() *cobra.Command {
	var in api.ProjectCreate
	var maxPages int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			if in.Name == "" || len(in.TargetDomains) == 0 {
				return fmt.Errorf("--name and at least one --domain are required")
			}
			if maxPages > 0 {
				in.CrawlConfig = &api.CrawlConfig{MaxPages: maxPages}
			}
			project, err := app.client.CreateProject(cmd.Context(), in)
			if err != nil {
				return err
			}
			app.cache.InvalidatePrefix(cache.Key("projects"))
			app.notifier.Success(fmt.Sprintf("Created project %s", project.Name))
			fmt.Fprintln(cmd.OutOrStdout(), project.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "project name")
	cmd.Flags().StringArrayVar(&in.TargetDomains, "domain", nil, "target domain to analyze (repeatable)")
	cmd.Flags().StringVar(&in.Description, "description", "", "project description")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "crawl page budget")
	return cmd
}

func newProjectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}
			project, err := app.client.GetProject(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), project)
		},
	}
}

func newProjectsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the selected project's dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := app.projectID()
			if err != nil {
				return err
			}
			key := cache.Key("project-stats", id.String())
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.ProjectStats(ctx, id)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cached.(api.ProjectStats))
		},
	}
}

func newProjectsUpdateCmd() *cobra.Command {
	var name, description string
	var domains []string
	var maxPages int
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Update a project's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}
			var in api.ProjectUpdate
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("description") {
				in.Description = &description
			}
			if cmd.Flags().Changed("domain") {
				in.TargetDomains = domains
			}
			if cmd.Flags().Changed("max-pages") {
				// The backend replaces the whole crawl config, so patch the
				// current one instead of sending a bare max_pages.
				current, err := app.client.GetProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				cfg := current.CrawlConfig
				cfg.MaxPages = maxPages
				in.CrawlConfig = &cfg
			}
			project, err := app.client.UpdateProject(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			app.cache.InvalidatePrefix(cache.Key("projects"))
			app.notifier.Success(fmt.Sprintf("Updated project %s", project.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringArrayVar(&domains, "domain", nil, "replace the target domains (repeatable)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "crawl page budget")
	return cmd
}

func newProjectsDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}
			if !force {
				return fmt.Errorf("deleting a project removes its prompts, pages, and opportunities; re-run with --force")
			}
			if err := app.client.DeleteProject(cmd.Context(), id); err != nil {
				return err
			}
			app.cache.InvalidatePrefix(cache.Key("projects"))
			app.cache.Invalidate(cache.Key("project-stats", id.String()))
			app.notifier.Success(fmt.Sprintf("Deleted project %s", id))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}
