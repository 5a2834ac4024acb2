package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
)

func newImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Upload and process prompt CSV files",
	}
	cmd.AddCommand(
		newImportsUploadCmd(),
		newImportsProcessCmd(),
		newImportsShowCmd(),
		newImportsListCmd(),
		newImportsDeleteCmd(),
	)
	return cmd
}

// newImportsUploadCmd is step one of the two-step import wizard: the file is
// uploaded, the backend replies with a preview and a suggested column
// mapping, and the user confirms or corrects the mapping in step two.
func newImportsUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV and preview the suggested column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			preview, err := app.client.UploadCSV(cmd.Context(), projectID, args[0], f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %s: %d rows, columns %s\n",
				args[0], preview.TotalRows, strings.Join(preview.Columns, ", "))
			fmt.Fprintln(out, "\nSuggested mapping:")
			t := newTable(out, "FIELD", "COLUMN")
			for field, col := range preview.SuggestedMapping {
				t.row(field, col)
			}
			t.flush()
			fmt.Fprintf(out, "\nRun: llmo imports process %s", preview.ImportID)
			for field, col := range preview.SuggestedMapping {
				fmt.Fprintf(out, " --map %s=%s", field, col)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// newImportsProcessCmd is step two: confirm the mapping and poll the
// processing job until the prompts are imported.
func newImportsProcessCmd() *cobra.Command {
	var mapping []string
	var detach bool
	cmd := &cobra.Command{
		Use:   "process <import-id>",
		Short: "Process an uploaded CSV with a confirmed column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			importID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid import id: %w", err)
			}
			columnMapping, err := parseMapping(mapping)
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}

			op := app.operation("csv_process",
				func(ctx context.Context) (string, error) {
					ref, err := app.client.ProcessImport(ctx, importID, columnMapping)
					if err != nil {
						return "", err
					}
					return ref.ID(), nil
				},
				cache.Key("imports", projectID.String()),
				cache.Key("prompts", projectID.String()),
				cache.Key("project-stats", projectID.String()),
			)
			op.Message = func(st jobs.Status) string {
				if st.Progress != nil {
					return fmt.Sprintf("Imported %d prompts (%d failed)",
						st.Progress.Processed-st.Progress.Failed, st.Progress.Failed)
				}
				return "CSV import completed"
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
	cmd.Flags().StringArrayVar(&mapping, "map", nil, "column mapping field=column (repeatable)")
	cmd.Flags().BoolVar(&detach, "detach", false, "start the job and print its task id without polling")
	return cmd
}

func parseMapping(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one --map field=column is required")
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, col, ok := strings.Cut(pair, "=")
		if !ok || field == "" || col == "" {
			return nil, fmt.Errorf("invalid --map %q, expected field=column", pair)
		}
		out[field] = col
	}
	return out, nil
}

func newImportsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <import-id>",
		Short: "Show one CSV import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			importID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid import id: %w", err)
			}
			imp, err := app.client.GetImport(cmd.Context(), importID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), imp)
		},
	}
}

func newImportsListCmd() *cobra.Command {
	var status string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List CSV imports for the selected project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			projectID, err := app.projectID()
			if err != nil {
				return err
			}
			f := api.ImportFilter{
				ProjectID:  projectID,
				Status:     api.ImportStatus(status),
				PageParams: api.PageParams{Page: page, PageSize: pageSize},
			}
			key := cache.Key("imports", projectID.String(), f.Encode().Encode())
			cached, err := app.cache.GetOrFetch(cmd.Context(), key, func(ctx context.Context) (any, error) {
				return app.client.ListImports(ctx, f)
			})
			if err != nil {
				return err
			}
			result := cached.(api.PageOf[api.CSVImport])

			t := newTable(cmd.OutOrStdout(), "ID", "FILE", "STATUS", "ROWS", "PROCESSED", "FAILED", "CREATED")
			for _, imp := range result.Items {
				t.row(imp.ID.String(), imp.Filename, string(imp.Status),
					strconv.FormatInt(imp.TotalRows, 10),
					strconv.FormatInt(imp.ProcessedRows, 10),
					strconv.FormatInt(imp.FailedRows, 10),
					fmtTime(imp.CreatedAt))
			}
			t.flush()
			pageFooter(cmd.OutOrStdout(), result.Page, result.Pages, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|validating|processing|completed|failed)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")
	return cmd
}

func newImportsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <import-id>",
		Short: "Delete an import and the prompts it created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd.Context())
			if err != nil {
				return err
			}
			importID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid import id: %w", err)
			}
			if err := app.client.DeleteImport(cmd.Context(), importID); err != nil {
				return err
			}
			if projectID, perr := app.projectID(); perr == nil {
				app.cache.InvalidatePrefix(cache.Key("imports", projectID.String()))
				app.cache.InvalidatePrefix(cache.Key("prompts", projectID.String()))
			}
			app.notifier.Success(fmt.Sprintf("Deleted import %s", importID))
			return nil
		},
	}
}
