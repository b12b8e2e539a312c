package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/y0f/apifuzz/internal/config"
	"github.com/y0f/apifuzz/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs recorded in the report database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		return listRuns(cmd.Context(), store, cmd.OutOrStdout(), limit)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the test cases of a recorded run",
	Example: `  apifuzz show 0b7f5c52-6f7e-4c1a-9f44-3f0b2d1c9a10
  apifuzz show 0b7f5c52-6f7e-4c1a-9f44-3f0b2d1c9a10 --result error --page 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		f := cmd.Flags()
		var filter storage.TestCaseFilter
		filter.Result, _ = f.GetString("result")
		filter.Fuzzer, _ = f.GetString("fuzzer")
		filter.Path, _ = f.GetString("path")
		var page storage.Pagination
		page.Page, _ = f.GetInt("page")
		page.PerPage, _ = f.GetInt("per-page")
		return showRun(cmd.Context(), store, cmd.OutOrStdout(), args[0], filter, page)
	},
}

func init() {
	for _, c := range []*cobra.Command{runsCmd, showCmd} {
		c.Flags().String("db", "", "path to the sqlite report database")
	}
	runsCmd.Flags().Int("limit", 20, "number of runs to list")

	f := showCmd.Flags()
	f.String("result", "", "only test cases with this result (success|warning|error)")
	f.String("fuzzer", "", "only test cases of this fuzzer")
	f.String("path", "", "only test cases of this contract path")
	f.Int("page", 1, "page number")
	f.Int("per-page", 50, "test cases per page")
}

// openStore opens the report database named by --db or the config file.
// A missing database is an error rather than a new empty one.
func openStore(cmd *cobra.Command) (*storage.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Report.DatabasePath = db
	}
	if cfg.Report.DatabasePath == "" {
		return nil, fmt.Errorf("no report database configured")
	}
	if _, err := os.Stat(cfg.Report.DatabasePath); err != nil {
		return nil, fmt.Errorf("open report database: %w", err)
	}
	return storage.NewSQLiteStore(cfg.Report.DatabasePath, cfg.Report.MaxReadConns)
}

func listRuns(ctx context.Context, store storage.Store, out io.Writer, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "no runs recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tTOTAL\tSUCCESS\tWARNINGS\tERRORS\tCONTRACT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			runDuration(r),
			r.Total, r.Success, r.Warnings, r.Errors,
			r.Contract,
		)
	}
	return w.Flush()
}

func runDuration(r *storage.Run) string {
	if r.FinishedAt == nil {
		return "unfinished"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func showRun(ctx context.Context, store storage.Store, out io.Writer, id string, f storage.TestCaseFilter, p storage.Pagination) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	page, err := store.ListTestCases(ctx, run.ID, f, p)
	if err != nil {
		return err
	}
	cases, _ := page.Data.([]*storage.TestCase)

	fmt.Fprintf(out, "run %s against %s (%s)\n", run.ID, run.BaseURL, run.Contract)
	fmt.Fprintf(out, "%d tests: %d success, %d warnings, %d errors\n\n", run.Total, run.Success, run.Warnings, run.Errors)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tRESULT\tFUZZER\tMETHOD\tPATH\tCODE\tDETAILS")
	for _, tc := range cases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			tc.TestID, tc.Result, tc.Fuzzer, tc.Method, tc.Path, tc.StatusCode, tc.ResultDetails)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "\npage %d of %d, %d matching test cases\n", page.Page, max(page.TotalPages, 1), page.Total)
	return err
}
