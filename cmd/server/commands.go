package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/far-prep/backend/internal/config"
	"github.com/far-prep/backend/internal/database"
	"github.com/far-prep/backend/internal/models"
	"github.com/far-prep/backend/internal/questions"
)

// withApp opens the app for the duration of fn.
func withApp(opts *rootOptions, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(opts.cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ── due ─────────────────────────────────────────────────

func newDueCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show questions due for study now",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			qs, err := a.svc.BuildQueue(cmd.Context(), questions.QueueRequest{Mode: models.ModeLearn})
			if err != nil {
				return err
			}
			return printDue(cmd.OutOrStdout(), qs, limit)
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "rows to list")
	return cmd
}

func printDue(out io.Writer, qs []models.Question, limit int) error {
	if len(qs) == 0 {
		fmt.Fprintln(out, "No questions due. Good job.")
		return nil
	}
	fmt.Fprintf(out, "%d questions due:\n\n", len(qs))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSession\tTopic\tPrompt")
	fmt.Fprintln(w, "--\t-------\t-----\t------")
	for i, q := range qs {
		if limit > 0 && i == limit {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncate(q.ID, 12), q.Session, q.Topic, truncate(q.Prompt, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if limit > 0 && len(qs) > limit {
		fmt.Fprintf(out, "... and %d more\n", len(qs)-limit)
	}
	return nil
}

// ── stats ───────────────────────────────────────────────

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show study progress",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			stats, err := a.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats)
		}),
	}
}

func printStats(out io.Writer, s models.StatsResponse) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Questions\t%d\n", s.TotalQuestions)
	fmt.Fprintf(w, "Mastered\t%d\n", s.MasteredCount)
	fmt.Fprintf(w, "Attempts\t%d\n", s.TotalAttempts)
	fmt.Fprintf(w, "Accuracy\t%.0f%%\n", s.Accuracy*100)
	fmt.Fprintf(w, "Due now\t%d\n", s.DueNow)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(s.WeakTopics) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nWeakest topics:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range s.WeakTopics {
		fmt.Fprintf(w, "  %s\t%.0f%%\t(%d attempts)\n", t.Topic, t.Accuracy*100, t.Total)
	}
	return w.Flush()
}

// ── import / export ─────────────────────────────────────

func formatFor(path, flag string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge questions from a .json or .xlsx file into the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			res, err := a.svc.Import(cmd.Context(), f, formatFor(args[0], format))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d of %d (%d duplicates, %d invalid) into %s\n",
				res.Imported, res.TotalInPayload, res.Skipped, res.Invalid, a.cfg.CorpusPath)
			for _, e := range res.Errors {
				fmt.Fprintln(out, "  -", e)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "", "json or xlsx (default from extension)")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the corpus as JSON or XLSX (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if len(args) == 0 {
				return a.svc.Export(cmd.OutOrStdout(), formatFor("", format))
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := a.svc.Export(f, formatFor(args[0], format)); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d questions to %s\n", a.svc.Corpus().Len(), args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "", "json or xlsx (default from extension, json on stdout)")
	return cmd
}

// ── reset ───────────────────────────────────────────────

func newResetCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all progress, bookmarks and attempt history",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Reset all progress? Type 'yes' to continue: ") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			if err := a.svc.ResetProgress(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Progress reset.")
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

// ── migrate ─────────────────────────────────────────────

// openSchemaDB opens the database behind a sql-backed storage driver.
func openSchemaDB(sc config.StorageConfig) (*sql.DB, error) {
	switch sc.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	case config.DriverPostgres:
		return database.Connect(sc.Postgres.DSN())
	default:
		return nil, fmt.Errorf("storage driver %q has no schema to migrate", sc.Driver)
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the progress database schema",
	}

	run := func(fn func(cmd *cobra.Command, db *sql.DB, driver string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := openSchemaDB(opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd, db, opts.cfg.Storage.Driver)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: run(func(cmd *cobra.Command, db *sql.DB, driver string) error {
				if err := database.Migrate(db, driver); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: run(func(cmd *cobra.Command, db *sql.DB, driver string) error {
				if err := database.MigrateDown(db, driver); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back.")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: run(func(cmd *cobra.Command, db *sql.DB, driver string) error {
				version, dirty, ok, err := database.Version(db, driver)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version %d (dirty=%t)\n", version, dirty)
				return nil
			}),
		},
	)
	return cmd
}
