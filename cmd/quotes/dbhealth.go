package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/repository"
)

var (
	dbhealthSession string
	dbhealthLimit   int
)

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check the extraction journal database and list recent jobs of a session",
	Long: `Check the extraction journal database and list recent jobs of a session.

Without DB_URL the journal is an in-memory SQLite database that lives only as
long as one process, so --session requires DB_URL to point at the database
the server writes to.

Examples:
  quotes dbhealth
  DB_URL=postgres://... quotes dbhealth --session 3f2c... --limit 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := common.LoadConfig()
		logger := newLogger(cfg)
		out := cmd.OutOrStdout()

		if err := checkSessionListing(cfg.Database.DSN, dbhealthSession); err != nil {
			return err
		}

		db, err := repository.Open(ctx, repository.Config{
			DSN:         cfg.Database.DSN,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening DB: %w", err)
		}
		defer db.Close(logger)

		if err := repository.HealthCheck(ctx, db, time.Second, logger); err != nil {
			fmt.Fprintf(out, "DB health: FAIL (%v)\n", err)
			return err
		}
		fmt.Fprintf(out, "DB health: OK (%s)\n", db.Dialect)

		if dbhealthSession == "" {
			return nil
		}
		jobs, err := repository.NewExtractJobRepository(db, logger).ListBySession(ctx, dbhealthSession, dbhealthLimit)
		if err != nil {
			return fmt.Errorf("listing jobs: %w", err)
		}
		fmt.Fprintf(out, "jobs: %d\n", len(jobs))
		for _, j := range jobs {
			line := fmt.Sprintf("- %s %-14s %-9s %s", j.StartedAt.Local().Format(time.DateTime), j.Status, j.Method, j.FileName)
			if j.ErrorMessage != "" {
				line += "  [" + j.Stage + "] " + j.ErrorMessage
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

// checkSessionListing refuses to list jobs from the per-process in-memory journal.
func checkSessionListing(dsn, sessionID string) error {
	if sessionID != "" && dsn == "" {
		return fmt.Errorf("%w: --session needs DB_URL; the in-memory journal of this process has no jobs", common.ErrInvalidInput)
	}
	return nil
}

func init() {
	dbhealthCmd.Flags().StringVar(&dbhealthSession, "session", "", "session id whose jobs to list")
	dbhealthCmd.Flags().IntVar(&dbhealthLimit, "limit", 20, "maximum jobs to list")
	rootCmd.AddCommand(dbhealthCmd)
}
