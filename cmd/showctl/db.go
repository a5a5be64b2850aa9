package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/ta25stage/stagelink/migrations"

	"github.com/ta25stage/stagelink/internal/infrastructure/config"
	"github.com/ta25stage/stagelink/internal/infrastructure/database"
)

// openJournalDB opens the coordinator's journal database. Opening would
// create an empty file, so a missing database is reported instead.
func openJournalDB(cfg *config.Config) (*database.DB, error) {
	if !cfg.Database.Enabled {
		return nil, errors.New("the dispatch journal is disabled in this config")
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("journal database %s: %w", cfg.Database.Path, err)
	}
	db, err := database.Open(database.FromConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return db, nil
}

func newDBCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and maintain the journal database schema",
	}
	cmd.AddCommand(
		newDBStatusCmd(opts),
		newDBMigrateCmd(opts),
		newDBRollbackCmd(opts),
	)
	return cmd
}

func newDBStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"path":    db.Path(),
					"current": status.Current(),
					"applied": status.Applied,
					"pending": status.Pending,
				})
			}

			w := newTabWriter(cmd)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATE\tAPPLIED AT")
			for _, a := range status.Applied {
				fmt.Fprintf(w, "%s\t%s\tapplied\t%s\n",
					a.Version, nameOr(a.Name), a.AppliedAt.Local().Format(time.DateTime))
			}
			for _, p := range status.Pending {
				fmt.Fprintf(w, "%s\t%s\tpending\t-\n", p.Version, p.Name)
			}
			fmt.Fprintf(w, "schema version %s, %d pending\n", nameOr(status.Current()), len(status.Pending))
			return w.Flush()
		},
	}
}

func newDBMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			before, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			version, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"applied": len(before.Pending),
					"current": version,
				})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations, schema version %s\n",
				len(before.Pending), nameOr(version))
			return err
		},
	}
}

func newDBRollbackCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert the most recent schema migration",
		Long: "Revert the most recent schema migration. Rolling back the dispatch_log\n" +
			"migration drops the journal table and every entry in it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("rollback can drop journal data, pass --yes to confirm")
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := db.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{"rolled_back": m})
			}
			if m.Version == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied, nothing to roll back")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s (%s)\n", m.Version, m.Name)
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the rollback")
	return cmd
}

func (o *globalOptions) openDB() (*database.DB, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return openJournalDB(cfg)
}

func nameOr(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
