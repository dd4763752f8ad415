package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"resforge/internal/pg"
)

func newMigrateCmd(a *app) *cobra.Command {
	var dbURL, dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the generated Postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("db") {
				a.cfg.DBURL = dbURL
			}
			if a.cfg.DBURL == "" {
				return errors.New("no database: set --db or RESFORGE_DB_URL")
			}
			if dir == "" {
				dir = filepath.Join(a.cfg.OutDir, "db", "migrations")
			}
			migs, err := pg.LoadMigrations(dir)
			if err != nil {
				return fmt.Errorf("load migrations: %w", err)
			}
			if len(migs) == 0 {
				a.log.Warn("no migrations found", zap.String("dir", dir))
				return nil
			}

			db, err := pg.Open(cmd.Context(), a.cfg.DBURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer db.Close()

			changed, err := pg.NewApplier(db, a.log).Apply(cmd.Context(), migs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d migrations, %d new or changed\n", len(migs), len(changed))
			for _, n := range changed {
				fmt.Fprintln(out, "  applied", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "db", "", "Postgres URL (default from config or RESFORGE_DB_URL)")
	cmd.Flags().StringVar(&dir, "dir", "", "migration directory (default <out>/db/migrations)")
	return cmd
}
