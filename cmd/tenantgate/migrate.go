package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/config"
	"github.com/dropDatabas3/tenantgate/internal/store/pg"
	migrations "github.com/dropDatabas3/tenantgate/migrations/postgres"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL pendientes (solo postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requiere STORE_DRIVER=postgres (actual: %q)", c.cfg.Storage.Driver)
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			st, err := pg.Connect(ctx, pg.Config{DSN: c.cfg.Storage.DSN, MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := pg.NewMigrator(migrations.FS, migrations.Dir).Run(ctx, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied=%v skipped=%d duration=%s\n",
				res.Applied, len(res.Skipped), res.Duration)
			return nil
		},
	}
}
