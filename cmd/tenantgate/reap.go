package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/http/services/reaper"
)

func (c *cli) reapCmd() *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "reap-pending",
		Short: "Elimina identidades pendientes de pago abandonadas",
		Long: `Elimina identidades sin confirmar con pending_payment=true creadas hace más de
--older-than y que no tienen tenant. Pensado para correr como cron.

  tenantgate reap-pending --older-than 48h --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return c.withApp(ctx, func(ctx context.Context, a *app.App) error {
				rep, err := a.Services.Reaper.Reaper.Sweep(ctx, reaper.SweepRequest{
					OlderThan: olderThan,
					DryRun:    dryRun,
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				fmt.Fprintf(out, "scanned=%d deleted=%d skipped=%d failed=%d dry_run=%t\n",
					rep.Scanned, rep.Deleted, rep.Skipped, rep.Failed, dryRun)
				for _, id := range rep.Candidates {
					fmt.Fprintln(out, " -", id)
				}
				if rep.Failed > 0 {
					return fmt.Errorf("%d identidades no se pudieron eliminar", rep.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Antigüedad mínima (ej: 48h). Requerido")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Solo listar, no eliminar")
	cmd.Flags().IntVar(&limit, "limit", 0, "Máximo de identidades por pasada (0 = sin límite)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Salida JSON")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}
