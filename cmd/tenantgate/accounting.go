package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/app"
)

func (c *cli) accountingCmd() *cobra.Command {
	group := &cobra.Command{
		Use:   "accounting",
		Short: "Operaciones sobre la integración contable",
	}

	var (
		tenantID string
		force    bool
	)
	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refresca el access token contable de un tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return c.withApp(ctx, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Accounting.Accounting.EnsureFresh(ctx, tenantID, force)
				if err != nil {
					return err
				}
				exp := "-"
				if !res.ExpiresAt.IsZero() {
					exp = res.ExpiresAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant=%s refreshed=%t expires_at=%s\n", tenantID, res.Refreshed, exp)
				return nil
			})
		},
	}
	refresh.Flags().StringVar(&tenantID, "tenant-id", "", "ID del tenant")
	refresh.Flags().BoolVar(&force, "force", false, "Refrescar aunque el token siga vigente")
	_ = refresh.MarkFlagRequired("tenant-id")

	group.AddCommand(refresh)
	return group
}
