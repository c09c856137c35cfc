package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(); err != nil {
				return fmt.Errorf("configuración inválida:\n%w", err)
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return c.withApp(ctx, func(ctx context.Context, a *app.App) error {
				logger.L().Info("tenantgate starting",
					logger.String("addr", c.cfg.Server.Addr),
					logger.String("env", c.cfg.App.Env),
				)
				return a.Serve(ctx)
			})
		},
	}
}
