package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/config"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// Version se inyecta con -ldflags "-X main.Version=...".
var Version = "dev"

type cli struct {
	configPath string
	envFiles   []string
	cfg        *config.Config
}

func main() {
	c := &cli{}

	root := &cobra.Command{
		Use:           "tenantgate",
		Short:         "Signup con pago, aprovisionamiento de tenants e integración contable",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("CONFIG_FILE"), "Archivo YAML de configuración (env CONFIG_FILE)")
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", []string{".env"}, "Archivos .env a cargar si existen")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.reapCmd(),
		c.accountingCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// load: .env → config → logger. Corre antes de cada subcomando.
func (c *cli) load() error {
	if _, err := config.LoadDotEnv(c.envFiles...); err != nil {
		return fmt.Errorf("cargando .env: %w", err)
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "tenantgate",
		Version:     Version,
	})
	return nil
}

// withApp arma la aplicación, corre fn y libera recursos.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(ctx, c.cfg, app.Options{Version: Version})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L().Warn("close failed", logger.Err(err))
		}
	}()
	return fn(ctx, a)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
