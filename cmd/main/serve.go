package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/auth"
	"github.com/matt-steen/taskflow/pkg/notify"
	"github.com/matt-steen/taskflow/pkg/registry"
	"github.com/matt-steen/taskflow/pkg/server"
	"github.com/matt-steen/taskflow/pkg/telemetry"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API until interrupted.

Examples:
  taskflow serve --addr :8080
  TASKFLOW_DB_DRIVER=mysql TASKFLOW_DB_HOST=db taskflow serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "listen address")
	_ = c.v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func (c *cli) runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closer, err := c.setupLogging("")
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info().Str("version", version).Msg("starting taskflow")

	if err = telemetry.Init(ctx, c.cfg.Metrics(version)); err != nil {
		return fmt.Errorf("error starting telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	database, err := c.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	accountService := accounts.NewService(database)
	if err = c.ensureAdmin(ctx, accountService); err != nil {
		return err
	}

	sessions, err := auth.NewSessions(c.cfg.Session.Secret, c.cfg.Session.TTL)
	if err != nil {
		return err
	}

	notifier := notify.New(c.cfg.Mail(), c.cfg.SMTP.Timeout)

	srv, err := server.New(server.Deps{
		Accounts:       accountService,
		Registry:       registry.New(database),
		Engine:         workflow.New(database, accountService, workflow.WithNotifier(notifier)),
		Sessions:       sessions,
		Health:         database.Ping,
		SecureCookie:   c.cfg.HTTP.SecureCookie,
		TrustedProxies: c.cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx, c.cfg.HTTP.Addr, c.cfg.HTTP.ReadTimeout, c.cfg.HTTP.WriteTimeout)
}
