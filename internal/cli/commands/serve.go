package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelmig/internal/service"
	"github.com/conduit-lang/modelmig/internal/web/auth"
	"github.com/conduit-lang/modelmig/internal/web/router"
	"github.com/conduit-lang/modelmig/internal/web/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the migration HTTP service",
		Long: `Run the migration HTTP service.

Endpoints:
  POST {api_prefix}/migrationservice/           migrate the uploaded modelFiles, returns a zip
  GET  {api_prefix}/migrationservice/catalogue  list the registered document kinds
  GET  /healthz                                 liveness probe

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := service.FromConfig(ctx, cfg, logger)
			if err != nil {
				return err
			}

			var tokens *auth.TokenService
			if cfg.Auth.Enabled() {
				tokens = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			} else {
				logger.Warn("bearer authentication disabled, set auth.jwt_secret to enable it")
			}

			handler := router.New(svc, router.Config{
				APIPrefix:      cfg.Server.APIPrefix,
				MaxUploadBytes: cfg.Migration.MaxUploadBytes,
				Tokens:         tokens,
				Logger:         logger,
			})

			srvConfig := server.DefaultConfig(handler)
			srvConfig.Address = cfg.Server.Addr()
			srvConfig.ReadTimeout = cfg.Server.ReadTimeout
			srvConfig.WriteTimeout = cfg.Server.WriteTimeout
			srvConfig.Logger = logger

			srv, err := server.New(srvConfig)
			if err != nil {
				return multierr.Append(err, svc.Close())
			}
			srv.RegisterHook(func(context.Context) error {
				return svc.Close()
			})

			start := time.Now()
			err = srv.Run(ctx)
			logger.Info("service stopped", zap.Duration("uptime", time.Since(start)))
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")

	return cmd
}
