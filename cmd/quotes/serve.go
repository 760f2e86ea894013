package main

import (
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/quote-compare/internal/auth"
	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/export"
	"github.com/joseph-ayodele/quote-compare/internal/fieldschema"
	"github.com/joseph-ayodele/quote-compare/internal/server"
	"github.com/joseph-ayodele/quote-compare/internal/session"
)

const (
	sessionIdleTimeout = 12 * time.Hour
	sweepInterval      = 10 * time.Minute
	healthProbeEvery   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the gRPC health listener when GRPC_ADDR is set)",
	Long: `Start the quote comparison HTTP API.

Routes:
  GET    /health
  POST   /login, /logout
  GET    /api/v1/fields, /api/v1/table, /api/v1/export, /api/v1/jobs
  POST   /api/v1/schema, /api/v1/extract
  DELETE /api/v1/schema

Stops gracefully on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := common.LoadConfig()
		logger := newLogger(cfg)

		if err := cfg.Validate(); err != nil {
			logger.Error("config.invalid", "error", err)
			return err
		}
		authCfg, err := auth.LoadConfig(cfg.Auth.ConfigPath)
		if err != nil {
			logger.Error("auth.config.invalid", "path", cfg.Auth.ConfigPath, "error", err)
			return err
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("startup.failed", "error", err)
			return err
		}
		defer a.Close()

		sessions := session.NewStore(logger)
		srv := server.New(server.Deps{
			Auth:              auth.NewAuthenticator(authCfg, logger),
			Sessions:          sessions,
			Resolver:          fieldschema.NewResolver(logger),
			Processor:         a.processor,
			Export:            export.NewService(logger),
			Jobs:              a.jobs,
			DB:                a.db,
			RendererAvailable: a.reader.RendererAvailable,
			MaxUploadBytes:    int64(cfg.Server.MaxUploadMB) << 20,
			Logger:            logger,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx, cfg.Server.HTTPAddr) })
		if cfg.Server.GRPCAddr != "" {
			ops := server.NewOpsServer(a.db, logger)
			g.Go(func() error { return ops.Serve(gctx, cfg.Server.GRPCAddr, healthProbeEvery) })
		}
		g.Go(func() error {
			t := time.NewTicker(sweepInterval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					sessions.Sweep(sessionIdleTimeout)
				}
			}
		})

		if err := g.Wait(); err != nil {
			logger.Error("serve.stopped", "error", err)
			return err
		}
		logger.Info("serve.stopped")
		return nil
	},
}
