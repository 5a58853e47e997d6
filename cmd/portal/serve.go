package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/SlpAus/ricebowl-portal/api"
	"github.com/SlpAus/ricebowl-portal/internal/platform/logging"
	"github.com/SlpAus/ricebowl-portal/internal/portal"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务并周期刷新快照",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	a.warmStart(ctx)
	if err := a.engine.StartRefresh(ctx); err != nil {
		return err
	}

	handler := portal.NewHandler(a.engine, a.status, a.fetcher, cfg.Server.RefreshRateLimit, cfg.Server.RefreshBurst, logger)
	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.NewRouter(cfg.Server, handler, a.metrics.Handler(), logger),
	}
	server.RegisterOnShutdown(handler.Close)

	fatal := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("服务器已准备就绪，开始监听")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal <- err
		}
	}()

	a.coordinator().ListenForSignalsAndShutdown(server, fatal)
	return nil
}
