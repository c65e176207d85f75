package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gex-analytics/internal/analyzer"
	"github.com/dgnsrekt/gex-analytics/internal/config"
	"github.com/dgnsrekt/gex-analytics/internal/data"
	"github.com/dgnsrekt/gex-analytics/internal/metrics"
	"github.com/dgnsrekt/gex-analytics/internal/provider"
	"github.com/dgnsrekt/gex-analytics/internal/server"
	"github.com/dgnsrekt/gex-analytics/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}

	engineCfg, err := config.Load(cfg.EngineConfig)
	if err != nil {
		logger.Error("failed to load engine config", zap.Error(err))
		return 1
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("dataDir", cfg.DataDir),
		zap.String("dataDate", cfg.DataDate),
		zap.String("dataMode", cfg.DataMode),
		zap.String("cacheMode", cfg.CacheMode),
		zap.Bool("wsEnabled", cfg.WSEnabled),
		zap.Duration("wsStreamInterval", cfg.WSStreamInterval),
		zap.Bool("liveEnabled", cfg.LiveEnabled),
	)

	logger.Info("loading snapshots...", zap.String("mode", cfg.DataMode))
	start := time.Now()

	initial, err := server.CreateLoader(cfg.DataMode, cfg.DataDir, cfg.DataDate, logger)
	if err != nil {
		logger.Error("failed to load data", zap.Error(err))
		return 1
	}
	loader := data.NewReloadableLoader(initial)
	defer loader.Close()

	logger.Info("snapshots loaded",
		zap.Duration("duration", time.Since(start)),
		zap.Strings("tickers", loader.GetLoadedTickers()),
	)

	cache := data.NewIndexCache(data.ParseCacheMode(cfg.CacheMode))
	reloadManager := server.NewReloadManager(loader, cache, cfg, logger)

	metrics.Init()

	srv := server.NewServer(loader, cache, cfg, engineCfg.Engine, logger)
	srv.SetReloadManager(reloadManager)

	var live analyzer.ChainSource
	if cfg.LiveEnabled {
		if err := engineCfg.RequireProvider(); err != nil {
			logger.Error("live analysis enabled without provider", zap.Error(err))
			return 1
		}
		p := engineCfg.Provider
		live = provider.NewClient(p.BaseURL, p.Token, p.RatePerSecond, p.Timeout(), p.RetryBackoff(), p.RetryCount, logger)
		srv.SetLiveSource(live)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		hub              *ws.Hub
		negotiateHandler *ws.NegotiateHandler
	)
	if cfg.WSEnabled {
		// Live mode can stream any symbol, replay only what was recorded
		validGroup := loader.Exists
		if live != nil {
			validGroup = config.ValidTicker
		}
		hub = ws.NewHub("analysis", validGroup, logger)
		go hub.Run(ctx)

		streamer, err := ws.NewStreamer(hub, ws.StreamerConfig{
			Loader:   loader,
			Cache:    cache,
			Live:     live,
			Params:   engineCfg.Engine,
			Interval: cfg.WSStreamInterval,
			Pauser:   reloadManager,
		}, logger)
		if err != nil {
			logger.Error("failed to create streamer", zap.Error(err))
			return 1
		}
		go streamer.Run(ctx)

		negotiateHandler = ws.NewNegotiateHandler(server.WebSocketPath, logger)

		logger.Info("WebSocket enabled",
			zap.String("path", server.WebSocketPath),
			zap.Duration("streamInterval", cfg.WSStreamInterval),
		)
	}

	router, err := server.NewRouter(srv, hub, negotiateHandler, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Stops the hub and streamer
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}
