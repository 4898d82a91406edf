package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openvcon/vconstore/internal/api"
	"github.com/openvcon/vconstore/internal/config"
	"github.com/openvcon/vconstore/internal/factory"
	"github.com/openvcon/vconstore/internal/health"
	"github.com/openvcon/vconstore/internal/hooks"
	"github.com/openvcon/vconstore/internal/logger"
	"github.com/openvcon/vconstore/internal/service"
)

func main() {
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		bootLog := logger.New("vconstore", "")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New("vconstore", cfg.LogLevel)
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		cfg.DBDriver = "auto"
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("invalid build-target override")
		}
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("vconstore starting")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, err := factory.NewStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("relational store unavailable")
	}
	c, err := factory.NewCache(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("cache unavailable")
	}
	idx, err := factory.NewSearchIndex(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("search index unavailable")
	}
	emb, err := factory.NewEmbedder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("embedding provider misconfigured")
	}

	svc := service.New(st, c, idx, emb, hooks.NewPipeline(), cfg, log)

	checks := []*health.Check{health.NewCheck("store", svc)}
	if cfg.SearchIndexURL != "" {
		checks = append(checks, health.NewCheck("index", idx))
	}
	if p, ok := emb.(health.Pinger); ok {
		checks = append(checks, health.NewCheck("embedder", p))
	}
	mon := health.NewMonitor(log, checks...)
	go mon.Start(ctx, 30*time.Second)

	router := api.NewRouter(svc, mon)
	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
