package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenprint/api/internal/app"
	"greenprint/api/internal/assist"
	"greenprint/api/internal/config"
	"greenprint/api/internal/export"
	"greenprint/api/internal/logger"
	"greenprint/api/internal/metrics"
	"greenprint/api/internal/persist"
	"greenprint/api/internal/search"
	"greenprint/api/internal/versions"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	m := metrics.Default()

	if err := os.MkdirAll(cfg.VersionsDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create versions dir")
	}

	store := persist.NewHTTPStore(cfg.PersistenceURL, 15*time.Second, log)
	versionService := versions.New(cfg.VersionsDir)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory(), log)

	assistClient := assist.NewHTTPClient(cfg.AssistURL, cfg.AssistTimeout, log)
	assistService := assist.NewService(assistClient, assist.Config{
		Timeout:  cfg.AssistTimeout,
		Language: cfg.AssistLanguage,
		MinChars: cfg.MinAssistChars,
	}, log, m)
	defer assistService.Flush()

	exportService := export.NewService(log, m)

	service := app.NewService(app.Deps{
		Store:    store,
		Assist:   assistService,
		Versions: versionService,
		Search:   searchService,
		Export:   exportService,
		Metrics:  m,
		Log:      log,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, log, m)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpServer.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("GreenPrint API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
