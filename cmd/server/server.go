package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/logging"
	"bourse/internal/metrics"
	"bourse/internal/net"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	logging.Setup(cfg.Logging)

	// Setup the matching engine, its metrics and the TCP server.
	var opts []engine.Option
	if cfg.Metrics.Enabled {
		recorder := metrics.NewRecorder()
		go serveMetrics(ctx, cfg.Metrics.Address, metrics.Handler(metrics.Init(recorder)))
		opts = append(opts, engine.WithObserver(recorder))
	}
	eng := engine.New(opts...)
	srv := net.New(cfg.Server, eng)

	// Block on running the server.
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server shut down")
}

func serveMetrics(ctx context.Context, address string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	metricsServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", address).Msg("serving metrics")
	if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
