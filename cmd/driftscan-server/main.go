package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/catherinevee/driftscan/internal/ai"
	"github.com/catherinevee/driftscan/internal/analyzer"
	"github.com/catherinevee/driftscan/internal/api"
	"github.com/catherinevee/driftscan/internal/config"
	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/metrics"
	"github.com/catherinevee/driftscan/internal/rules"
	"github.com/catherinevee/driftscan/internal/scoring"
)

func main() {
	configPath := os.Getenv("DRIFTSCAN_CONFIG")

	cfgManager := config.NewManager()
	if err := cfgManager.Load(configPath); err != nil {
		logger.Get().Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger.Initialize(cfg.Logging)
	log := logger.New("main")

	// Probe local model availability once at startup. The flag is
	// read-only for the life of the process.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 3*time.Second)
	available := ai.ProbeOllama(probeCtx, cfg.AI.Ollama.Host)
	cancelProbe()
	cfgManager.SetOllamaAvailable(available)
	log.Info("ollama reachability probed",
		logger.String("host", cfg.AI.Ollama.Host),
		logger.Bool("available", available))

	if configPath != "" {
		if err := cfgManager.Watch(); err != nil {
			log.Warn("config hot reload disabled", logger.Error(err))
		}
		defer cfgManager.Close()
	}

	scorer, err := scoring.NewWeightScorer(cfg.Scoring.WeightsFile)
	if err != nil {
		log.Error("failed to initialize severity scorer", logger.Error(err))
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	pipeline := analyzer.New(analyzer.Options{
		Selector: ai.NewSelector(),
		Rules:    rules.NewEngine(),
		Scorer:   scorer,
		Metrics:  m,
		Settings: func() config.AISettings { return cfgManager.Get().AI },
	})

	server := api.NewServer(pipeline, cfgManager, m, prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("server failed", logger.Error(err))
		os.Exit(1)
	case sig := <-stop:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", logger.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
