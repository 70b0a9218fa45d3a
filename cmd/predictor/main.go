package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/impact-predictor-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/impact-predictor-service/internal/adapter/kafka"
	"github.com/couchcryptid/impact-predictor-service/internal/artifact"
	"github.com/couchcryptid/impact-predictor-service/internal/config"
	"github.com/couchcryptid/impact-predictor-service/internal/observability"
	"github.com/couchcryptid/impact-predictor-service/internal/pipeline"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	bundles, err := artifact.FromPaths(cfg.ArtifactPaths)
	if err != nil {
		logger.Error("failed to load artifacts", "error", err)
		os.Exit(1)
	}
	registry, err := predictor.Build(bundles, cfg.DefaultApp, metrics, logger)
	if err != nil {
		logger.Error("failed to build predictors", "error", err)
		os.Exit(1)
	}
	for _, p := range registry.All() {
		logger.Info("app loaded",
			"app", p.Name(),
			"source", p.Bundle().Source,
			"features", p.Schema().Len(),
			"model", p.Bundle().Model.Kind,
		)
	}

	srv, err := httpadapter.NewServer(cfg.HTTPAddr, registry, observability.AllReady(registry), logger)
	if err != nil {
		logger.Error("failed to create http server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start batch scoring (feature-flagged via KAFKA_ENABLED).
	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p = pipeline.New(reader, pipeline.NewScorer(registry, logger), writer, logger, metrics, cfg.BatchSize)

		logger.Info("kafka batch scoring enabled",
			"brokers", cfg.KafkaBrokers,
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
		)
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka batch scoring disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if p != nil {
		logger.Info("pipeline stopped", "was_ready", p.Ready())
	}

	logger.Info("shutdown complete")
}
