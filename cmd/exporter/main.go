package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/buienradar-exporter/internal/adapter/buienradar"
	httpadapter "github.com/couchcryptid/buienradar-exporter/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/buienradar-exporter/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/buienradar-exporter/internal/adapter/mqtt"
	"github.com/couchcryptid/buienradar-exporter/internal/config"
	"github.com/couchcryptid/buienradar-exporter/internal/observability"
	"github.com/couchcryptid/buienradar-exporter/internal/pipeline"
	"github.com/couchcryptid/buienradar-exporter/internal/registry"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional sinks (enabled via KAFKA_BROKERS / MQTT_BROKER).
	var sinks []pipeline.Sink
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, kafkaWriter)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	var mqttPublisher *mqttadapter.Publisher
	if cfg.MQTTEnabled() {
		mqttPublisher = mqttadapter.NewPublisher(cfg, logger)
		if err := mqttPublisher.Connect(ctx); err != nil {
			logger.Error("mqtt connect failed", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, mqttPublisher)
		logger.Info("mqtt sink enabled", "broker", cfg.MQTTBroker, "prefix", cfg.MQTTTopicPrefix)
	}

	client := buienradar.NewClient(cfg, logger, metrics)
	gauges := registry.New(prometheus.DefaultRegisterer, registry.Options{PruneStale: cfg.PruneStaleSeries})
	p := pipeline.New(client, gauges, clockwork.NewRealClock(), logger, metrics, sinks...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, prometheus.DefaultGatherer, p, logger)

	// Start HTTP server.
	go func() {
		logger.Info("serving metrics", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poller.
	pipelineErr := make(chan error, 1)
	go func() { pipelineErr <- p.Run(ctx) }()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-pipelineErr:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
		stop()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if mqttPublisher != nil {
		mqttPublisher.Disconnect()
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}
