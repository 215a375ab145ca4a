package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avetisov/ragline/internal/bootstrap"
	"github.com/avetisov/ragline/internal/config"
	"github.com/avetisov/ragline/internal/core/domain"
	"github.com/avetisov/ragline/internal/observability/logging"
	"github.com/avetisov/ragline/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("ingestor", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	ingestMetrics := metrics.NewIngestMetrics("ingestor")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.IngestorMetricsPort,
		Handler: metricsMux(ingestMetrics),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("ingestor_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeObjectCreated(ctx, func(handlerCtx context.Context, events []domain.IngestEvent) {
		start := time.Now()
		ingestMetrics.ObserveBatch("ingestor", len(events))
		for _, event := range events {
			if !event.EventTime.IsZero() {
				ingestMetrics.ObserveNotifyLag("ingestor", start.Sub(event.EventTime))
			}
			ingestMetrics.StartItem()
		}

		batchCtx, cancel := context.WithTimeout(handlerCtx, 15*time.Minute)
		report := app.IngestUC.HandleNotification(batchCtx, events)
		cancel()

		prev := start
		for _, item := range report.Items {
			ingestMetrics.FinishItem("ingestor", string(item.Status), item.FinishedAt.Sub(prev))
			prev = item.FinishedAt
		}

		logger.Info("batch_done",
			"size", len(events),
			"indexed", report.Indexed(),
			"skipped", report.Skipped(),
			"failed", report.Failed(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	})
	if err != nil {
		log.Fatalf("ingestor subscribe error: %v", err)
	}
}

func metricsMux(m *metrics.IngestMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
