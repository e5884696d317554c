package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// StartKafka consumes JSON window payloads from a Kafka topic.
func StartKafka(ctx context.Context, cfg *config.Manager, dedupe *DedupeCache, out chan<- model.SensorWindow, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				// Pace retries so a down broker does not spin the loop.
				if !BackoffSleep(ctx, time.Second) {
					return
				}
				continue
			}
			window, err := ParseWindow(m.Value)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka parse error", "err", err)
				}
				continue
			}
			snapshot := cfg.Get()
			window, err = Normalize(window, snapshot)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka normalize error", "err", err)
				}
				continue
			}
			window.Source = "kafka"
			if dedupe != nil && dedupe.Seen(window, time.Now().UTC(), snapshot.Ingest.DedupeWindow) {
				continue
			}
			SendNonBlocking(ctx, out, window, logger)
		}
	}()
}
