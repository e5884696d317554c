package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"healthwatch/internal/acquire"
	"healthwatch/internal/alerts"
	"healthwatch/internal/api"
	"healthwatch/internal/config"
	"healthwatch/internal/ingest"
	"healthwatch/internal/logging"
	"healthwatch/internal/memory"
	"healthwatch/internal/model"
	"healthwatch/internal/monitor"
	"healthwatch/internal/storage"
	"healthwatch/internal/ticket"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML or JSON config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "healthwatch:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var manager *config.Manager
	if configPath != "" {
		m, err := config.NewManager(config.ResolvePath(configPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		manager = m
	} else {
		manager = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := manager.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting healthwatch", "version", version, "machines", cfg.Machines)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	var sink ticket.Sink
	if cfg.Ticket.Endpoint != "" {
		sink = ticket.NewHTTPSink(cfg.Ticket.Endpoint, cfg.Ticket.Timeout, logger)
		logger.Info("ticket sink enabled", "endpoint", cfg.Ticket.Endpoint)
	} else {
		sink = ticket.NewStubSink(logger)
		logger.Info("ticket sink stubbed, no endpoint configured")
	}

	bank := memory.NewBank(cfg.Memory.Capacity)
	alertStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	faultStore := alerts.NewFaultStore(cfg.Alerts.FaultLimit)

	orch := monitor.NewOrchestrator(cfg, logger, bank, alertStore, faultStore, store, sink)

	windows := make(chan model.SensorWindow, cfg.Ingest.ChannelBuffer)
	dedupe := ingest.NewDedupeCache()
	ingest.StartREST(ctx, manager, dedupe, windows, logger)
	ingest.StartTCPStream(ctx, manager, dedupe, windows, logger)
	ingest.StartKafka(ctx, manager, dedupe, windows, logger)
	acquire.NewSimulator(cfg.Acquire, logger).Start(ctx, cfg.Machines, windows)

	orch.Start(ctx, windows)
	api.Start(ctx, manager, bank, alertStore, faultStore, orch, logger, version)

	if configPath != "" {
		go manager.Watch(0,
			func(next *config.Config) {
				orch.UpdateConfig(next)
				logger.Info("config reloaded", "path", manager.Path())
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			ctx.Done(),
		)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	orch.Wait()
	return nil
}
