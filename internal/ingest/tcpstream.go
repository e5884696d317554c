package ingest

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// StartTCPStream reads newline-delimited JSON windows from sensor gateways.
func StartTCPStream(ctx context.Context, cfg *config.Manager, dedupe *DedupeCache, out chan<- model.SensorWindow, logger *slog.Logger) {
	current := cfg.Get().Ingest.TCPStream
	if !current.Enabled {
		if logger != nil {
			logger.Info("tcp stream ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("tcp stream ingest enabled", "addr", current.Addr)
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp stream listen error", "err", err)
		}
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("tcp stream accept error", "err", err)
				}
				continue
			}
			go handleTCPStreamConn(ctx, conn, cfg, dedupe, out, logger)
		}
	}()
}

func handleTCPStreamConn(ctx context.Context, conn net.Conn, cfg *config.Manager, dedupe *DedupeCache, out chan<- model.SensorWindow, logger *slog.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	// Windows carry full waveforms, so lines run long.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(trimSpaceBytes(line)) == 0 {
			continue
		}
		window, err := ParseWindow(line)
		if err != nil {
			if logger != nil {
				logger.Warn("tcp stream parse error", "err", err)
			}
			continue
		}
		current := cfg.Get()
		window, err = Normalize(window, current)
		if err != nil {
			if logger != nil {
				logger.Warn("tcp stream normalize error", "err", err)
			}
			continue
		}
		window.Source = "tcp_stream"
		if dedupe != nil && dedupe.Seen(window, time.Now().UTC(), current.Ingest.DedupeWindow) {
			continue
		}
		SendNonBlocking(ctx, out, window, logger)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("tcp stream scanner error", "err", err)
	}
}
