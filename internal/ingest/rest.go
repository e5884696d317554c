package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

type RESTServer struct {
	cfg    *config.Manager
	out    chan<- model.SensorWindow
	dedupe *DedupeCache
	logger *slog.Logger
}

// StartREST accepts windows as JSON objects or arrays on POST /windows.
func StartREST(ctx context.Context, cfg *config.Manager, dedupe *DedupeCache, out chan<- model.SensorWindow, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	server := &RESTServer{cfg: cfg, out: out, dedupe: dedupe, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/windows", server.handleWindows)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *RESTServer) handleWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
	if err != nil || len(body) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var raws []json.RawMessage
	trimmed := trimSpaceBytes(body)
	if len(trimmed) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	} else {
		raws = []json.RawMessage{trimmed}
	}

	cfg := s.cfg.Get()
	accepted, failed := 0, 0
	for _, raw := range raws {
		if err := s.process(raw, cfg); err != nil {
			failed++
			continue
		}
		accepted++
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accepted": accepted,
		"failed":   failed,
	})
}

func (s *RESTServer) process(raw []byte, cfg *config.Config) error {
	window, err := ParseWindow(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("rest parse error", "err", err)
		}
		return err
	}
	window, err = Normalize(window, cfg)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("rest normalize error", "err", err)
		}
		return err
	}
	window.Source = "rest"
	if s.dedupe != nil && s.dedupe.Seen(window, time.Now().UTC(), cfg.Ingest.DedupeWindow) {
		return nil
	}
	SendNonBlocking(context.Background(), s.out, window, s.logger)
	return nil
}

func trimSpaceBytes(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\n' || b[start] == '\r' || b[start] == '\t') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\n' || b[end-1] == '\r' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
