package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"healthwatch/internal/alerts"
	"healthwatch/internal/config"
	"healthwatch/internal/memory"
	"healthwatch/internal/model"
)

// MonitorControl is the slice of the orchestrator the API needs.
type MonitorControl interface {
	Reset()
	UpdateConfig(cfg *config.Config)
}

type Server struct {
	cfg     *config.Manager
	bank    *memory.Bank
	alerts  *alerts.Store
	faults  *alerts.FaultStore
	monitor MonitorControl
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status     string       `json:"status"`
	Time       string       `json:"time"`
	Version    string       `json:"version"`
	ConfigPath string       `json:"config_path"`
	Machines   []string     `json:"machines"`
	Ingest     ingestStatus `json:"ingest"`
	Monitor    monitorInfo  `json:"monitor"`
}

type ingestStatus struct {
	Simulator bool `json:"simulator"`
	REST      bool `json:"rest"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
}

type monitorInfo struct {
	Workers          int      `json:"workers"`
	AnomalyThreshold float64  `json:"anomaly_threshold"`
	FailureThreshold float64  `json:"failure_threshold"`
	MinHorizon       string   `json:"min_rul_horizon"`
	MaintenanceHold  []string `json:"maintenance_hold,omitempty"`
}

func Start(ctx context.Context, cfg *config.Manager, bank *memory.Bank, alertStore *alerts.Store, faultStore *alerts.FaultStore, monitor MonitorControl, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		bank:    bank,
		alerts:  alertStore,
		faults:  faultStore,
		monitor: monitor,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/machines", server.handleMachines)
	mux.HandleFunc("/machines/", server.handleMachine)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/faults", server.handleFaults)
	mux.HandleFunc("/config/monitor", server.handleMonitorConfig)
	mux.HandleFunc("/admin/clear", server.handleClear)

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
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Machines:   cfg.Machines,
		Ingest: ingestStatus{
			Simulator: cfg.Acquire.Enabled,
			REST:      cfg.Ingest.REST.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
		},
		Monitor: monitorInfo{
			Workers:          cfg.Monitor.Workers,
			AnomalyThreshold: cfg.Anomaly.ZThreshold,
			FailureThreshold: cfg.RUL.FailureThreshold,
			MinHorizon:       cfg.RUL.MinHorizon.String(),
			MaintenanceHold:  cfg.Monitor.MaintenanceHold,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMachines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	machines := s.bank.Machines()
	summaries := make([]map[string]any, 0, len(machines))
	for _, id := range machines {
		latest, ok := s.bank.Latest(id)
		if !ok {
			continue
		}
		summaries = append(summaries, map[string]any{
			"machine_id":    id,
			"records":       s.bank.Len(id),
			"health_index":  latest.HealthIndex,
			"anomaly_score": latest.AnomalyScore,
			"rul_estimate":  latest.RULEstimate,
			"updated_at":    latest.Timestamp.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"machines": summaries,
		"count":    len(summaries),
	})
}

func (s *Server) handleMachine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	machineID := strings.TrimPrefix(r.URL.Path, "/machines/")
	if machineID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	records := s.bank.Recent(machineID, limit)
	if len(records) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"machine_id": machineID,
		"records":    records,
		"count":      len(records),
		"faults":     s.faults.ByMachine(machineID),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var list []model.MaintenanceAlert
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	list := s.faults.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"faults": list,
		"count":  len(list),
	})
}

// handleMonitorConfig exposes the alerting thresholds for live tuning.
func (s *Server) handleMonitorConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.cfg.Get()
		writeJSON(w, http.StatusOK, map[string]any{
			"anomaly": cfg.Anomaly,
			"rul":     cfg.RUL,
			"monitor": cfg.Monitor,
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var update struct {
			Anomaly *config.AnomalyConfig `json:"anomaly"`
			RUL     *config.RULConfig     `json:"rul"`
			Monitor *config.MonitorConfig `json:"monitor"`
		}
		if err := json.Unmarshal(body, &update); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current := s.cfg.Get()
		next := *current
		if update.Anomaly != nil {
			next.Anomaly = *update.Anomaly
		}
		if update.RUL != nil {
			next.RUL = *update.RUL
		}
		if update.Monitor != nil {
			next.Monitor = *update.Monitor
		}
		if err := config.Validate(&next); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if err := s.cfg.Update(&next); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if s.monitor != nil {
			s.monitor.UpdateConfig(&next)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.monitor != nil {
		s.monitor.Reset()
	}
	if s.logger != nil {
		s.logger.Info("in-memory state cleared via api")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
