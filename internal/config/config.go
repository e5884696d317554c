package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"healthwatch/internal/model"
)

type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	Machines []string      `json:"machines" yaml:"machines"`
	Acquire  AcquireConfig `json:"acquire" yaml:"acquire"`
	Ingest   IngestConfig  `json:"ingest" yaml:"ingest"`
	Signal   SignalConfig  `json:"signal" yaml:"signal"`
	Health   HealthConfig  `json:"health" yaml:"health"`
	Anomaly  AnomalyConfig `json:"anomaly" yaml:"anomaly"`
	RUL      RULConfig     `json:"rul" yaml:"rul"`
	Monitor  MonitorConfig `json:"monitor" yaml:"monitor"`
	Memory   MemoryConfig  `json:"memory" yaml:"memory"`
	Ticket   TicketConfig  `json:"ticket" yaml:"ticket"`
	API      APIConfig     `json:"api" yaml:"api"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Alerts   AlertsConfig  `json:"alerts" yaml:"alerts"`
}

type AcquireConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	SampleRate float64       `json:"sample_rate" yaml:"sample_rate"`
	WindowSize int           `json:"window_size" yaml:"window_size"`
	Interval   time.Duration `json:"interval" yaml:"interval"`
	Seed       int64         `json:"seed" yaml:"seed"`
	Degrading  []string      `json:"degrading" yaml:"degrading"`
}

type IngestConfig struct {
	ChannelBuffer    int             `json:"channel_buffer" yaml:"channel_buffer"`
	DefaultMachineID string          `json:"default_machine_id" yaml:"default_machine_id"`
	MaxClockSkew     time.Duration   `json:"max_clock_skew" yaml:"max_clock_skew"`
	MaxFutureSkew    time.Duration   `json:"max_future_skew" yaml:"max_future_skew"`
	DedupeWindow     time.Duration   `json:"dedupe_window" yaml:"dedupe_window"`
	REST             RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream        TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	Kafka            KafkaConfig     `json:"kafka" yaml:"kafka"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type SignalConfig struct {
	BandpassLow  float64      `json:"bandpass_low" yaml:"bandpass_low"`
	BandpassHigh float64      `json:"bandpass_high" yaml:"bandpass_high"`
	FilterOrder  int          `json:"filter_order" yaml:"filter_order"`
	Bands        []model.Band `json:"bands" yaml:"bands"`
}

type HealthConfig struct {
	Weights        WeightsConfig `json:"weights" yaml:"weights"`
	RMSNorm        float64       `json:"rms_norm" yaml:"rms_norm"`
	KurtosisNorm   float64       `json:"kurtosis_norm" yaml:"kurtosis_norm"`
	EnvelopeNorm   float64       `json:"envelope_norm" yaml:"envelope_norm"`
	TempSlopeNorm  float64       `json:"temp_slope_norm" yaml:"temp_slope_norm"`
	HighBandCutoff float64       `json:"high_band_cutoff" yaml:"high_band_cutoff"`
}

type WeightsConfig struct {
	RMS       float64 `json:"rms" yaml:"rms"`
	Kurtosis  float64 `json:"kurtosis" yaml:"kurtosis"`
	BandRatio float64 `json:"band_ratio" yaml:"band_ratio"`
	Envelope  float64 `json:"envelope" yaml:"envelope"`
	TempSlope float64 `json:"temp_slope" yaml:"temp_slope"`
}

type AnomalyConfig struct {
	WindowLength int     `json:"window_length" yaml:"window_length"`
	ZThreshold   float64 `json:"z_threshold" yaml:"z_threshold"`
	// MinStd floors the baseline deviation so a near-constant baseline does
	// not turn ordinary jitter into a huge z-score.
	MinStd float64 `json:"min_std" yaml:"min_std"`
}

type RULConfig struct {
	TrendWindow      int           `json:"trend_window" yaml:"trend_window"`
	FailureThreshold float64       `json:"failure_threshold" yaml:"failure_threshold"`
	MinHorizon       time.Duration `json:"min_horizon" yaml:"min_horizon"`
}

type MonitorConfig struct {
	Workers         int           `json:"workers" yaml:"workers"`
	CycleTimeout    time.Duration `json:"cycle_timeout" yaml:"cycle_timeout"`
	AlertCooldown   time.Duration `json:"alert_cooldown" yaml:"alert_cooldown"`
	MaintenanceHold []string      `json:"maintenance_hold" yaml:"maintenance_hold"`
}

type MemoryConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

type TicketConfig struct {
	ServerLabel string        `json:"server_label" yaml:"server_label"`
	Tool        string        `json:"tool" yaml:"tool"`
	Endpoint    string        `json:"endpoint" yaml:"endpoint"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
	FaultLimit int `json:"fault_limit" yaml:"fault_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Machines: []string{"EQP-001", "EQP-002", "EQP-003"},
		Acquire: AcquireConfig{
			Enabled:    true,
			SampleRate: 2000,
			WindowSize: 512,
			Interval:   100 * time.Millisecond,
			Seed:       42,
			Degrading:  []string{"EQP-002"},
		},
		Ingest: IngestConfig{
			ChannelBuffer:    1024,
			DefaultMachineID: "unknown",
			MaxClockSkew:     2 * time.Second,
			MaxFutureSkew:    2 * time.Second,
			DedupeWindow:     time.Second,
			REST:             RESTConfig{Enabled: false, Addr: ":8080"},
			TCPStream:        TCPStreamConfig{Enabled: false, Addr: ":9000"},
			Kafka:            KafkaConfig{Enabled: false},
		},
		Signal: SignalConfig{
			BandpassLow:  10,
			BandpassHigh: 800,
			FilterOrder:  4,
			Bands: []model.Band{
				{Low: 0, High: 100},
				{Low: 100, High: 300},
				{Low: 300, High: 600},
				{Low: 600, High: 1000},
			},
		},
		Health: HealthConfig{
			Weights:        WeightsConfig{RMS: 1.0, Kurtosis: 0.5, BandRatio: 1.0, Envelope: 0.5, TempSlope: 0.5},
			RMSNorm:        1.0,
			KurtosisNorm:   3.0,
			EnvelopeNorm:   2.0,
			TempSlopeNorm:  0.05,
			HighBandCutoff: 300,
		},
		Anomaly: AnomalyConfig{
			WindowLength: 50,
			ZThreshold:   3.0,
			MinStd:       0.01,
		},
		RUL: RULConfig{
			TrendWindow:      10,
			FailureThreshold: 0.2,
			MinHorizon:       time.Hour,
		},
		Monitor: MonitorConfig{
			Workers:       4,
			CycleTimeout:  5 * time.Second,
			AlertCooldown: 30 * time.Second,
		},
		Memory: MemoryConfig{Capacity: 500},
		Ticket: TicketConfig{
			ServerLabel: "maintenance_cmms",
			Tool:        "create_maintenance_ticket",
			Timeout:     5 * time.Second,
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:healthwatch.db?_pragma=busy_timeout(5000)"},
		Alerts:  AlertsConfig{StoreLimit: 1000, FaultLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1024
	}
	if cfg.Ingest.DefaultMachineID == "" {
		cfg.Ingest.DefaultMachineID = "unknown"
	}
	if cfg.Acquire.SampleRate <= 0 {
		cfg.Acquire.SampleRate = 2000
	}
	if cfg.Acquire.WindowSize <= 0 {
		cfg.Acquire.WindowSize = 512
	}
	if cfg.Acquire.Interval <= 0 {
		cfg.Acquire.Interval = 100 * time.Millisecond
	}
	if cfg.Signal.FilterOrder <= 0 {
		cfg.Signal.FilterOrder = 4
	}
	if len(cfg.Signal.Bands) == 0 {
		cfg.Signal.Bands = DefaultConfig().Signal.Bands
	}
	if cfg.Anomaly.WindowLength <= 0 {
		cfg.Anomaly.WindowLength = 50
	}
	if cfg.Anomaly.MinStd <= 0 {
		cfg.Anomaly.MinStd = 0.01
	}
	if cfg.RUL.TrendWindow <= 0 {
		cfg.RUL.TrendWindow = 10
	}
	if cfg.Monitor.Workers <= 0 {
		cfg.Monitor.Workers = 4
	}
	if cfg.Ticket.ServerLabel == "" {
		cfg.Ticket.ServerLabel = "maintenance_cmms"
	}
	if cfg.Ticket.Tool == "" {
		cfg.Ticket.Tool = "create_maintenance_ticket"
	}
	if cfg.Ticket.Timeout <= 0 {
		cfg.Ticket.Timeout = 5 * time.Second
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if cfg.Alerts.FaultLimit <= 0 {
		cfg.Alerts.FaultLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.Signal.BandpassLow <= 0 || cfg.Signal.BandpassHigh <= cfg.Signal.BandpassLow {
		return errors.New("signal.bandpass_high must be greater than signal.bandpass_low, both positive")
	}
	if cfg.Acquire.Enabled && cfg.Signal.BandpassHigh >= cfg.Acquire.SampleRate/2 {
		return fmt.Errorf("signal.bandpass_high %.1f must be below the Nyquist frequency %.1f", cfg.Signal.BandpassHigh, cfg.Acquire.SampleRate/2)
	}
	for _, b := range cfg.Signal.Bands {
		if b.High <= b.Low || b.Low < 0 {
			return fmt.Errorf("signal.bands contains invalid band [%.1f, %.1f)", b.Low, b.High)
		}
	}
	if cfg.Anomaly.ZThreshold <= 0 {
		return errors.New("anomaly.z_threshold must be > 0")
	}
	if cfg.RUL.FailureThreshold <= 0 || cfg.RUL.FailureThreshold >= 1 {
		return errors.New("rul.failure_threshold must be in (0, 1)")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if !cfg.Acquire.Enabled && !cfg.Ingest.REST.Enabled && !cfg.Ingest.TCPStream.Enabled && !cfg.Ingest.Kafka.Enabled {
		return errors.New("no window source enabled: enable acquire or one of the ingest adapters")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file.
// Reload and Watch are no-ops; Update only swaps the snapshot.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyDefaults(cfg)
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	m.cfg.Store(cfg)
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
