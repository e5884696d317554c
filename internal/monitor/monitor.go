package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"healthwatch/internal/alerts"
	"healthwatch/internal/config"
	"healthwatch/internal/health"
	"healthwatch/internal/logging"
	"healthwatch/internal/memory"
	"healthwatch/internal/model"
	"healthwatch/internal/signal"
	"healthwatch/internal/storage"
	"healthwatch/internal/ticket"
)

// Orchestrator drives the per-machine monitoring cycle
// Extract -> Score -> Predict -> Decide and fans cycles out across machines
// on a bounded worker pool. It is the sole owner of the memory bank: scorer
// and estimator read history, only the orchestrator appends.
type Orchestrator struct {
	logger   *slog.Logger
	bank     *memory.Bank
	alerts   *alerts.Store
	faults   *alerts.FaultStore
	store    storage.Store
	sink     ticket.Sink
	cfg      atomic.Value
	extract  atomic.Value
	hold     atomic.Value
	cooldown *Cooldown
	sem      chan struct{}
	wg       sync.WaitGroup
}

func NewOrchestrator(cfg *config.Config, logger *slog.Logger, bank *memory.Bank, alertStore *alerts.Store, faultStore *alerts.FaultStore, store storage.Store, sink ticket.Sink) *Orchestrator {
	o := &Orchestrator{
		logger:   logger,
		bank:     bank,
		alerts:   alertStore,
		faults:   faultStore,
		store:    store,
		sink:     sink,
		cooldown: NewCooldown(),
		sem:      make(chan struct{}, cfg.Monitor.Workers),
	}
	o.cfg.Store(cfg)
	o.extract.Store(signal.NewExtractor(cfg.Signal))
	o.hold.Store(holdSet(cfg.Monitor.MaintenanceHold))
	return o
}

// UpdateConfig swaps thresholds, weights and filter settings for future
// cycles. The worker pool size is fixed at construction.
func (o *Orchestrator) UpdateConfig(cfg *config.Config) {
	o.cfg.Store(cfg)
	o.extract.Store(signal.NewExtractor(cfg.Signal))
	o.hold.Store(holdSet(cfg.Monitor.MaintenanceHold))
}

func (o *Orchestrator) config() *config.Config {
	if v := o.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (o *Orchestrator) extractor() *signal.Extractor {
	return o.extract.Load().(*signal.Extractor)
}

func (o *Orchestrator) onHold(machineID string) bool {
	if v := o.hold.Load(); v != nil {
		return v.(map[string]bool)[machineID]
	}
	return false
}

func holdSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// Reset drops all in-memory state: history, alerts, faults, cooldowns.
func (o *Orchestrator) Reset() {
	o.bank.Clear()
	o.alerts.Clear()
	o.faults.Clear()
	o.cooldown.Reset()
}

// Start consumes sensor windows and runs one cycle per window, at most
// Monitor.Workers cycles in flight. It returns when ctx is done and the
// input channel drains; Wait blocks until in-flight cycles finish.
func (o *Orchestrator) Start(ctx context.Context, in <-chan model.SensorWindow) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case window, ok := <-in:
				if !ok {
					return
				}
				o.dispatch(ctx, window)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (o *Orchestrator) dispatch(ctx context.Context, window model.SensorWindow) {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() { <-o.sem }()
		o.RunCycle(ctx, window)
	}()
}

func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// RunCycle executes one full monitoring cycle for one machine. Failures are
// captured as per-machine faults and never propagate to the caller, so a bad
// window cannot disturb sibling machines.
func (o *Orchestrator) RunCycle(ctx context.Context, window model.SensorWindow) (*model.MaintenanceAlert, bool) {
	cfg := o.config()
	traceID := uuid.NewString()
	if cfg.Monitor.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Monitor.CycleTimeout)
		defer cancel()
	}

	logger := logging.ForMachine(o.logger, window.MachineID)
	alert, err := o.cycle(ctx, cfg, window, traceID, logger)
	if err != nil {
		o.recordFault(ctx, window.MachineID, traceID, err, logger)
		return nil, false
	}
	return alert, true
}

// cycleError tags a failure with the stage it happened in.
type cycleError struct {
	stage string
	err   error
}

func (e *cycleError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *cycleError) Unwrap() error { return e.err }

func (o *Orchestrator) cycle(ctx context.Context, cfg *config.Config, window model.SensorWindow, traceID string, logger *slog.Logger) (*model.MaintenanceAlert, error) {
	// Extract
	features, err := o.extractor().Extract(window)
	if err != nil {
		return nil, &cycleError{stage: "extract", err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &cycleError{stage: "extract", err: err}
	}

	// Score against history read before this cycle's append, so the new
	// record is never part of its own baseline.
	depth := cfg.Anomaly.WindowLength
	if cfg.RUL.TrendWindow > depth {
		depth = cfg.RUL.TrendWindow
	}
	history := o.bank.Recent(window.MachineID, depth)
	healthIndex, anomalyScore := health.Score(features, history, *cfg)

	// Predict over the trend including this cycle's index.
	record := model.HealthRecord{
		MachineID:    window.MachineID,
		Timestamp:    window.Timestamp,
		HealthIndex:  healthIndex,
		AnomalyScore: anomalyScore,
		Features:     features,
	}
	trend := make([]model.HealthRecord, 0, len(history)+1)
	trend = append(trend, history...)
	trend = append(trend, record)
	record.RULEstimate = health.EstimateRUL(trend, cfg.RUL)

	if err := ctx.Err(); err != nil {
		// Timed-out cycles append nothing.
		return nil, &cycleError{stage: "predict", err: err}
	}

	o.bank.Append(record)
	if o.store != nil {
		if err := o.store.SaveRecord(context.WithoutCancel(ctx), record); err != nil && logger != nil {
			logger.Warn("save health record failed", "err", err)
		}
	}
	if logger != nil {
		logger.Debug("cycle scored",
			"health_index", record.HealthIndex,
			"anomaly_score", record.AnomalyScore,
			"rul_known", record.RULEstimate.Known,
			"rul_seconds", record.RULEstimate.Seconds,
		)
	}

	// Decide. The record above stands regardless of what happens here.
	alert := o.decide(cfg, record, logger)
	if alert == nil {
		return nil, nil
	}
	o.deliver(ctx, cfg, alert, traceID, logger)
	return alert, nil
}

func (o *Orchestrator) decide(cfg *config.Config, record model.HealthRecord, logger *slog.Logger) *model.MaintenanceAlert {
	var reasons []string
	if record.AnomalyScore > cfg.Anomaly.ZThreshold {
		reasons = append(reasons, "anomaly_threshold")
	}
	if record.RULEstimate.Known && record.RULEstimate.Seconds < cfg.RUL.MinHorizon.Seconds() {
		reasons = append(reasons, "rul_horizon")
	}
	if len(reasons) == 0 {
		return nil
	}
	if o.onHold(record.MachineID) {
		if logger != nil {
			logger.Info("alert suppressed, machine on maintenance hold", "reasons", reasons)
		}
		return nil
	}
	if !o.cooldown.Allow(record.MachineID, cfg.Monitor.AlertCooldown) {
		return nil
	}
	return &model.MaintenanceAlert{
		MachineID:      record.MachineID,
		TriggeredAt:    record.Timestamp,
		AnomalyScore:   record.AnomalyScore,
		RULEstimate:    record.RULEstimate,
		HealthIndex:    record.HealthIndex,
		Reasons:        reasons,
		CorrelationKey: ticket.CorrelationKey(record.MachineID, record.Timestamp),
	}
}

func (o *Orchestrator) deliver(ctx context.Context, cfg *config.Config, alert *model.MaintenanceAlert, traceID string, logger *slog.Logger) {
	if o.sink != nil {
		req := ticket.NewRequest(cfg.Ticket.ServerLabel, cfg.Ticket.Tool, *alert, traceID)
		ticketID, err := o.sink.Submit(ctx, req)
		if err != nil {
			// Delivery failure is reported, never rolled back.
			if logger != nil {
				logger.Error("ticket delivery failed",
					"correlation_key", alert.CorrelationKey,
					"err", err,
				)
			}
		} else {
			alert.TicketID = ticketID
		}
	}
	o.alerts.Add(*alert)
	if logger != nil {
		logger.Warn("maintenance alert",
			"anomaly_score", alert.AnomalyScore,
			"rul_known", alert.RULEstimate.Known,
			"rul_seconds", alert.RULEstimate.Seconds,
			"reasons", alert.Reasons,
			"ticket_id", alert.TicketID,
		)
	}
	if o.store != nil {
		if err := o.store.SaveAlert(context.WithoutCancel(ctx), *alert); err != nil && logger != nil {
			logger.Warn("save alert failed", "err", err)
		}
	}
}

func (o *Orchestrator) recordFault(ctx context.Context, machineID, traceID string, err error, logger *slog.Logger) {
	stage := "cycle"
	var ce *cycleError
	if errors.As(err, &ce) {
		stage = ce.stage
	}
	if errors.Is(err, context.DeadlineExceeded) {
		stage = "timeout"
	}
	fault := model.Fault{
		MachineID: machineID,
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		TraceID:   traceID,
		Err:       err.Error(),
	}
	o.faults.Add(fault)
	if logger != nil {
		logger.Error("cycle fault",
			"stage", stage,
			"trace_id", traceID,
			"err", err,
		)
	}
	if o.store != nil {
		if serr := o.store.SaveFault(context.WithoutCancel(ctx), fault); serr != nil && logger != nil {
			logger.Warn("save fault failed", "err", serr)
		}
	}
}
