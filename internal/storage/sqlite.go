package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"healthwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:healthwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			machine_id TEXT NOT NULL,
			health_index REAL NOT NULL,
			anomaly_score REAL NOT NULL,
			rul_seconds REAL,
			features_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_machine_ts ON health_records(machine_id, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			triggered_at TEXT NOT NULL,
			machine_id TEXT NOT NULL,
			anomaly_score REAL NOT NULL,
			rul_seconds REAL,
			health_index REAL NOT NULL,
			reasons_json TEXT NOT NULL,
			correlation_key TEXT NOT NULL,
			ticket_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_machine ON alerts(machine_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_correlation ON alerts(correlation_key)`,
		`CREATE TABLE IF NOT EXISTS faults (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			machine_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			error TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_faults_machine ON faults(machine_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveRecord(ctx context.Context, record model.HealthRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_records (ts, machine_id, health_index, anomaly_score, rul_seconds, features_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC(),
		record.MachineID,
		record.HealthIndex,
		record.AnomalyScore,
		rulSeconds(record.RULEstimate),
		encodeJSON(record.Features),
	)
	return err
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.MaintenanceAlert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts (triggered_at, machine_id, anomaly_score, rul_seconds, health_index, reasons_json, correlation_key, ticket_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.TriggeredAt.UTC(),
		alert.MachineID,
		alert.AnomalyScore,
		rulSeconds(alert.RULEstimate),
		alert.HealthIndex,
		encodeJSON(alert.Reasons),
		alert.CorrelationKey,
		alert.TicketID,
	)
	return err
}

func (s *sqliteStore) SaveFault(ctx context.Context, fault model.Fault) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO faults (ts, machine_id, stage, trace_id, error)
		VALUES (?, ?, ?, ?, ?)`,
		fault.Timestamp.UTC(),
		fault.MachineID,
		fault.Stage,
		fault.TraceID,
		fault.Err,
	)
	return err
}
