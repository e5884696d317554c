package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"healthwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/healthwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS health_records (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			machine_id TEXT NOT NULL,
			health_index DOUBLE PRECISION NOT NULL,
			anomaly_score DOUBLE PRECISION NOT NULL,
			rul_seconds DOUBLE PRECISION,
			features_json JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_machine_ts ON health_records(machine_id, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			triggered_at TIMESTAMPTZ NOT NULL,
			machine_id TEXT NOT NULL,
			anomaly_score DOUBLE PRECISION NOT NULL,
			rul_seconds DOUBLE PRECISION,
			health_index DOUBLE PRECISION NOT NULL,
			reasons_json JSONB NOT NULL,
			correlation_key TEXT NOT NULL UNIQUE,
			ticket_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_machine ON alerts(machine_id)`,
		`CREATE TABLE IF NOT EXISTS faults (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
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

func (s *postgresStore) SaveRecord(ctx context.Context, record model.HealthRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO health_records (ts, machine_id, health_index, anomaly_score, rul_seconds, features_json)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.Timestamp.UTC(),
		record.MachineID,
		record.HealthIndex,
		record.AnomalyScore,
		rulSeconds(record.RULEstimate),
		encodeJSON(record.Features),
	)
	return err
}

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.MaintenanceAlert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (triggered_at, machine_id, anomaly_score, rul_seconds, health_index, reasons_json, correlation_key, ticket_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (correlation_key) DO NOTHING`,
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

func (s *postgresStore) SaveFault(ctx context.Context, fault model.Fault) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO faults (ts, machine_id, stage, trace_id, error)
		VALUES ($1, $2, $3, $4, $5)`,
		fault.Timestamp.UTC(),
		fault.MachineID,
		fault.Stage,
		fault.TraceID,
		fault.Err,
	)
	return err
}
