package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// Store persists health records, alerts and faults as an optional sink. The
// memory bank stays the source of truth for trend computations; storage
// failures never roll a cycle back.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveRecord(ctx context.Context, record model.HealthRecord) error
	SaveAlert(ctx context.Context, alert model.MaintenanceAlert) error
	SaveFault(ctx context.Context, fault model.Fault) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func rulSeconds(r model.RUL) any {
	if !r.Known {
		return nil
	}
	return r.Seconds
}
