package alerts

import (
	"sync"
	"time"

	"healthwatch/internal/model"
)

// Store keeps a bounded ring of the most recent maintenance alerts.
type Store struct {
	mu    sync.RWMutex
	buf   []model.MaintenanceAlert
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(alert model.MaintenanceAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, alert)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = alert
}

func (s *Store) List(limit int) []model.MaintenanceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.MaintenanceAlert, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.MaintenanceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MaintenanceAlert, 0)
	for _, a := range s.buf {
		if !a.TriggeredAt.Before(ts) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}

// FaultStore keeps a bounded ring of per-machine cycle faults.
type FaultStore struct {
	mu    sync.RWMutex
	buf   []model.Fault
	limit int
}

func NewFaultStore(limit int) *FaultStore {
	if limit <= 0 {
		limit = 1000
	}
	return &FaultStore{limit: limit}
}

func (s *FaultStore) Add(fault model.Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, fault)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = fault
}

func (s *FaultStore) List(limit int) []model.Fault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Fault, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

// ByMachine returns recorded faults for one machine, oldest first.
func (s *FaultStore) ByMachine(machineID string) []model.Fault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Fault, 0)
	for _, f := range s.buf {
		if f.MachineID == machineID {
			out = append(out, f)
		}
	}
	return out
}

func (s *FaultStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
