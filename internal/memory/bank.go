package memory

import (
	"sync"

	"healthwatch/internal/model"
)

// Bank is the per-machine, append-only chronological store of health records.
// Each machine has its own lock so appends for unrelated machines never
// contend; append and read for the same machine serialize, so a reader never
// observes a partially written record.
type Bank struct {
	mu       sync.RWMutex
	machines map[string]*history
	capacity int
}

// history is a FIFO ring when capacity > 0, unbounded otherwise.
type history struct {
	mu      sync.Mutex
	records []model.HealthRecord
}

// NewBank creates an empty bank. capacity bounds records kept per machine;
// zero or negative means unbounded.
func NewBank(capacity int) *Bank {
	return &Bank{
		machines: make(map[string]*history),
		capacity: capacity,
	}
}

func (b *Bank) machine(id string) *history {
	b.mu.RLock()
	h, ok := b.machines[id]
	b.mu.RUnlock()
	if ok {
		return h
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok = b.machines[id]; ok {
		return h
	}
	h = &history{}
	b.machines[id] = h
	return h
}

// lookup never inserts, so queries for unknown machines cannot grow the map.
func (b *Bank) lookup(id string) *history {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.machines[id]
}

// Append adds a record to its machine's history, evicting the oldest record
// once a configured capacity is exceeded.
func (b *Bank) Append(record model.HealthRecord) {
	if record.MachineID == "" {
		return
	}
	h := b.machine(record.MachineID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if b.capacity > 0 && len(h.records) >= b.capacity {
		copy(h.records, h.records[1:])
		h.records[len(h.records)-1] = record
		return
	}
	h.records = append(h.records, record)
}

// Recent returns up to n most recent records in chronological order.
// n <= 0 returns the full history.
func (b *Bank) Recent(machineID string, n int) []model.HealthRecord {
	h := b.lookup(machineID)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := 0
	if n > 0 && len(h.records) > n {
		start = len(h.records) - n
	}
	out := make([]model.HealthRecord, len(h.records)-start)
	copy(out, h.records[start:])
	return out
}

// All returns the full chronological history for a machine.
func (b *Bank) All(machineID string) []model.HealthRecord {
	return b.Recent(machineID, 0)
}

// Latest returns the most recent record, if any.
func (b *Bank) Latest(machineID string) (model.HealthRecord, bool) {
	h := b.lookup(machineID)
	if h == nil {
		return model.HealthRecord{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return model.HealthRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// Machines lists every machine with at least one record.
func (b *Bank) Machines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.machines))
	for id, h := range b.machines {
		h.mu.Lock()
		n := len(h.records)
		h.mu.Unlock()
		if n > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Len reports the record count for one machine.
func (b *Bank) Len(machineID string) int {
	h := b.lookup(machineID)
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Clear drops all history for every machine.
func (b *Bank) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.machines = make(map[string]*history)
}
