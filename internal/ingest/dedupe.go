package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"healthwatch/internal/model"
)

// DedupeCache drops windows already seen within the configured ttl. Kafka
// redelivery and gateway retries would otherwise double-count a cycle.
type DedupeCache struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewDedupeCache() *DedupeCache {
	return &DedupeCache{items: make(map[string]time.Time)}
}

func (d *DedupeCache) Seen(window model.SensorWindow, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	key := hashWindow(window)
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts, ok := d.items[key]; ok {
		if now.Sub(ts) <= ttl {
			return true
		}
	}
	d.items[key] = now
	if len(d.items) > 10000 {
		d.compact(now, ttl)
	}
	return false
}

func (d *DedupeCache) compact(now time.Time, ttl time.Duration) {
	for k, ts := range d.items {
		if now.Sub(ts) > ttl {
			delete(d.items, k)
		}
	}
}

func hashWindow(window model.SensorWindow) string {
	h := sha256.New()
	h.Write([]byte(window.MachineID))
	h.Write([]byte("|"))
	h.Write([]byte(window.Timestamp.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}
