package monitor

import (
	"sync"
	"time"
)

// Cooldown rate-limits alerts per machine so a degrading machine does not
// open a ticket on every cycle.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{last: make(map[string]time.Time)}
}

func (c *Cooldown) Allow(machineID string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.last[machineID]; ok {
		if now.Sub(ts) < cooldown {
			return false
		}
	}
	c.last[machineID] = now
	return true
}

func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = make(map[string]time.Time)
}
