package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

func init() {
	Register("memory", memoryFactory{})
}

type memoryFactory struct{}

func (memoryFactory) Build(_ context.Context, limits Limits, _ json.RawMessage) (Limiter, error) {
	if err := limits.Valid(); err != nil {
		return nil, err
	}

	return NewMemory(limits), nil
}

func (memoryFactory) Valid(json.RawMessage) error { return nil }

type record struct {
	windowCount   int
	windowResetAt time.Time
	lastPostAt    time.Time
}

// Memory is an in-process Limiter. It does not share state between wall
// instances.
type Memory struct {
	limits  Limits
	lock    sync.Mutex
	records map[string]*record
}

func NewMemory(limits Limits) *Memory {
	return &Memory{
		limits:  limits,
		records: map[string]*record{},
	}
}

func (m *Memory) CheckAndConsume(ctx context.Context, clientKey string, now time.Time) (Decision, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rec, ok := m.records[clientKey]
	if !ok {
		m.records[clientKey] = &record{
			windowCount:   1,
			windowResetAt: now.Add(m.limits.Window),
			lastPostAt:    now,
		}
		return observe(Allow(m.limits.MaxPerHour - 1)), nil
	}

	if elapsed := now.Sub(rec.lastPostAt); elapsed < m.limits.Cooldown {
		return observe(Deny(ReasonCooldown, CooldownRetry(m.limits.Cooldown-elapsed), m.limits.MaxPerHour-rec.windowCount)), nil
	}

	if now.After(rec.windowResetAt) {
		rec.windowCount = 0
		rec.windowResetAt = now.Add(m.limits.Window)
	}

	if rec.windowCount >= m.limits.MaxPerHour {
		return observe(Deny(ReasonHourly, HourlyRetry(rec.windowResetAt.Sub(now)), 0)), nil
	}

	rec.windowCount++
	rec.lastPostAt = now

	return observe(Allow(m.limits.MaxPerHour - rec.windowCount)), nil
}

func (m *Memory) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	idleSince := now.Add(-m.limits.Window)

	var removed int
	for key, rec := range m.records {
		if rec.windowResetAt.Before(now) && rec.lastPostAt.Before(idleSince) {
			delete(m.records, key)
			removed++
		}
	}

	recordsSwept.Add(float64(removed))

	return removed, nil
}

// Len is the number of tracked client keys.
func (m *Memory) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.records)
}
