// Package execution serializes opportunity execution, assembles flash-financed
// transactions, and drives them through simulate, submit, confirm.
package execution

import (
	"sync"
	"time"

	"github.com/voznyak/flarex/internal/domain"
	"github.com/voznyak/flarex/internal/telemetry"
)

// TryMutex admits at most one execution at a time and enforces a cooldown
// after each completion. Acquisition never blocks: a rejected caller gets a
// skip reason and moves on, because waiting on a stale opportunity is worse
// than dropping it.
type TryMutex struct {
	cooldown time.Duration
	metrics  *telemetry.Metrics

	mu          sync.Mutex
	held        bool
	lastRelease time.Time
}

// NewTryMutex creates a TryMutex with the given post-completion cooldown.
func NewTryMutex(cooldown time.Duration, metrics *telemetry.Metrics) *TryMutex {
	return &TryMutex{cooldown: cooldown, metrics: metrics}
}

// TryAcquire attempts to take the slot. On success it returns a release
// function and SkipNone; otherwise release is nil and the reason says whether
// the slot was held or cooling down. The release function is idempotent and
// stamps the completion time that starts the cooldown window.
func (m *TryMutex) TryAcquire() (release func(), reason domain.SkipReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held {
		m.metrics.SkipsBusy.Add(1)
		return nil, domain.SkipBusy
	}
	if !m.lastRelease.IsZero() && time.Since(m.lastRelease) < m.cooldown {
		m.metrics.SkipsCooldown.Add(1)
		return nil, domain.SkipCooldown
	}

	m.held = true
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.held = false
			m.lastRelease = time.Now()
			m.mu.Unlock()
		})
	}, domain.SkipNone
}
