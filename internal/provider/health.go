// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package provider

import (
	"sync"
	"time"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// HealthMetrics is a point-in-time snapshot of upstream health, safe to
// serialize.
type HealthMetrics struct {
	SuccessCount  int64      `json:"success_count"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// HealthTracker records chat outcomes against an upstream provider.
// After a failure the provider reports unavailable until the cooldown
// elapses or a later call succeeds.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	successCount int64
	failureCount int64
	nowFunc      func() time.Time
}

// DefaultHealthCooldown is how long a failed provider reports unavailable.
const DefaultHealthCooldown = 30 * time.Second

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, lexiaerr.Errorf(lexiaerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// caller holds h.mu.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy reports whether the provider is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.successCount++
	h.mu.Unlock()
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// Record is RecordSuccess for a nil err and RecordFailure otherwise.
// Invalid requests and missing credentials say nothing about the upstream
// and are ignored.
func (h *HealthTracker) Record(err error) {
	switch {
	case err == nil:
		h.RecordSuccess()
	case lexiaerr.IsUpstreamFailure(err), lexiaerr.IsTimeout(err):
		h.RecordFailure()
	}
}

// SetNowFunc overrides the time source.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		SuccessCount: h.successCount,
		FailureCount: h.failureCount,
		Available:    h.isHealthyLocked(),
	}

	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}

	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
