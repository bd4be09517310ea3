package spotlight

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry holds running rotators per channel (thread-safe).
type Registry struct {
	mu       sync.RWMutex
	rotators map[string]*Rotator
}

// NewRegistry creates an empty rotator registry.
func NewRegistry() *Registry {
	return &Registry{rotators: make(map[string]*Rotator)}
}

// Start starts a rotator for the channel if none is running. Returns false
// when the channel already rotates.
func (reg *Registry) Start(channel, category string, source CouponSource, hub HubBroadcaster, interval time.Duration, logger *zap.Logger) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rotators[channel] != nil {
		return false
	}
	rotator := NewRotator(channel, category, source, hub, interval, logger)
	reg.rotators[channel] = rotator
	rotator.Start()
	return true
}

// Stop stops the channel's rotator and removes it. Returns false when no
// rotator was running.
func (reg *Registry) Stop(channel string) bool {
	reg.mu.Lock()
	rotator := reg.rotators[channel]
	delete(reg.rotators, channel)
	reg.mu.Unlock()
	if rotator == nil {
		return false
	}
	rotator.Stop()
	return true
}

// Reload signals the channel's rotator to reload its coupon list. Returns
// false when no rotator was running.
func (reg *Registry) Reload(channel string) bool {
	reg.mu.RLock()
	rotator := reg.rotators[channel]
	reg.mu.RUnlock()
	if rotator == nil {
		return false
	}
	rotator.Reload()
	return true
}

// ReloadAll signals every running rotator to reload (e.g. after a coupon
// was created).
func (reg *Registry) ReloadAll() {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, rotator := range reg.rotators {
		rotator.Reload()
	}
}

// Channels returns the currently rotating channel names.
func (reg *Registry) Channels() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.rotators))
	for ch := range reg.rotators {
		out = append(out, ch)
	}
	return out
}
