package lane

import "sync"

// Registry hands out one Scheduler per stream. Schedulers are created lazily
// on first use and removed when a stream ends, so lane state is isolated per
// stream and never shared across unrelated overlays.
type Registry struct {
	mu         sync.RWMutex
	config     Config
	schedulers map[string]*Scheduler // streamID -> scheduler
}

// NewRegistry creates a Registry that builds schedulers with the given config.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:     config,
		schedulers: make(map[string]*Scheduler),
	}
}

// ForStream returns the scheduler for streamID, creating it if needed.
func (r *Registry) ForStream(streamID string) *Scheduler {
	r.mu.RLock()
	s, ok := r.schedulers[streamID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedulers[streamID]; ok {
		return s
	}
	s = NewScheduler(r.config)
	r.schedulers[streamID] = s
	return s
}

// Remove drops the scheduler for a stream that has ended.
func (r *Registry) Remove(streamID string) {
	r.mu.Lock()
	delete(r.schedulers, streamID)
	r.mu.Unlock()
}

// Len returns the number of live schedulers, for metrics and tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.schedulers)
	r.mu.RUnlock()
	return n
}
