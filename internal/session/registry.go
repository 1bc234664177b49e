// Package session tracks viewer presence per stream: join/leave bookkeeping,
// live viewer counts, fixed-window rate limiting, and per-user comment
// cooldowns. State is held in memory, sharded per stream so rooms never
// contend with each other.
package session

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the number of comments allowed per window.
	DefaultRateLimit = 30

	// DefaultRateWindow is the fixed rate-limit window. The window resets
	// only by natural expiry, never by sliding.
	DefaultRateWindow = 60 * time.Second
)

// Config tunes the registry's flood protection.
type Config struct {
	RateLimit  int
	RateWindow time.Duration
}

// DefaultConfig returns the standard 30 comments / 60 seconds policy.
func DefaultConfig() Config {
	return Config{RateLimit: DefaultRateLimit, RateWindow: DefaultRateWindow}
}

// Record is one completed viewer session, appended to the stream's history
// on leave.
type Record struct {
	Viewer   string
	JoinedAt time.Time
	LeftAt   time.Time
	Duration time.Duration
}

// rateWindow is a fixed-window counter for one viewer.
type rateWindow struct {
	start time.Time
	count int
}

// streamState holds everything the registry knows about one stream. All
// fields are guarded by mu, so operations on one stream are serialized while
// different streams proceed fully in parallel.
type streamState struct {
	mu          sync.Mutex
	sessions    map[string]time.Time // viewer -> join time
	history     []Record
	windows     map[string]*rateWindow
	lastComment map[string]time.Time
}

// Registry tracks viewer sessions for every live stream.
type Registry struct {
	mu      sync.RWMutex
	config  Config
	streams map[string]*streamState
}

// NewRegistry creates an empty Registry.
func NewRegistry(config Config) *Registry {
	if config.RateLimit <= 0 {
		config.RateLimit = DefaultRateLimit
	}
	if config.RateWindow <= 0 {
		config.RateWindow = DefaultRateWindow
	}
	return &Registry{config: config, streams: make(map[string]*streamState)}
}

// Join records a viewer joining a stream at now. Joining twice without
// leaving keeps the original join time.
func (r *Registry) Join(streamID, viewer string, now time.Time) {
	st := r.state(streamID)
	st.mu.Lock()
	if _, ok := st.sessions[viewer]; !ok {
		st.sessions[viewer] = now
	}
	st.mu.Unlock()
}

// Leave removes the viewer's live session, appends a Record to the stream's
// history, and returns the session duration. ok is false when the viewer was
// not joined.
func (r *Registry) Leave(streamID, viewer string, now time.Time) (time.Duration, bool) {
	st := r.state(streamID)
	st.mu.Lock()
	defer st.mu.Unlock()

	joined, ok := st.sessions[viewer]
	if !ok {
		return 0, false
	}
	delete(st.sessions, viewer)

	duration := now.Sub(joined)
	st.history = append(st.history, Record{
		Viewer:   viewer,
		JoinedAt: joined,
		LeftAt:   now,
		Duration: duration,
	})
	return duration, true
}

// ViewerCount returns the live cardinality of joined sessions on a stream.
func (r *Registry) ViewerCount(streamID string) int {
	r.mu.RLock()
	st, ok := r.streams[streamID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	st.mu.Lock()
	n := len(st.sessions)
	st.mu.Unlock()
	return n
}

// CheckRateLimit counts one submission attempt against the viewer's fixed
// window on the stream. It returns whether the attempt is allowed and, when
// it is not, how long until the window expires (the retry-after hint).
func (r *Registry) CheckRateLimit(streamID, viewer string, now time.Time) (bool, time.Duration) {
	st := r.state(streamID)
	st.mu.Lock()
	defer st.mu.Unlock()

	w, ok := st.windows[viewer]
	if !ok || now.Sub(w.start) >= r.config.RateWindow {
		st.windows[viewer] = &rateWindow{start: now, count: 1}
		return true, 0
	}

	w.count++
	if w.count > r.config.RateLimit {
		return false, w.start.Add(r.config.RateWindow).Sub(now)
	}
	return true, 0
}

// CheckCooldown reports whether the viewer's per-stream comment cooldown has
// elapsed. A cooldown of zero always passes. MarkComment sets the reference
// point when a comment is accepted, so rejected attempts do not extend it.
func (r *Registry) CheckCooldown(streamID, viewer string, now time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}

	st := r.state(streamID)
	st.mu.Lock()
	defer st.mu.Unlock()

	last, ok := st.lastComment[viewer]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

// MarkComment records the time of the viewer's last accepted comment.
func (r *Registry) MarkComment(streamID, viewer string, now time.Time) {
	st := r.state(streamID)
	st.mu.Lock()
	st.lastComment[viewer] = now
	st.mu.Unlock()
}

// History returns a copy of the stream's completed-session records.
func (r *Registry) History(streamID string) []Record {
	r.mu.RLock()
	st, ok := r.streams[streamID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	out := make([]Record, len(st.history))
	copy(out, st.history)
	st.mu.Unlock()
	return out
}

// EndStream drops all state for a stream that has ended.
func (r *Registry) EndStream(streamID string) {
	r.mu.Lock()
	delete(r.streams, streamID)
	r.mu.Unlock()
}

// state returns the stream's shard, creating it lazily.
func (r *Registry) state(streamID string) *streamState {
	r.mu.RLock()
	st, ok := r.streams[streamID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.streams[streamID]; ok {
		return st
	}
	st = &streamState{
		sessions:    make(map[string]time.Time),
		windows:     make(map[string]*rateWindow),
		lastComment: make(map[string]time.Time),
	}
	r.streams[streamID] = st
	return st
}
