// Package lane implements collision-aware lane scheduling for the danmaku
// overlay. Each stream owns a fixed set of horizontal lanes; a comment
// assigned to a lane occupies it for the comment's on-screen duration so
// that two comments never visually overlap in the same row.
package lane

import (
	"sync"
	"time"
)

const (
	// DefaultLaneCount is the number of overlay lanes per stream.
	DefaultLaneCount = 12

	// DefaultLaneHeight is the pixel height of one lane.
	DefaultLaneHeight = 30

	// DefaultTopPadding is the pixel offset of lane 0 from the top edge.
	DefaultTopPadding = 50

	// DefaultDuration is how long a comment stays on screen, and therefore
	// how long an assignment occupies its lane.
	DefaultDuration = 4000 * time.Millisecond
)

// Config holds the scheduler geometry and timing parameters.
type Config struct {
	LaneCount  int
	LaneHeight float64
	TopPadding float64
	Duration   time.Duration
}

// DefaultConfig returns the standard 12-lane overlay layout.
func DefaultConfig() Config {
	return Config{
		LaneCount:  DefaultLaneCount,
		LaneHeight: DefaultLaneHeight,
		TopPadding: DefaultTopPadding,
		Duration:   DefaultDuration,
	}
}

// Assignment is the result of placing a comment on the overlay.
type Assignment struct {
	Lane int
	Y    float64
}

// Scheduler allocates lanes for a single stream. All methods are safe for
// concurrent use; mutations are serialized by the scheduler's mutex so two
// comments racing onto the overlay cannot claim the same lane.
//
// Expiry is lazy: a lane is reclaimed the next time AssignLane or
// AvailableLanes observes its occupiedUntil in the past. There is no
// background sweep.
type Scheduler struct {
	mu            sync.Mutex
	config        Config
	occupiedUntil []time.Time // index = lane id
}

// NewScheduler creates a Scheduler with every lane free.
func NewScheduler(config Config) *Scheduler {
	if config.LaneCount <= 0 {
		config.LaneCount = DefaultLaneCount
	}
	if config.Duration <= 0 {
		config.Duration = DefaultDuration
	}
	return &Scheduler{
		config:        config,
		occupiedUntil: make([]time.Time, config.LaneCount),
	}
}

// AssignLane places a comment arriving at now. Lanes are scanned in order
// and the first free lane (occupiedUntil <= now) wins, which makes placement
// deterministic lowest-index-first rather than round-robin.
//
// When every lane is occupied the scheduler force-assigns the lane that
// frees soonest, overwriting its occupant. Under extreme load a comment may
// briefly overlap another; that is deliberate graceful degradation, not an
// error.
func (s *Scheduler) AssignLane(now time.Time) Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.occupiedUntil {
		if !s.occupiedUntil[i].After(now) {
			s.occupiedUntil[i] = now.Add(s.config.Duration)
			return s.assignment(i)
		}
	}

	// Saturated: reuse the lane with the smallest occupiedUntil,
	// ties resolved by lowest index.
	soonest := 0
	for i := 1; i < len(s.occupiedUntil); i++ {
		if s.occupiedUntil[i].Before(s.occupiedUntil[soonest]) {
			soonest = i
		}
	}
	s.occupiedUntil[soonest] = now.Add(s.config.Duration)
	return s.assignment(soonest)
}

// AvailableLanes returns the ids of lanes free at now, in ascending order.
func (s *Scheduler) AvailableLanes(now time.Time) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	free := make([]int, 0, len(s.occupiedUntil))
	for i := range s.occupiedUntil {
		if !s.occupiedUntil[i].After(now) {
			free = append(free, i)
		}
	}
	return free
}

// Reset frees every lane immediately.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.occupiedUntil {
		s.occupiedUntil[i] = time.Time{}
	}
}

// Duration returns the configured on-screen duration.
func (s *Scheduler) Duration() time.Duration {
	return s.config.Duration
}

func (s *Scheduler) assignment(lane int) Assignment {
	return Assignment{
		Lane: lane,
		Y:    s.config.TopPadding + float64(lane)*s.config.LaneHeight,
	}
}
