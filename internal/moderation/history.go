package moderation

import (
	"sync"
	"time"
)

const (
	// MaxHistoryMessages is the number of recent messages retained per
	// (user, stream) pair for duplicate detection.
	MaxHistoryMessages = 10

	// HistoryWindow bounds how long a retained message stays comparable.
	// Older entries are pruned lazily on the next read or write.
	HistoryWindow = 5 * time.Minute
)

// historyEntry is one retained message.
type historyEntry struct {
	text string
	at   time.Time
}

// History stores each user's recent messages per stream in a bounded ring
// buffer. Access is serialized per key by the registry mutex; the buffers
// themselves are only touched under that lock.
type History struct {
	mu      sync.Mutex
	buffers map[string]*historyRing // "<userID>\n<streamID>" -> ring
}

// historyRing is a fixed-size circular buffer of historyEntry.
type historyRing struct {
	items []historyEntry
	pos   int
	count int
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{buffers: make(map[string]*historyRing)}
}

// Add records a message for duplicate comparison. The oldest entry is
// overwritten once the ring is full.
func (h *History) Add(userID, streamID, text string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := historyKey(userID, streamID)
	rb, ok := h.buffers[key]
	if !ok {
		rb = &historyRing{items: make([]historyEntry, MaxHistoryMessages)}
		h.buffers[key] = rb
	}

	rb.items[rb.pos] = historyEntry{text: text, at: now}
	rb.pos = (rb.pos + 1) % MaxHistoryMessages
	if rb.count < MaxHistoryMessages {
		rb.count++
	}
}

// Recent returns the user's retained messages on the stream, oldest first,
// excluding entries older than HistoryWindow.
func (h *History) Recent(userID, streamID string, now time.Time) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rb, ok := h.buffers[historyKey(userID, streamID)]
	if !ok {
		return nil
	}

	out := make([]string, 0, rb.count)
	start := (rb.pos - rb.count + MaxHistoryMessages) % MaxHistoryMessages
	for i := 0; i < rb.count; i++ {
		e := rb.items[(start+i)%MaxHistoryMessages]
		if now.Sub(e.at) > HistoryWindow {
			continue
		}
		out = append(out, e.text)
	}
	return out
}

// DropStream removes every buffer belonging to a stream, called when the
// stream ends.
func (h *History) DropStream(streamID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	suffix := "\n" + streamID
	for key := range h.buffers {
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			delete(h.buffers, key)
		}
	}
}

func historyKey(userID, streamID string) string {
	return userID + "\n" + streamID
}
