package logging

import (
	"sync"
	"time"
)

// LogEntry is one buffered record. Seq increases by one per entry for the
// life of the buffer, so readers can resume after the last entry they saw.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the newest entries in a fixed number of slots. The entry
// with sequence s lives in slot (s-1) % len(slots).
type RingBuffer struct {
	mu    sync.RWMutex
	slots []LogEntry
	last  uint64
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{slots: make([]LogEntry, size)}
}

// Write stores entry under the next sequence number and returns it with
// Seq set, evicting the oldest entry when full.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.last++
	entry.Seq = rb.last
	rb.slots[rb.slot(entry.Seq)] = entry
	return entry
}

// Since returns the retained entries with Seq greater than seq, oldest first.
func (rb *RingBuffer) Since(seq uint64) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	first := max(seq+1, rb.oldest())
	if first > rb.last {
		return nil
	}
	out := make([]LogEntry, 0, rb.last-first+1)
	for s := first; s <= rb.last; s++ {
		out = append(out, rb.slots[rb.slot(s)])
	}
	return out
}

// Last returns the sequence number of the newest entry, 0 when empty.
func (rb *RingBuffer) Last() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.last
}

// Len returns the number of retained entries.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.last == 0 {
		return 0
	}
	return int(rb.last - rb.oldest() + 1)
}

func (rb *RingBuffer) oldest() uint64 {
	size := uint64(len(rb.slots))
	if rb.last <= size {
		return 1
	}
	return rb.last - size + 1
}

func (rb *RingBuffer) slot(seq uint64) int {
	return int((seq - 1) % uint64(len(rb.slots)))
}
