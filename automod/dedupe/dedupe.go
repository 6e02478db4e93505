// Process-wide buffer of recent chat lines, used to spot many senders repeating the same text ("parrot" swarms).
package dedupe

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatmod/chatmod/automod/helpers"
)

type Entry struct {
	SenderID uuid.UUID
	Text     string
	Time     time.Time
}

type Match struct {
	Entry      Entry
	Similarity float64
}

// Buffer is safe for concurrent use. Entries are kept in insertion order and dropped once older than the window passed to the most recent lookup, wherever they sit in the order.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewBuffer returns an empty buffer. If now is nil, time.Now is used.
func NewBuffer(now func() time.Time) *Buffer {
	if now == nil {
		now = time.Now
	}
	return &Buffer{now: now}
}

// Returns the first entry (insertion order) from a sender other than exclude whose similarity to text is at least threshold. Expired entries are purged first.
func (b *Buffer) FindSimilar(exclude uuid.UUID, text string, threshold float64, window time.Duration) (Match, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.findLocked(exclude, text, threshold, window)
}

// Claim does FindSimilar and, when nothing matched, records the text for sender. Both steps run under one lock, so of two near-identical lines arriving at once exactly one is recorded and the other is reported as a match.
func (b *Buffer) Claim(sender uuid.UUID, text string, threshold float64, window time.Duration) (Match, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.findLocked(sender, text, threshold, window); ok {
		return m, true
	}
	b.entries = append(b.entries, Entry{SenderID: sender, Text: text, Time: b.now()})
	return Match{}, false
}

func (b *Buffer) findLocked(exclude uuid.UUID, text string, threshold float64, window time.Duration) (Match, bool) {
	b.purgeLocked(b.now().Add(-window))
	for _, e := range b.entries {
		if e.SenderID == exclude {
			continue
		}
		sim := helpers.Similarity(e.Text, text)
		if sim >= threshold {
			return Match{Entry: e, Similarity: sim}, true
		}
	}
	return Match{}, false
}

// Entries are usually in time order, but not after the clock steps back (or a replay runs out of order), so every entry is checked.
func (b *Buffer) purgeLocked(cutoff time.Time) {
	keep := b.entries[:0]
	for _, e := range b.entries {
		if !e.Time.Before(cutoff) {
			keep = append(keep, e)
		}
	}
	clear(b.entries[len(keep):])
	b.entries = keep
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}
