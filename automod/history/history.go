// Per-sender ledger of recent chat messages and commands.
//
// A Window is owned by a sender session and is a passive record: appends never fail and queries never error. It is not safe for concurrent use; the engine processes one message per sender at a time.
package history

import (
	"time"

	"github.com/chatmod/chatmod/automod/event"
)

// Default number of records kept per kind.
const DefaultCapacity = 100

type Record struct {
	Text string
	Time time.Time
	// Name of the chat channel; empty for commands and the global channel
	Channel string
}

type Window struct {
	capacity int
	now      func() time.Time
	records  map[event.Kind][]Record
}

// Creates a window holding at most `capacity` records per kind. A nil clock means time.Now.
func NewWindow(capacity int, now func() time.Time) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Window{
		capacity: capacity,
		now:      now,
		records:  make(map[event.Kind][]Record),
	}
}

// Appends a record stamped with the current time.
//
// Timestamps never go backwards within a kind: if the clock reads earlier than the newest record, the newest record's time is reused.
func (w *Window) Record(kind event.Kind, text string, channel string) {
	ts := w.now()
	l := w.records[kind]
	if len(l) > 0 && ts.Before(l[len(l)-1].Time) {
		ts = l[len(l)-1].Time
	}
	l = append(l, Record{Text: text, Time: ts, Channel: channel})
	if len(l) > w.capacity {
		// copy so the backing array doesn't grow without bound
		l = append([]Record(nil), l[len(l)-w.capacity:]...)
	}
	w.records[kind] = l
}

// Returns the most recent `n` records in scope, oldest first.
//
// An empty channel selects records from all channels.
func (w *Window) LastN(kind event.Kind, n int, channel string) []Record {
	if n <= 0 {
		return []Record{}
	}
	out := []Record{}
	l := w.records[kind]
	for i := len(l) - 1; i >= 0 && len(out) < n; i-- {
		if inScope(l[i], channel) {
			out = append(out, l[i])
		}
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Returns all records in scope with a timestamp at or after `cutoff`, oldest first.
func (w *Window) Since(kind event.Kind, cutoff time.Time, channel string) []Record {
	out := []Record{}
	for _, r := range w.records[kind] {
		if !r.Time.Before(cutoff) && inScope(r, channel) {
			out = append(out, r)
		}
	}
	return out
}

// Returns the newest record in scope, if any.
func (w *Window) Last(kind event.Kind, channel string) (Record, bool) {
	l := w.LastN(kind, 1, channel)
	if len(l) == 0 {
		return Record{}, false
	}
	return l[0], true
}

// Number of records held for the kind, across all channels.
func (w *Window) Len(kind event.Kind) int {
	return len(w.records[kind])
}

func inScope(r Record, channel string) bool {
	return channel == "" || r.Channel == channel
}
