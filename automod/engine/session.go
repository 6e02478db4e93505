package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatmod/chatmod/automod/cachestore"
	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/history"
)

// flag set on a sender once join flood commands have run for them
const FlagJoinFlood = "join-flood"

const (
	implicitSessionLimit = 1024
	implicitSessionTTL   = time.Hour
)

// Per-sender state, from join until quit.
//
// The mutex is held for the whole of each admission check, so a sender's messages are processed one at a time. Sender, LastLogin and JoinLocation are fixed at join and may be read without it.
type Session struct {
	mu sync.Mutex

	Sender    event.Sender
	History   *history.Window
	LastLogin time.Time
	// nil if the sender had no position when joining
	JoinLocation *event.Location
	// set once the sender is seen away from JoinLocation; never cleared
	MovedFromJoin bool
}

func (e *Engine) newSession(sender event.Sender) *Session {
	return &Session{
		Sender:  sender,
		History: history.NewWindow(e.currentConfig().HistoryCapacity, e.now),
	}
}

// Opens a fresh session for a sender which just connected, replacing any previous one. Join location and login time are taken now.
func (e *Engine) Join(sender event.Sender) *Session {
	s := e.newSession(sender)
	s.LastLogin = e.now()
	if loc, ok := sender.Location(); ok {
		s.JoinLocation = &loc
	}
	e.sessions.Store(sender.ID(), s)
	e.implicit.Remove(sender.ID())
	sessionsOnline.Set(float64(e.sessions.Size()))
	e.logger().Debug("session opened", "sender", sender.Name(), "uuid", sender.ID())
	return s
}

// Closes a sender's session and clears their shared state (join flood flag, cached last line).
func (e *Engine) Quit(ctx context.Context, id uuid.UUID) error {
	e.sessions.Delete(id)
	e.implicit.Remove(id)
	sessionsOnline.Set(float64(e.sessions.Size()))
	if err := e.Flags.Remove(ctx, id.String(), []string{FlagJoinFlood}); err != nil {
		return err
	}
	return e.Cache.Purge(ctx, cachestore.NameLastChat, id.String())
}

// Returns the open session for a sender id, if any.
func (e *Engine) Session(id uuid.UUID) (*Session, bool) {
	return e.sessions.Load(id)
}

// All open sessions, in no particular order.
func (e *Engine) Online() []*Session {
	out := make([]*Session, 0, e.sessions.Size())
	e.sessions.Range(func(_ uuid.UUID, s *Session) bool {
		out = append(out, s)
		return true
	})
	return out
}

// session for the sender. Senders which never joined (eg, the console, or a message racing a quit) get a short-lived session outside the online registry; it has no login time or join location, so the join gates never apply to it.
func (e *Engine) sessionFor(sender event.Sender) *Session {
	if s, ok := e.sessions.Load(sender.ID()); ok {
		return s
	}
	e.implicitMu.Lock()
	defer e.implicitMu.Unlock()
	if s, ok := e.implicit.Get(sender.ID()); ok {
		return s
	}
	s := e.newSession(sender)
	e.implicit.Add(sender.ID(), s)
	return s
}
