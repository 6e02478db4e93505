package event

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// In-memory Sender, for tests and for replaying recorded traffic.
type MockSender struct {
	UUID        uuid.UUID
	Username    string
	Nickname    string
	Console     bool
	Server      string
	Permissions map[string]bool
	// nil means the sender has no position
	Position *Location

	mu       sync.Mutex
	received []string
}

var _ Sender = (*MockSender)(nil)

// Creates a player sender with a fresh id and no permissions.
func NewMockSender(name string) *MockSender {
	return &MockSender{
		UUID:        uuid.New(),
		Username:    name,
		Server:      "lobby",
		Permissions: make(map[string]bool),
	}
}

// Creates the console sender, which has every permission.
func NewMockConsole() *MockSender {
	return &MockSender{
		UUID:     uuid.Nil,
		Username: "CONSOLE",
		Console:  true,
	}
}

func (s *MockSender) ID() uuid.UUID { return s.UUID }
func (s *MockSender) Name() string  { return s.Username }
func (s *MockSender) Nick() string  { return s.Nickname }

func (s *MockSender) HasPermission(perm string) bool {
	if s.Console {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Permissions[perm]
}

func (s *MockSender) Grant(perm string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Permissions == nil {
		s.Permissions = make(map[string]bool)
	}
	s.Permissions[perm] = true
}

func (s *MockSender) IsConsole() bool    { return s.Console }
func (s *MockSender) IsPlayer() bool     { return !s.Console }
func (s *MockSender) ServerName() string { return s.Server }

func (s *MockSender) Location() (Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Position == nil {
		return Location{}, false
	}
	return *s.Position, true
}

func (s *MockSender) MoveTo(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Position = &loc
}

func (s *MockSender) SendMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
}

// Messages delivered to this sender so far.
func (s *MockSender) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// Records dispatched commands instead of running them.
type MockDispatcher struct {
	mu       sync.Mutex
	Commands []DispatchedCommand
}

type DispatchedCommand struct {
	Sender    string
	Line      string
	AsConsole bool
}

func (d *MockDispatcher) Dispatch(_ context.Context, sender Sender, line string, asConsole bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Commands = append(d.Commands, DispatchedCommand{Sender: sender.Name(), Line: line, AsConsole: asConsole})
	return nil
}

func (d *MockDispatcher) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.Commands {
		out = append(out, c.Line)
	}
	return out
}
