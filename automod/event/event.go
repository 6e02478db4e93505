package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Which stream a message arrived on. History, rules, and most thresholds are kept separately per kind.
type Kind int

const (
	KindChat Kind = iota
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindCommand:
		return "command"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Returned when a message kind has no history or rule storage.
var ErrUnsupportedKind = errors.New("unsupported message kind")

// Checks that the kind is one the engine knows how to record.
func (k Kind) Validate() error {
	if k != KindChat && k != KindCommand {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, k)
	}
	return nil
}

// A chat channel the message was written into. Nil means the global/default channel.
type Channel struct {
	Name string
	// Overrides the configured chat delay for this channel, when non-zero
	MessageDelay time.Duration
}

// Returns the channel name, or empty string for the nil channel.
func (c *Channel) Key() string {
	if c == nil {
		return ""
	}
	return c.Name
}

// Block position of a player in a world.
type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

// The originator of a chat message or command, as seen by the moderation engine.
//
// Implementations are provided by the host (game server, proxy, test harness) and passed in by reference on every call. Methods must be safe to call from the goroutine processing the message.
type Sender interface {
	ID() uuid.UUID
	Name() string
	// Nickname or display name, if different from Name. May be empty.
	Nick() string
	HasPermission(perm string) bool
	IsConsole() bool
	IsPlayer() bool
	// Name of the server (backend) the sender is connected to. Empty if unknown.
	ServerName() string
	// Current position. Second return value is false for senders without a position (console, proxy players).
	Location() (Location, bool)
	// Delivers a message to this sender only.
	SendMessage(msg string)
}

// Pipeline cancellation. This is a policy outcome, not an error.
type Abort struct {
	// User-facing message. For silent aborts this may be empty.
	Reason string
	// If true, the sender sees their own message as if it had been delivered, and nobody else sees anything.
	Silent bool
	// Short machine name of whatever cancelled the message (gate or rule), for logs and metrics
	Source string
}

func Cancel(source, reason string) *Abort {
	return &Abort{Source: source, Reason: reason}
}

func CancelSilently(source string) *Abort {
	return &Abort{Source: source, Silent: true}
}

func (a *Abort) String() string {
	if a.Silent {
		return fmt.Sprintf("silent abort (%s)", a.Source)
	}
	return fmt.Sprintf("abort (%s): %s", a.Source, a.Reason)
}

// Outcome of a single admission check. Created per call and never shared.
type CheckResult struct {
	// The message to deliver, possibly rewritten by caps, rules, or grammar fixes
	FinalText string
	// True if FinalText differs from the text that was submitted
	TextWasRewritten bool
	// True if the message must not propagate. See CancelledSilently and Reason.
	Cancelled bool
	// When cancelled, the host should echo FinalText to the sender only
	CancelledSilently bool
	// When cancelled loudly, shown to the sender
	Reason string
	// Which gate or rule cancelled the message
	CancelledBy string
	// Host should not log this message
	LoggingSuppressed bool
	// Host should not forward this message to spies
	SpyingSuppressed bool
}

// Marks the result as cancelled by the given abort.
func (r *CheckResult) ApplyAbort(a *Abort) {
	r.Cancelled = true
	r.CancelledBy = a.Source
	if a.Silent {
		r.CancelledSilently = true
		return
	}
	r.Reason = a.Reason
}
