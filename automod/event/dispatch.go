package event

import "context"

// Runs commands on behalf of the engine: rule actions, join-flood responses, escalation thresholds.
//
// Implementations should not block for long; the engine calls Dispatch while holding the sender's processing slot.
type Dispatcher interface {
	// Runs line as the sender, or as the console when asConsole is set. The line has no leading '/'.
	Dispatch(ctx context.Context, sender Sender, line string, asConsole bool) error
}

// Dispatcher which drops every command.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(ctx context.Context, sender Sender, line string, asConsole bool) error {
	return nil
}
