// Escalation executors: turn a detected violation (too fast, too many, too loud, too repetitive) into a consequence.
package escalate

import (
	"context"
	"log/slog"

	"github.com/chatmod/chatmod/automod/event"
)

// Trigger names passed by the engine
const (
	TriggerChatDelay         = "chat-delay"
	TriggerCommandDelay      = "command-delay"
	TriggerChatLimit         = "chat-limit"
	TriggerCommandLimit      = "command-limit"
	TriggerCaps              = "caps"
	TriggerChatSimilarity    = "chat-similarity"
	TriggerCommandSimilarity = "command-similarity"
)

// Decides what happens when a gate detects a violation.
//
// A non-nil Abort cancels the message (or, for caps, is delivered as a warning after the pipeline). Returning nil lets the message through; the executor may still have messaged the sender or run commands. An error means the policy could not be applied (eg, a store failure), not that the message was rejected.
type Escalator interface {
	Execute(ctx context.Context, sender event.Sender, trigger, warning string, vars map[string]any) (*event.Abort, error)
}

// Cancels every violation, showing the warning to the sender.
type Cancel struct{}

func (Cancel) Execute(ctx context.Context, sender event.Sender, trigger, warning string, vars map[string]any) (*event.Abort, error) {
	escalationCount.WithLabelValues(trigger, "cancel").Inc()
	return event.Cancel(trigger, warning), nil
}

// Logs violations and lets every message through.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Execute(ctx context.Context, sender event.Sender, trigger, warning string, vars map[string]any) (*event.Abort, error) {
	escalationCount.WithLabelValues(trigger, "log").Inc()
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("violation", "sender", sender.Name(), "trigger", trigger, "warning", warning, "vars", vars)
	return nil, nil
}
