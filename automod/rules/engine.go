package rules

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/helpers"
	"github.com/chatmod/chatmod/automod/keyword"
)

// Forwards "then notify" messages to staff watching chat (spies).
type Notifier interface {
	Notify(ctx context.Context, sender event.Sender, rule *Rule, message string) error
}

// Holds the loaded rule lists (one per message kind) and applies them to messages.
//
// Lists are replaced wholesale by Load; an evaluation in progress keeps using the list it started with.
type Engine struct {
	Logger     *slog.Logger
	Dispatcher event.Dispatcher
	Notifier   Notifier
	Predicate  Predicate
	// log every matching rule at info level, except rules marked "dont verbose"
	Verbose bool

	chat    atomic.Pointer[[]*Rule]
	command atomic.Pointer[[]*Rule]
}

// What a rule pass did to one message.
type Result struct {
	Text      string
	Rewritten bool
	// Set when a rule cancelled the whole message ("then deny", or a permission guard with a deny message)
	Abort             *event.Abort
	CancelledSilently bool
	LoggingSuppressed bool
	SpyingSuppressed  bool
	// IDs of the rules whose actions ran, in order
	Applied []string
}

func (e *Engine) list(kind event.Kind) (*atomic.Pointer[[]*Rule], error) {
	switch kind {
	case event.KindChat:
		return &e.chat, nil
	case event.KindCommand:
		return &e.command, nil
	}
	return nil, kind.Validate()
}

// Replaces the rule list for a kind. Script guards are validated first when the predicate supports it; on error the previous list stays in place.
func (e *Engine) Load(kind event.Kind, rules []*Rule) error {
	ptr, err := e.list(kind)
	if err != nil {
		return err
	}
	if v, ok := e.predicate().(Validator); ok {
		for _, r := range rules {
			for _, g := range r.Guards {
				if g.Kind != GuardRequireScript && g.Kind != GuardIgnoreScript {
					continue
				}
				if err := v.Validate(g.Script); err != nil {
					return locate(err, r)
				}
			}
		}
	}
	list := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Disabled {
			list = append(list, r)
		}
	}
	ptr.Store(&list)
	rulesLoaded.WithLabelValues(kind.String()).Set(float64(len(list)))
	return nil
}

// Currently loaded rules for a kind. The slice must not be modified.
func (e *Engine) Rules(kind event.Kind) []*Rule {
	ptr, err := e.list(kind)
	if err != nil {
		return nil
	}
	if l := ptr.Load(); l != nil {
		return *l
	}
	return nil
}

func (e *Engine) predicate() Predicate {
	if e.Predicate == nil {
		return NoScripts{}
	}
	return e.Predicate
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Runs every rule of the given kind over the text, in order.
//
// Rewrites are cumulative: each rule matches against the text as left by the rules before it. The pass stops early at a rule flagged "then abort", or at a cancellation, which is returned in Result.Abort. A returned error means the rule set itself is broken (eg, a script which does not return a boolean).
func (e *Engine) Evaluate(ctx context.Context, sender event.Sender, kind event.Kind, text string, channel *event.Channel) (*Result, error) {
	rules := e.Rules(kind)
	res := &Result{Text: text}
	logger := e.logger().With("sender", sender.Name(), "kind", kind.String())

	for _, rule := range rules {
		matchText := res.Text
		if rule.StripColors {
			matchText = helpers.StripColors(matchText)
		}
		if rule.StripAccents {
			matchText = keyword.StripAccents(matchText)
		}
		groups := matchGroups(rule.Pattern, matchText)
		if groups == nil {
			continue
		}

		if e.Verbose && !rule.DontVerbose {
			logger.Info("possibly filtered message", "rule", rule.ID(), "text", text)
		} else {
			logger.Debug("rule pattern matched", "rule", rule.ID())
		}

		vars := ruleVars(sender, kind, rule, text, res.Text, channel, groups)
		pass, abort, err := e.checkGuards(ctx, sender, rule, vars)
		if err != nil {
			return nil, err
		}
		if abort != nil {
			res.Abort = abort
			break
		}
		if !pass {
			continue
		}

		rulesMatched.WithLabelValues(kind.String(), ruleLabel(rule)).Inc()
		res.Applied = append(res.Applied, rule.ID())
		if rule.DontLog {
			res.LoggingSuppressed = true
		}
		if rule.DontSpy {
			res.SpyingSuppressed = true
		}

		abort = e.applyActions(ctx, logger, sender, rule, vars, matchText, res)
		if abort != nil {
			res.Abort = abort
			break
		}
		if rule.Abort {
			logger.Debug("rule stopped evaluation", "rule", rule.ID())
			break
		}
	}

	res.Rewritten = res.Text != text
	return res, nil
}

// Returns whether the rule's actions should run. A non-nil Abort means a permission guard with a deny message failed and the message is cancelled.
func (e *Engine) checkGuards(ctx context.Context, sender event.Sender, rule *Rule, vars map[string]any) (bool, *event.Abort, error) {
	server := ""
	if sender.IsPlayer() {
		server = sender.ServerName()
	}

	for _, g := range rule.Guards {
		switch g.Kind {
		case GuardRequirePermission:
			if sender.HasPermission(g.Permission) {
				continue
			}
			if g.DenyMessage != "" {
				return false, event.Cancel("rules", Replace(g.DenyMessage, vars)), nil
			}
			return false, nil, nil
		case GuardIgnorePermission:
			if sender.HasPermission(g.Permission) {
				return false, nil, nil
			}
		case GuardRequireScript, GuardIgnoreScript:
			ok, err := e.predicate().Eval(ctx, g.Script, vars)
			if err != nil {
				return false, nil, locate(err, rule)
			}
			if ok != (g.Kind == GuardRequireScript) {
				return false, nil, nil
			}
		case GuardRequireServer:
			if !serverIn(server, g.Servers) {
				return false, nil, nil
			}
		case GuardIgnoreServer:
			if serverIn(server, g.Servers) {
				return false, nil, nil
			}
		}
	}
	return true, nil, nil
}

func serverIn(server string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(server, s) {
			return true
		}
	}
	return false
}

func (e *Engine) applyActions(ctx context.Context, logger *slog.Logger, sender event.Sender, rule *Rule, vars map[string]any, matchText string, res *Result) *event.Abort {
	for _, a := range rule.Actions {
		out := Replace(a.Template, vars)
		ruleActions.WithLabelValues(a.Kind.String()).Inc()

		switch a.Kind {
		case ActionRewrite:
			res.Text = out
			vars["message"] = out
		case ActionReplace:
			res.Text = rule.Pattern.ReplaceAllLiteralString(matchText, out)
			vars["message"] = res.Text
		case ActionWarn:
			sender.SendMessage(out)
		case ActionNotify:
			if e.Notifier == nil {
				continue
			}
			if err := e.Notifier.Notify(ctx, sender, rule, out); err != nil {
				logger.Error("failed to notify spies", "rule", rule.ID(), "err", err)
			}
		case ActionCommand, ActionConsole:
			if e.Dispatcher == nil {
				logger.Warn("no dispatcher configured, dropping rule command", "rule", rule.ID(), "command", out)
				continue
			}
			line := strings.TrimPrefix(out, "/")
			if err := e.Dispatcher.Dispatch(ctx, sender, line, a.Kind == ActionConsole); err != nil {
				logger.Error("rule command failed", "rule", rule.ID(), "command", line, "err", err)
			}
		case ActionLog:
			logger.Info("rule log", "rule", rule.ID(), "message", out)
		case ActionDeny:
			return event.Cancel("rules", out)
		case ActionDenySilently:
			res.CancelledSilently = true
		}
	}
	return nil
}

// attaches the rule's location to a ConfigError raised without one
func locate(err error, rule *Rule) error {
	var ce *ConfigError
	if errors.As(err, &ce) && ce.File == "" && ce.Line == 0 {
		return &ConfigError{File: rule.File, Line: rule.Line, Msg: ce.Msg}
	}
	return err
}

func ruleLabel(r *Rule) string {
	if r.Name == "" {
		return "unnamed"
	}
	if slug := keyword.Slugify(r.Name); slug != "" {
		return slug
	}
	return "unnamed"
}
