// Rule files: regex-matched rules with guard conditions and actions, applied to chat messages and commands.
package rules

import (
	"fmt"
	"regexp"
)

// Guards of a rule are checked in the order these are declared.
type GuardKind int

const (
	GuardRequirePermission GuardKind = iota
	GuardRequireScript
	GuardRequireServer
	GuardIgnorePermission
	GuardIgnoreScript
	GuardIgnoreServer
)

func (k GuardKind) String() string {
	switch k {
	case GuardRequirePermission:
		return "require-permission"
	case GuardRequireScript:
		return "require-script"
	case GuardRequireServer:
		return "require-server"
	case GuardIgnorePermission:
		return "ignore-permission"
	case GuardIgnoreScript:
		return "ignore-script"
	case GuardIgnoreServer:
		return "ignore-server"
	default:
		return fmt.Sprintf("guard(%d)", int(k))
	}
}

// A condition on the sender which must hold for a matched rule's actions to run. Which fields are meaningful depends on Kind.
type Guard struct {
	Kind       GuardKind
	Permission string
	// Only for GuardRequirePermission. If set, a missing permission cancels the whole message with this text instead of skipping the rule.
	DenyMessage string
	Script      string
	Servers     []string
}

type ActionKind int

const (
	ActionRewrite ActionKind = iota
	ActionReplace
	ActionWarn
	ActionNotify
	ActionCommand
	ActionConsole
	ActionLog
	ActionDeny
	ActionDenySilently
)

func (k ActionKind) String() string {
	switch k {
	case ActionRewrite:
		return "rewrite"
	case ActionReplace:
		return "replace"
	case ActionWarn:
		return "warn"
	case ActionNotify:
		return "notify"
	case ActionCommand:
		return "command"
	case ActionConsole:
		return "console"
	case ActionLog:
		return "log"
	case ActionDeny:
		return "deny"
	case ActionDenySilently:
		return "deny-silently"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

type Action struct {
	Kind ActionKind
	// Text with {placeholders} and $N group references. Empty is allowed for ActionDeny.
	Template string
}

type Rule struct {
	// Match is the pattern as written; Pattern is its case-insensitive compiled form
	Match   string
	Pattern *regexp.Regexp
	Name    string
	Guards  []Guard
	Actions []Action

	StripColors  bool
	StripAccents bool
	// Stop evaluating later rules once this one has applied
	Abort       bool
	DontLog     bool
	DontSpy     bool
	DontVerbose bool
	Disabled    bool

	// where the rule was defined, for error messages
	File string
	Line int
}

// Name if set, otherwise the pattern source.
func (r *Rule) ID() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Match
}

func (r *Rule) String() string {
	return fmt.Sprintf("rule %q (%s:%d)", r.ID(), r.File, r.Line)
}

// A problem with rule source or with a rule's scripts. Always fatal: the rule set is rejected rather than partially applied.
type ConfigError struct {
	File string
	Line int
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.File == "" && e.Line == 0 {
		return "rules: " + e.Msg
	}
	return fmt.Sprintf("rules: %s:%d: %s", e.File, e.Line, e.Msg)
}
