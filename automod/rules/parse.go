package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chatmod/chatmod/automod/helpers"
)

// Reads rules from a file. The file name is used in error messages.
func ParseFile(path string) ([]*Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rules file: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

func ParseString(src, file string) ([]*Rule, error) {
	return Parse(strings.NewReader(src), file)
}

// Parses rule source: one directive per line, '#' comments, blank lines ignored. Each "match" line starts a new rule. Disabled rules are dropped from the result.
//
// Any malformed line fails the whole parse with a *ConfigError.
func Parse(r io.Reader, file string) ([]*Rule, error) {
	p := parser{file: file}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := p.directive(line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	p.flush()
	return p.rules, nil
}

type parser struct {
	file  string
	line  int
	cur   *Rule
	seen  map[string]bool
	rules []*Rule
}

func (p *parser) errorf(format string, args ...any) error {
	return &ConfigError{File: p.file, Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) flush() {
	if p.cur != nil && !p.cur.Disabled {
		// guards are checked in a fixed order (the GuardKind order), whatever order the file lists them in, so a permission deny message always wins
		sort.SliceStable(p.cur.Guards, func(i, j int) bool {
			return p.cur.Guards[i].Kind < p.cur.Guards[j].Kind
		})
		p.rules = append(p.rules, p.cur)
	}
	p.cur = nil
}

// marks a single-valued directive as set, failing on the second use within a rule
func (p *parser) once(key string) error {
	if p.seen[key] {
		return p.errorf("%q is already set for this rule", key)
	}
	p.seen[key] = true
	return nil
}

func (p *parser) directive(line string) error {
	args := strings.Fields(line)

	if args[0] == "match" {
		p.flush()
		src := restAfter(line, 1)
		if src == "" {
			return p.errorf("match needs a pattern")
		}
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return p.errorf("invalid pattern %q: %v", src, err)
		}
		p.cur = &Rule{Match: src, Pattern: re, File: p.file, Line: p.line}
		p.seen = make(map[string]bool)
		return nil
	}

	if p.cur == nil {
		return p.errorf("%q before the first match", args[0])
	}
	r := p.cur

	switch {
	case args[0] == "name":
		if err := p.once("name"); err != nil {
			return err
		}
		r.Name = restAfter(line, 1)
		if r.Name == "" {
			return p.errorf("name needs a value")
		}
		return nil

	case args[0] == "disabled" && len(args) == 1:
		r.Disabled = true
		return nil

	case args[0] == "require" || args[0] == "ignore":
		return p.guard(line, args)

	case args[0] == "strip" && len(args) >= 2 && (args[1] == "colors" || args[1] == "accents"):
		if err := p.once("strip " + args[1]); err != nil {
			return err
		}
		val, err := strconv.ParseBool(restAfter(line, 2))
		if err != nil {
			return p.errorf("strip %s needs true or false", args[1])
		}
		if args[1] == "colors" {
			r.StripColors = val
		} else {
			r.StripAccents = val
		}
		return nil

	case args[0] == "dont" && len(args) == 2:
		switch args[1] {
		case "log":
			r.DontLog = true
		case "spy":
			r.DontSpy = true
		case "verbose":
			r.DontVerbose = true
		default:
			return p.errorf("unknown directive %q", line)
		}
		return nil

	case args[0] == "then" && len(args) >= 2:
		return p.action(line, args)
	}

	return p.errorf("unknown directive %q", line)
}

func (p *parser) guard(line string, args []string) error {
	r := p.cur
	require := args[0] == "require"

	// "require sender perm X" and the shorthand "require perm X"
	offset := 1
	if len(args) > 1 && args[1] == "sender" {
		offset = 2
	}
	if len(args) <= offset {
		return p.errorf("unknown directive %q", line)
	}
	what := args[offset]
	rest := restAfter(line, offset+1)

	switch what {
	case "perm", "permission":
		if err := p.once(args[0] + " perm"); err != nil {
			return err
		}
		perm, msg, _ := strings.Cut(rest, " ")
		if perm == "" {
			return p.errorf("%s needs a permission", line)
		}
		g := Guard{Kind: GuardIgnorePermission, Permission: perm}
		if require {
			g.Kind = GuardRequirePermission
			g.DenyMessage = strings.TrimSpace(msg)
		}
		r.Guards = append(r.Guards, g)
		return nil

	case "script":
		if offset != 2 {
			return p.errorf("unknown directive %q", line)
		}
		if err := p.once(args[0] + " script"); err != nil {
			return err
		}
		if rest == "" {
			return p.errorf("%s needs an expression", line)
		}
		g := Guard{Kind: GuardIgnoreScript, Script: rest}
		if require {
			g.Kind = GuardRequireScript
		}
		r.Guards = append(r.Guards, g)
		return nil

	case "server":
		if offset != 2 {
			return p.errorf("unknown directive %q", line)
		}
		if rest == "" {
			return p.errorf("%s needs a server name", line)
		}
		kind := GuardIgnoreServer
		if require {
			kind = GuardRequireServer
		}
		// repeated server lines accumulate in one guard
		for i := range r.Guards {
			if r.Guards[i].Kind == kind {
				r.Guards[i].Servers = helpers.DedupeStrings(append(r.Guards[i].Servers, rest))
				return nil
			}
		}
		r.Guards = append(r.Guards, Guard{Kind: kind, Servers: []string{rest}})
		return nil
	}

	return p.errorf("unknown directive %q", line)
}

var templateActions = map[string]ActionKind{
	"rewrite": ActionRewrite,
	"replace": ActionReplace,
	"warn":    ActionWarn,
	"notify":  ActionNotify,
	"command": ActionCommand,
	"console": ActionConsole,
	"log":     ActionLog,
}

func (p *parser) action(line string, args []string) error {
	r := p.cur
	rest := restAfter(line, 2)

	switch args[1] {
	case "abort":
		r.Abort = true
		return nil
	case "deny":
		if rest == "silently" {
			r.Actions = append(r.Actions, Action{Kind: ActionDenySilently})
		} else {
			r.Actions = append(r.Actions, Action{Kind: ActionDeny, Template: rest})
		}
		return nil
	}

	kind, ok := templateActions[args[1]]
	if !ok {
		return p.errorf("unknown directive %q", line)
	}
	if rest == "" && kind != ActionReplace {
		return p.errorf("then %s needs a value", args[1])
	}
	r.Actions = append(r.Actions, Action{Kind: kind, Template: rest})
	return nil
}

// returns the line with the first n whitespace-separated words removed, keeping the spacing of the remainder
func restAfter(line string, n int) string {
	s := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(s, isSpace)
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeftFunc(s[idx:], isSpace)
	}
	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
