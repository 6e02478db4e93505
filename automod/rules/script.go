package rules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flosch/pongo2/v6"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Evaluates "require sender script" / "ignore sender script" expressions.
//
// The script is passed as written in the rule file. {key} placeholders and $N group references in it name entries of vars, and must be resolved as references rather than pasted in as text, since the values come from the message. A result which is not a boolean must be reported as an error (*ConfigError), never treated as false.
type Predicate interface {
	Eval(ctx context.Context, script string, vars map[string]any) (bool, error)
}

// Optionally implemented by a Predicate to reject malformed scripts when rules are loaded.
type Validator interface {
	Validate(script string) error
}

// Predicate which never runs anything. Any rule with a script guard fails to load.
type NoScripts struct{}

func (NoScripts) Eval(ctx context.Context, script string, vars map[string]any) (bool, error) {
	return false, &ConfigError{Msg: "script guards are not enabled"}
}

func (NoScripts) Validate(script string) error {
	return &ConfigError{Msg: "script guards are not enabled"}
}

// Evaluates scripts as pongo2 (Django template) expressions, eg `player_server == "lobby" and not ("admin" in message)`.
//
// Rule variables are available by name (keys which are not identifiers are skipped), and capture groups as the list `groups`. A placeholder, bare or as a whole quoted string ("{1}", '$1', {message}), becomes a reference to the variable (`groups.1`, `message`); a placeholder inside a longer string literal is rejected. Compiled expressions are cached per script.
type TemplatePredicate struct {
	cache *lru.Cache[string, *pongo2.Template]
}

var _ Predicate = (*TemplatePredicate)(nil)
var _ Validator = (*TemplatePredicate)(nil)

func NewTemplatePredicate(cacheSize int) (*TemplatePredicate, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, *pongo2.Template](cacheSize)
	if err != nil {
		return nil, err
	}
	return &TemplatePredicate{cache: cache}, nil
}

func (tp *TemplatePredicate) compile(script string) (*pongo2.Template, error) {
	if tpl, ok := tp.cache.Get(script); ok {
		return tpl, nil
	}
	expr, err := scriptExpr(script)
	if err != nil {
		return nil, err
	}
	tpl, err := pongo2.FromString("{{ " + expr + " }}")
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid script %q: %v", script, err)}
	}
	tp.cache.Add(script, tpl)
	return tpl, nil
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (tp *TemplatePredicate) Eval(ctx context.Context, script string, vars map[string]any) (bool, error) {
	tpl, err := tp.compile(script)
	if err != nil {
		return false, err
	}

	pctx := pongo2.Context{}
	var groups []string
	for i := 0; ; i++ {
		v, ok := vars[fmt.Sprint(i)]
		if !ok {
			break
		}
		groups = append(groups, fmt.Sprint(v))
	}
	pctx["groups"] = groups
	for k, v := range vars {
		if identRegex.MatchString(k) {
			pctx[k] = v
		}
	}

	out, err := tpl.Execute(pctx)
	if err != nil {
		return false, &ConfigError{Msg: fmt.Sprintf("script %q failed: %v", script, err)}
	}
	switch strings.TrimSpace(out) {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	return false, &ConfigError{Msg: fmt.Sprintf("script %q must return a boolean, got %q", script, out)}
}

// Checks that the script compiles.
func (tp *TemplatePredicate) Validate(script string) error {
	_, err := tp.compile(script)
	return err
}

// Rewrites placeholders in a script into variable references. Quoted strings are copied through unless they consist of exactly one placeholder.
func scriptExpr(script string) (string, error) {
	var out strings.Builder
	rest := script
	for rest != "" {
		q := strings.IndexAny(rest, `"'`)
		if q < 0 {
			ref, err := scriptRefs(rest)
			if err != nil {
				return "", err
			}
			out.WriteString(ref)
			break
		}
		ref, err := scriptRefs(rest[:q])
		if err != nil {
			return "", err
		}
		out.WriteString(ref)

		end := closingQuote(rest, q)
		if end < 0 {
			// unterminated; left for the template parser to report
			out.WriteString(rest[q:])
			break
		}
		body := rest[q+1 : end]
		if loc := templateTokenRegex.FindStringIndex(body); loc != nil && loc[0] == 0 && loc[1] == len(body) {
			ref, err := scriptRef(body)
			if err != nil {
				return "", err
			}
			out.WriteString(ref)
		} else if placeholderInString(body) {
			return "", &ConfigError{Msg: fmt.Sprintf("invalid script %q: placeholder inside a string, compare against the variable instead", script)}
		} else {
			out.WriteString(rest[q : end+1])
		}
		rest = rest[end+1:]
	}
	return out.String(), nil
}

func scriptRefs(code string) (string, error) {
	var err error
	out := templateTokenRegex.ReplaceAllStringFunc(code, func(m string) string {
		ref, rerr := scriptRef(m)
		if rerr != nil && err == nil {
			err = rerr
		}
		return ref
	})
	return out, err
}

func scriptRef(tok string) (string, error) {
	key, ok := templateTokenKey(tok)
	if !ok {
		return "", &ConfigError{Msg: fmt.Sprintf("invalid group reference %q in script", tok)}
	}
	if _, err := strconv.Atoi(key); err == nil {
		return "groups." + key, nil
	}
	if !identRegex.MatchString(key) {
		return "", &ConfigError{Msg: fmt.Sprintf("invalid placeholder %q in script", tok)}
	}
	return key, nil
}

// index of the quote closing the string opened at open, or -1
func closingQuote(s string, open int) int {
	quote := s[open]
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

// only {key} forms count; "$5" in a longer string is ordinary text
func placeholderInString(body string) bool {
	for _, m := range templateTokenRegex.FindAllString(body, -1) {
		if strings.HasPrefix(m, "{") {
			return true
		}
	}
	return false
}
