package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/helpers"
)

// {key} placeholders and legacy $N group references, matched in one pass so substituted values are never expanded again.
// The longest digit run wins, so "$10" is group ten and never group one followed by "0".
var templateTokenRegex = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}|\$(\d+)`)

// Substitutes {key} placeholders and legacy $N group references in a template.
//
// Unknown keys and group numbers the match does not have are left as written, so "costs $10" survives a pattern with two groups.
func Replace(tmpl string, vars map[string]any) string {
	return templateTokenRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		key, ok := templateTokenKey(m)
		if !ok {
			return m
		}
		if v, ok := vars[key]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}

// Variable name a template token refers to. "$01" refers to nothing.
func templateTokenKey(tok string) (string, bool) {
	if strings.HasPrefix(tok, "{") {
		return tok[1 : len(tok)-1], true
	}
	idx, err := strconv.Atoi(tok[1:])
	if err != nil || tok[1:] != strconv.Itoa(idx) {
		return "", false
	}
	return tok[1:], true
}

// Sender placeholders shared by rules, escalation and join-flood templates.
func SenderVars(sender event.Sender) map[string]any {
	vars := map[string]any{
		"player":        sender.Name(),
		"player_name":   sender.Name(),
		"sender_name":   sender.Name(),
		"player_uuid":   sender.ID().String(),
		"player_server": sender.ServerName(),
	}
	if nick := sender.Nick(); nick != "" {
		vars["player_nick"] = nick
	} else {
		vars["player_nick"] = sender.Name()
	}
	return vars
}

// Variables visible to a rule's scripts and templates after its pattern matched.
func ruleVars(sender event.Sender, kind event.Kind, rule *Rule, original, current string, channel *event.Channel, groups []string) map[string]any {
	vars := SenderVars(sender)
	vars["original_message"] = original
	vars["message"] = current
	// space separated, empty when there are none
	vars["links"] = strings.Join(helpers.ExtractTextURLs(current), " ")
	if kind == event.KindCommand {
		vars["command"] = original
	}
	if rule.Name != "" {
		vars["rule_name"] = rule.Name
		vars["ruleID"] = rule.Name
	}
	if channel != nil {
		vars["channel"] = channel.Name
	}
	for i, g := range groups {
		vars[strconv.Itoa(i)] = g
	}
	return vars
}

// Capture groups of the first match, with unmatched optional groups as empty strings. Nil if the pattern does not match.
func matchGroups(re *regexp.Regexp, text string) []string {
	idx := re.FindStringSubmatchIndex(text)
	if idx == nil {
		return nil
	}
	groups := make([]string, len(idx)/2)
	for i := range groups {
		if idx[2*i] >= 0 {
			groups[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return groups
}
