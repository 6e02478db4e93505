package keyword

import (
	"fmt"
	"regexp"
	"strings"
)

// Whitelist is a list of plain entries plus the same entries compiled as case-insensitive regular expressions.
type Whitelist struct {
	entries []string
	regexes []*regexp.Regexp
}

// Compiles each entry as a case-insensitive regex. Returns an error naming the first bad entry.
func NewWhitelist(entries []string) (*Whitelist, error) {
	wl := &Whitelist{entries: entries}
	for _, e := range entries {
		re, err := regexp.Compile("(?i)" + e)
		if err != nil {
			return nil, fmt.Errorf("invalid whitelist pattern %q: %w", e, err)
		}
		wl.regexes = append(wl.regexes, re)
	}
	return wl, nil
}

// Exact (case-insensitive) membership.
func (wl *Whitelist) InList(s string) bool {
	if wl == nil {
		return false
	}
	for _, e := range wl.entries {
		if strings.EqualFold(e, s) {
			return true
		}
	}
	return false
}

// Whether any entry, as a regex, matches anywhere in the text.
func (wl *Whitelist) InListRegex(text string) bool {
	if wl == nil {
		return false
	}
	for _, re := range wl.regexes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (wl *Whitelist) Len() int {
	if wl == nil {
		return 0
	}
	return len(wl.entries)
}
