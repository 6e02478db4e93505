package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Removes combining marks (accents) from text, eg "Gdańsk" becomes "Gdansk". Case and punctuation are preserved.
func StripAccents(text string) string {
	// this function needs to be re-defined in every function call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(normFunc, text)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return text
	}
	return out
}

// Splits free-form text in to tokens, including lower-case, unicode normalization, and accent folding.
func TokenizeText(text string) []string {
	split := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	return strings.Fields(StripAccents(split))
}

// Splits a command line in to its label (without leading '/', lower-case) and arguments.
func SplitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	label := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	return label, fields[1:]
}
