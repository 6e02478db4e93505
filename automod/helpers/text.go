package helpers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

// same expression, but must cover the whole token, and needs a TLD-ish suffix
var domainRegex = regexp.MustCompile(`(?i)^(?:(?:https?|ftp):\/\/)?(?:[\w\-]+\.)+[a-z]{2,}(?:[/?#][\w/\-&?=%.#]*)?$`)

func ExtractTextURLs(raw string) []string {
	return urlRegex.FindAllString(raw, -1)
}

// Whether a single word looks like a domain name or URL, eg "example.com" or "https://example.com/page".
func IsDomain(word string) bool {
	return domainRegex.MatchString(word)
}

// legacy '&' and '§' color codes, including '&#RRGGBB' and '&x&R&R&G&G&B&B' hex forms, and mini-message style tags
var colorRegex = regexp.MustCompile(`(?i)[&§]x(?:[&§][0-9a-f]){6}|[&§]#[0-9a-f]{6}|[&§][0-9a-fk-or]|<(?:/)?(?:#[0-9a-f]{6}|[a-z_]+)>`)

// Removes chat color and formatting codes.
func StripColors(s string) string {
	return colorRegex.ReplaceAllString(s, "")
}

// Length of a message in user-perceived characters.
func Length(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// Whether the word ends a sentence.
func EndsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}

// Upper-cases the first character of the message, if it is a lower-case letter.
func CapitalizeFirst(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if !unicode.IsLower(r) {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// Appends a period if the message ends in a letter, unless the last word is a domain.
func InsertDot(msg string) string {
	trimmed := strings.TrimRightFunc(msg, unicode.IsSpace)
	if trimmed == "" || trimmed != msg {
		return msg
	}
	words := strings.Fields(msg)
	if IsDomain(words[len(words)-1]) {
		return msg
	}
	last, _ := utf8.DecodeLastRuneInString(msg)
	if !unicode.IsLetter(last) {
		return msg
	}
	return msg + "."
}
