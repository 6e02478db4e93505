package helpers

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fraction (0 to 1) of letters which are upper case. Color codes and domain-looking words are ignored.
func CapsPercentage(msg string) float64 {
	letters, upper := 0, 0
	for _, word := range strings.Fields(StripColors(msg)) {
		if IsDomain(word) {
			continue
		}
		for _, r := range word {
			if !unicode.IsLetter(r) {
				continue
			}
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// Length of the longest run of consecutive upper-case letters. Words for which `ignore` returns true are skipped; `ignore` may be nil.
func CapsInRow(msg string, ignore func(word string) bool) int {
	best := 0
	for _, word := range strings.Fields(StripColors(msg)) {
		if ignore != nil && ignore(word) {
			continue
		}
		run := 0
		for _, r := range word {
			if unicode.IsUpper(r) {
				run++
				if run > best {
					best = run
				}
			} else {
				run = 0
			}
		}
	}
	return best
}

// Rewrites a shouting message word by word.
//
// Words for which `keep` returns true (whitelisted words, player names), and domains, are left as-is and the word after them is fully lower-cased. Otherwise the first word of a sentence keeps its first character and lower-cases the rest, and every other word is lower-cased. A word ending in '.', '!' or '?' starts a new sentence.
//
// The rewrite is a fixed point: FixCaps(FixCaps(s)) == FixCaps(s).
func FixCaps(msg string, keep func(word string) bool) string {
	words := strings.Split(msg, " ")
	midSentence := false
	for i, word := range words {
		if word == "" {
			continue
		}
		if IsDomain(word) || (keep != nil && keep(word)) {
			midSentence = true
			continue
		}
		if midSentence {
			words[i] = strings.ToLower(word)
		} else {
			_, size := utf8.DecodeRuneInString(word)
			words[i] = word[:size] + strings.ToLower(word[size:])
		}
		midSentence = !EndsSentence(words[i])
	}
	return strings.Join(words, " ")
}
