package keyword

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// longer slugs are cut, to keep metric label values bounded
const maxSlugLen = 48

// Returns a version of a rule name (or other free-form label) usable as a metric label: accents folded, non-letter and non-digit characters removed, lower-case, and at most 48 bytes.
func Slugify(orig string) string {
	slug := strings.ToLower(nonSlugChars.ReplaceAllString(StripAccents(orig), ""))
	if len(slug) <= maxSlugLen {
		return slug
	}
	// don't split a multi-byte character
	cut := maxSlugLen
	for cut > 0 && !utf8RuneStart(slug[cut]) {
		cut--
	}
	return slug[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
