package keyword

import "strings"

// Helper to check a single token against a list of tokens, ignoring case
func TokenInSet(tok string, set []string) bool {
	for _, v := range set {
		if strings.EqualFold(tok, v) {
			return true
		}
	}
	return false
}
