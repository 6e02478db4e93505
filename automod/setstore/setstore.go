// Named sets of words, eg words allowed to stay upper-case, or command labels exempt from a check.
//
// Membership is case-insensitive: values are stored and looked up lower-cased.
package setstore

import (
	"context"
	"strings"
)

// Set names used by the engine
const (
	// words kept as written by the caps fixer
	SetCapsWhitelist = "caps-whitelist"
	// command labels never counted by the similarity check
	SetSimilarityCommands = "similarity-commands"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

func normalize(val string) string {
	return strings.ToLower(strings.TrimSpace(val))
}
