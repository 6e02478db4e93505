package cachestore

import (
	"context"
)

// Cache names used by the engine
const (
	// key: sender uuid; value: the sender's most recent accepted chat line
	NameLastChat = "last-chat"
)

type CacheStore interface {
	// Returns the empty string on a miss
	Get(ctx context.Context, name, key string) (string, error)
	// Setting the empty string is the same as a purge
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}
