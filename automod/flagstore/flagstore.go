// Sets of string flags attached to a key (eg, a sender id), used to make one-shot responses fire at most once.
package flagstore

import (
	"context"
)

type FlagStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Has(ctx context.Context, key, flag string) (bool, error)
	Add(ctx context.Context, key string, flags []string) error
	// Sets one flag, returning true only for the caller which actually set it. Concurrent callers racing on the same flag see exactly one true.
	TryAdd(ctx context.Context, key, flag string) (bool, error)
	Remove(ctx context.Context, key string, flags []string) error
}
