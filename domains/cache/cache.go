package cache

import (
	"context"

	"github.com/arkevo/collabcore/pkg/memcache"
)

type CacheStats struct {
	Entries   int    `json:"entries"`
	HumanSize string `json:"human_size"`
}

// ICacheUsecase is the coherent cache every feature shares. Reads and writes
// hit the local process store; ClearAll converges every process through the
// invalidation channel.
type ICacheUsecase interface {
	Get(key string) (any, bool)
	Insert(key string, value any, exp memcache.Expiration)
	Remove(key string)
	RemoveByPattern(pattern string) error

	HashGet(key, field string) (any, bool)
	HashGetAll(key string) map[string]any
	HashSet(key, field string, value any)

	// ClearAll publishes a whole-cache invalidation and returns immediately.
	// The local store is cleared when the message is delivered back, through
	// the same path every peer takes.
	ClearAll(ctx context.Context) error

	GetStats(ctx context.Context) (CacheStats, error)
}
