package usecase

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	domainCache "github.com/arkevo/collabcore/domains/cache"
	"github.com/arkevo/collabcore/pkg/memcache"
	"github.com/arkevo/collabcore/pkg/notify"
)

// cacheService wires the local in-process store to the notification bus.
// Local reads and writes go straight to the store; ClearAll goes out as an
// invalidation message and takes effect only when the message is delivered,
// locally via the bus echo and remotely on every peer, so all processes
// converge through the same code path.
type cacheService struct {
	local   *memcache.Cache
	bus     notify.Bus
	channel string
}

func NewCacheService(local *memcache.Cache, bus notify.Bus, channel string) domainCache.ICacheUsecase {
	s := &cacheService{
		local:   local,
		bus:     bus,
		channel: channel,
	}
	bus.Subscribe(channel, notify.ActionAny, s.onInvalidate)
	return s
}

// onInvalidate flushes the local store. Delivered at least once; the flush
// is idempotent so duplicates are harmless.
func (s *cacheService) onInvalidate(msg notify.Message) {
	keys := s.local.Keys()
	for _, key := range keys {
		s.local.Remove(key)
	}
	logrus.Infof("[CACHE] Flushed %d entries (message %s)", len(keys), msg.ID)
}

func (s *cacheService) ClearAll(ctx context.Context) error {
	return s.bus.Publish(ctx, s.channel, notify.NewMessage(notify.ActionAny))
}

func (s *cacheService) Get(key string) (any, bool) {
	return s.local.Get(key)
}

func (s *cacheService) Insert(key string, value any, exp memcache.Expiration) {
	s.local.Insert(key, value, exp)
}

func (s *cacheService) Remove(key string) {
	s.local.Remove(key)
}

func (s *cacheService) RemoveByPattern(pattern string) error {
	return s.local.RemoveByPattern(pattern)
}

func (s *cacheService) HashGet(key, field string) (any, bool) {
	return s.local.HashGet(key, field)
}

func (s *cacheService) HashGetAll(key string) map[string]any {
	return s.local.HashGetAll(key)
}

func (s *cacheService) HashSet(key, field string, value any) {
	s.local.HashSet(key, field, value)
}

func (s *cacheService) GetStats(ctx context.Context) (domainCache.CacheStats, error) {
	entries, bytes := s.local.Stats()
	return domainCache.CacheStats{
		Entries:   entries,
		HumanSize: humanize.Bytes(uint64(bytes)),
	}, nil
}
