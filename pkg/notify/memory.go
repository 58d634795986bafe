package notify

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus is the single-node transport: an in-process broadcast that
// mirrors the networked bus semantics, local echo included. It is the
// fallback when no networked transport is configured.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*subscriber)}
}

func (b *MemoryBus) Subscribe(channel string, action Action, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.subs[channel] = append(b.subs[channel], newSubscriber(action, h))
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("notify: bus is closed")
	}
	for _, s := range b.subs[channel] {
		if s.action == msg.Action {
			s.deliver(channel, msg)
		}
	}
	return nil
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, list := range b.subs {
		for _, s := range list {
			s.stop()
		}
	}
	b.subs = make(map[string][]*subscriber)
}
