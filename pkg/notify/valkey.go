package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/arkevo/collabcore/infrastructure/valkey"
)

const receiveBackoff = 2 * time.Second

// ValkeyBus is the multi-node transport. Messages are JSON-encoded and
// broadcast over valkey pub/sub; every subscribed process receives them,
// the publisher's own process included, because its subscriber connection
// is a regular broker client like any peer's.
type ValkeyBus struct {
	client *valkey.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	subs   map[string][]*subscriber
	closed bool
}

func NewValkeyBus(client *valkey.Client) *ValkeyBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &ValkeyBus{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string][]*subscriber),
	}
}

func (b *ValkeyBus) Subscribe(channel string, action Action, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	first := len(b.subs[channel]) == 0
	b.subs[channel] = append(b.subs[channel], newSubscriber(action, h))
	if first {
		go b.receiveLoop(channel)
	}
}

// receiveLoop holds one dedicated SUBSCRIBE connection per channel and fans
// incoming messages out to the local subscribers' dispatch queues. The loop
// reconnects with backoff when the broker connection drops.
func (b *ValkeyBus) receiveLoop(channel string) {
	full := b.client.Channel(channel)
	for {
		cmd := b.client.Inner().B().Subscribe().Channel(full).Build()
		err := b.client.Inner().Receive(b.ctx, cmd, func(psm valkeylib.PubSubMessage) {
			var msg Message
			if uerr := json.Unmarshal([]byte(psm.Message), &msg); uerr != nil {
				logrus.WithError(uerr).Warnf("[NOTIFY] Discarding malformed message on %s", channel)
				return
			}
			b.fanOut(channel, msg)
		})
		if b.ctx.Err() != nil {
			return
		}
		if err != nil {
			logrus.WithError(err).Warnf("[NOTIFY] Subscription to %s lost, retrying in %v", channel, receiveBackoff)
		}
		select {
		case <-b.ctx.Done():
			return
		case <-time.After(receiveBackoff):
		}
	}
}

func (b *ValkeyBus) fanOut(channel string, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[channel] {
		if s.action == msg.Action {
			s.deliver(channel, msg)
		}
	}
}

func (b *ValkeyBus) Publish(ctx context.Context, channel string, msg Message) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errors.New("notify: bus is closed")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.client.Channel(channel), payload); err != nil {
		// Correctness relies on the next flush, not on this publish.
		logrus.WithError(err).Warnf("[NOTIFY] Publish to %s failed, message %s dropped", channel, msg.ID)
	}
	return nil
}

func (b *ValkeyBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cancel()
	for _, list := range b.subs {
		for _, s := range list {
			s.stop()
		}
	}
	b.subs = make(map[string][]*subscriber)
}
