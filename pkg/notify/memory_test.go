package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversToEverySubscriber(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var delivered int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("ch", ActionAny, func(Message) {
			atomic.AddInt32(&delivered, 1)
		})
	}

	require.NoError(t, bus.Publish(context.Background(), "ch", NewMessage(ActionAny)))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&delivered) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBus_PublisherReceivesOwnMessage(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	got := make(chan Message, 1)
	bus.Subscribe("ch", ActionAny, func(msg Message) {
		got <- msg
	})

	sent := NewMessage(ActionAny)
	require.NoError(t, bus.Publish(context.Background(), "ch", sent))

	select {
	case msg := <-got:
		assert.Equal(t, sent.ID, msg.ID)
	case <-time.After(time.Second):
		t.Fatal("local echo never arrived")
	}
}

func TestMemoryBus_HandlerNotOnPublisherGoroutine(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	handled := make(chan struct{})
	var publishReturned atomic.Bool

	bus.Subscribe("ch", ActionAny, func(Message) {
		// Give Publish time to return; a reentrant dispatch would still
		// be inside Publish here.
		time.Sleep(20 * time.Millisecond)
		assert.True(t, publishReturned.Load(), "handler must not run on the publisher's goroutine")
		close(handled)
	})

	require.NoError(t, bus.Publish(context.Background(), "ch", NewMessage(ActionAny)))
	publishReturned.Store(true)

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestMemoryBus_ActionFilter(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var anyCount, insertCount int32
	bus.Subscribe("ch", ActionAny, func(Message) { atomic.AddInt32(&anyCount, 1) })
	bus.Subscribe("ch", ActionInsert, func(Message) { atomic.AddInt32(&insertCount, 1) })

	require.NoError(t, bus.Publish(context.Background(), "ch", NewMessage(ActionAny)))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&anyCount) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&insertCount))
}

func TestMemoryBus_ChannelIsolation(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var count int32
	bus.Subscribe("other", ActionAny, func(Message) { atomic.AddInt32(&count, 1) })

	require.NoError(t, bus.Publish(context.Background(), "ch", NewMessage(ActionAny)))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestMemoryBus_OrderPreservedPerSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	bus.Subscribe("ch", ActionAny, func(msg Message) {
		mu.Lock()
		order = append(order, msg.ID)
		if len(order) == 5 {
			close(done)
		}
		mu.Unlock()
	})

	var sent []string
	for i := 0; i < 5; i++ {
		msg := NewMessage(ActionAny)
		sent = append(sent, msg.ID)
		require.NoError(t, bus.Publish(context.Background(), "ch", msg))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("messages never all arrived")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, sent, order, "single publisher to single subscriber must stay FIFO")
}

func TestMemoryBus_PublishAfterCloseFails(t *testing.T) {
	bus := NewMemoryBus()
	bus.Close()

	assert.Error(t, bus.Publish(context.Background(), "ch", NewMessage(ActionAny)))
	// Subscribe after close must not panic
	bus.Subscribe("ch", ActionAny, func(Message) {})
	// Double close must not panic
	bus.Close()
}
