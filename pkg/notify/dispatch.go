package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

// subscriber owns a buffered queue and a single dispatch goroutine, so
// handlers never run on the delivering goroutine and stay FIFO per
// subscriber.
type subscriber struct {
	action  Action
	handler Handler
	queue   chan Message
	done    chan struct{}
	once    sync.Once
}

func newSubscriber(action Action, h Handler) *subscriber {
	s := &subscriber{
		action:  action,
		handler: h,
		queue:   make(chan Message, subscriberBuffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) run() {
	for {
		select {
		case msg := <-s.queue:
			s.handler(msg)
		case <-s.done:
			return
		}
	}
}

// deliver enqueues without blocking the caller. A full queue drops the
// message with a warning; invalidation consumers tolerate this because a
// later flush re-converges them.
func (s *subscriber) deliver(channel string, msg Message) {
	select {
	case s.queue <- msg:
	case <-s.done:
	default:
		logrus.Warnf("[NOTIFY] Subscriber queue full on %s, dropping message %s (%s)",
			channel, msg.ID, msg.Action)
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}
