package notify

import (
	"context"

	"github.com/google/uuid"
)

// Action identifies what an invalidation message asks subscribers to do.
// It is a closed set: handlers switch over it exhaustively.
type Action int

const (
	// ActionAny instructs subscribers to drop everything they hold.
	ActionAny Action = iota
	// ActionInsert and ActionRemove are reserved for per-key invalidation.
	// No publisher emits them today.
	ActionInsert
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionAny:
		return "any"
	case ActionInsert:
		return "insert"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Message is a broadcast notification. Processing the same message twice must
// have the same effect as processing it once; the ID exists for correlation
// in logs, not for deduplication.
type Message struct {
	ID     string `json:"id"`
	Action Action `json:"action"`
	Key    string `json:"key,omitempty"`
}

// NewMessage builds a message with a fresh correlation id.
func NewMessage(action Action) Message {
	return Message{ID: uuid.NewString(), Action: action}
}

// Handler receives delivered messages. Handlers run on the subscriber's own
// dispatch goroutine, never on the publisher's calling goroutine.
type Handler func(msg Message)

// Bus is a publish/subscribe channel that reaches every subscriber in every
// process, including the publisher's own process. Delivery is at-least-once;
// ordering is preserved per publisher per subscriber.
type Bus interface {
	// Subscribe registers a handler for messages on the named channel whose
	// action matches. It must be called before the first Publish the handler
	// is expected to see.
	Subscribe(channel string, action Action, h Handler)

	// Publish hands the message to the transport and returns. It does not
	// wait for remote delivery. Transport failures are logged, never
	// surfaced to the publisher beyond the returned error for local misuse.
	Publish(ctx context.Context, channel string, msg Message) error

	// Close stops all dispatch goroutines. Pending buffered messages are
	// dropped.
	Close()
}
