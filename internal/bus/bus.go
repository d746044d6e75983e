// Package bus provides fire-and-forget in-process publish/subscribe
// for store events. Publishing never blocks the publisher, a panicking
// handler cannot block delivery to others, and a subscriber never sees
// its own messages: every message is tagged with a sender identity and
// delivery to the matching subscriber is suppressed.
package bus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/logging"
)

// Event types published by the core workflows.
const (
	EventWordSaved       = "word.saved"
	EventWordDeleted     = "word.deleted"
	EventReviewRecorded  = "review.recorded"
	EventSyncCompleted   = "sync.completed"
	EventImportCompleted = "import.completed"
)

// Message is one published event.
type Message struct {
	Sender  string                 `json:"sender"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	SentAt  int64                  `json:"sentAt"`
}

// Handler consumes messages. Handlers run on their own goroutine per
// delivery; panics are recovered and logged.
type Handler func(Message)

type subscriber struct {
	id      string
	handler Handler
}

// Bus fans out messages to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []subscriber
	clk  clock.Clock
	log  *logging.Logger
}

// New creates a Bus. A nil clock falls back to the system clock; a nil
// logger stays silent.
func New(clk clock.Clock, log *logging.Logger) *Bus {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Bus{clk: clk, log: log}
}

// NewSender allocates a sender identity for a publisher/subscriber pair.
func (b *Bus) NewSender() string {
	return uuid.New().String()
}

// Subscribe registers a handler under the given sender identity and
// returns an unsubscribe function. Messages published with the same
// identity are not delivered to this handler.
func (b *Bus) Subscribe(senderID string, handler Handler) func() {
	sub := subscriber{id: senderID, handler: handler}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.subs {
			if b.subs[i].id == senderID {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish sends a message to every subscriber except the sender itself.
// It returns immediately; delivery happens on per-subscriber goroutines.
func (b *Bus) Publish(senderID, msgType string, payload map[string]interface{}) {
	msg := Message{
		Sender:  senderID,
		Type:    msgType,
		Payload: payload,
		SentAt:  b.clk().Unix(),
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.id == senderID {
			continue // self-echo suppression
		}
		go b.deliver(sub, msg)
	}
}

// deliver invokes one handler, isolating panics.
func (b *Bus) deliver(sub subscriber, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("subscriber panicked", map[string]interface{}{
				"subscriber": sub.id,
				"type":       msg.Type,
				"panic":      r,
			})
		}
	}()
	sub.handler(msg)
}
