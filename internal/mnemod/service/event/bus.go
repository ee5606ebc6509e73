// Package event implements the in-process publish/subscribe bus used to
// decouple plugins from one another. Handlers run synchronously on the
// emitter's goroutine in priority order.
package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemora/mnemora/pkg/logger"
)

// DefaultHistorySize bounds the retained event history per bus.
const DefaultHistorySize = 1000

// Event is a named occurrence with an arbitrary payload.
type Event struct {
	Name      string                 `json:"name"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source,omitempty"`
}

// Handler consumes an event. Returned errors are logged and counted but do
// not stop delivery to later handlers.
type Handler func(ctx context.Context, evt Event) error

type subscription struct {
	id       string
	priority int
	seq      uint64
	once     bool
	handler  Handler
}

// Bus is a synchronous publish/subscribe event bus. Lower priority values
// run first; equal priorities run in subscription order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	history     []Event
	historySize int
	seq         uint64
}

// NewBus creates a bus retaining up to historySize past events. A size of
// zero or less selects DefaultHistorySize.
func NewBus(historySize int) *Bus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Bus{
		subscribers: make(map[string][]*subscription),
		historySize: historySize,
	}
}

// Subscribe registers a handler for the named event and returns an opaque
// handle for Unsubscribe.
func (b *Bus) Subscribe(name string, priority int, handler Handler) string {
	return b.subscribe(name, priority, handler, false)
}

// SubscribeOnce registers a handler that is removed after its first delivery.
func (b *Bus) SubscribeOnce(name string, priority int, handler Handler) string {
	return b.subscribe(name, priority, handler, true)
}

func (b *Bus) subscribe(name string, priority int, handler Handler, once bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	sub := &subscription{
		id:       uuid.NewString(),
		priority: priority,
		seq:      b.seq,
		once:     once,
		handler:  handler,
	}

	subs := append(b.subscribers[name], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority < subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	b.subscribers[name] = subs

	return sub.id
}

// Unsubscribe removes the subscription with the given handle. It reports
// whether a subscription was removed.
func (b *Bus) Unsubscribe(name, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[name]
	for i, sub := range subs {
		if sub.id == id {
			b.subscribers[name] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Emit delivers the event to every subscriber of its name, in priority
// order. Delivery is best-effort: a failing handler is logged and skipped,
// and the first handler error is returned after all handlers have run.
func (b *Bus) Emit(ctx context.Context, name string, payload map[string]interface{}) error {
	evt := Event{
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	b.history = append(b.history, evt)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}

	subs := b.subscribers[name]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)

	if len(subs) > 0 {
		remaining := subs[:0]
		for _, sub := range subs {
			if !sub.once {
				remaining = append(remaining, sub)
			}
		}
		b.subscribers[name] = remaining
	}
	b.mu.Unlock()

	var firstErr error
	for _, sub := range snapshot {
		if err := sub.handler(ctx, evt); err != nil {
			logger.Error("[EventBus] handler for event %s failed: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// History returns retained events, newest last. An empty name matches all
// events; limit <= 0 means no limit; a non-zero since filters out older
// events.
func (b *Bus) History(name string, limit int, since time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, evt := range b.history {
		if name != "" && evt.Name != name {
			continue
		}
		if !since.IsZero() && evt.Timestamp.Before(since) {
			continue
		}
		out = append(out, evt)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// SubscriberCount reports the number of live subscriptions for an event name.
func (b *Bus) SubscriberCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[name])
}
