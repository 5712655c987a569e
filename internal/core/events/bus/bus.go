package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Bus is a thread-safe in-process pub/sub fan-out.
//
// Handlers subscribe by event type, optionally within a named topic for
// isolation; the default topic is "". Delivery is synchronous: Publish
// invokes handlers in the caller's goroutine and returns their joined
// errors. Handlers should be quick or offload heavy work themselves.
type Bus interface {
	// Publish delivers the event to all subscribers of its type in the
	// default topic.
	Publish(ev Event) error
	// PublishToTopic delivers the event within a specific topic.
	PublishToTopic(topic string, ev Event) error
	// PublishAsync delivers in a separate goroutine. The returned channel
	// receives the joined handler error (or nil) and is then closed.
	PublishAsync(ev Event) <-chan error
	// PublishWithFilters drops the event without error if any filter
	// rejects it.
	PublishWithFilters(ev Event, filters ...Filter) error

	// Subscribe registers a handler for an event type in the default topic.
	Subscribe(eventType string, h Handler) (Subscription, error)
	// SubscribeTopic registers a handler for an event type within a topic.
	// Unknown topics are created on first use.
	SubscribeTopic(topic, eventType string, h Handler) (Subscription, error)

	// AddObserver registers an observer for delivery callbacks.
	AddObserver(obs Observer)
	// RemoveObserver unregisters a previously added observer.
	RemoveObserver(obs Observer)

	// Metrics returns a snapshot of the delivery counters.
	Metrics() Metrics
	// Topics returns a snapshot of the known topics.
	Topics() []TopicInfo
}

type (
	// Handler is invoked once per delivered event. A non-nil error is
	// aggregated into the Publish result.
	Handler func(ev Event) error
	// Filter decides whether an event should be delivered.
	Filter func(ev Event) bool
)

// Subscription is a handle to a registered handler.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Repeated calls are safe.
	Cancel() error
}

// Observer receives per-delivery callbacks, e.g. for log or metric export.
// Callbacks run on the publisher's goroutine and must return quickly.
type Observer interface {
	OnPublish(topic string, ev Event)
	OnDelivered(topic string, ev Event, handlers int, err error, elapsed time.Duration)
}

// Metrics holds cumulative delivery counters.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
}

// TopicInfo is a snapshot of one topic.
type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}

type subscription struct {
	id        string
	eventType string
	active    atomic.Bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }

func (s *subscription) Cancel() error {
	if s.active.CompareAndSwap(true, false) {
		s.cancel()
	}
	return nil
}

type memoryBus struct {
	mu sync.RWMutex
	// topic -> eventType -> subID -> handler
	handlers  map[string]map[string]map[string]*handlerEntry
	observers map[Observer]struct{}

	published  atomic.Uint64
	delivered  atomic.Uint64
	errCount   atomic.Uint64
	dropped    atomic.Uint64
	activeSubs atomic.Uint64
}

type handlerEntry struct {
	sub *subscription
	fn  Handler
}

// New creates an empty in-memory bus.
func New() Bus {
	return &memoryBus{
		handlers:  make(map[string]map[string]map[string]*handlerEntry),
		observers: make(map[Observer]struct{}),
	}
}

func (b *memoryBus) Publish(ev Event) error {
	return b.deliver("", ev)
}

func (b *memoryBus) PublishToTopic(topic string, ev Event) error {
	return b.deliver(topic, ev)
}

func (b *memoryBus) PublishAsync(ev Event) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- b.deliver("", ev)
		close(ch)
	}()
	return ch
}

func (b *memoryBus) PublishWithFilters(ev Event, filters ...Filter) error {
	for _, f := range filters {
		if !f(ev) {
			b.dropped.Add(1)
			return nil
		}
	}
	return b.deliver("", ev)
}

func (b *memoryBus) Subscribe(eventType string, h Handler) (Subscription, error) {
	return b.SubscribeTopic("", eventType, h)
}

func (b *memoryBus) SubscribeTopic(topic, eventType string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, errors.New("bus: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[string]map[string]*handlerEntry)
	}
	if b.handlers[topic][eventType] == nil {
		b.handlers[topic][eventType] = make(map[string]*handlerEntry)
	}
	id := uuid.NewString()
	s := &subscription{id: id, eventType: eventType}
	s.active.Store(true)
	s.cancel = func() {
		b.mu.Lock()
		if m, ok := b.handlers[topic][eventType]; ok {
			delete(m, id)
		}
		b.mu.Unlock()
		b.activeSubs.Add(^uint64(0))
	}
	b.handlers[topic][eventType][id] = &handlerEntry{sub: s, fn: h}
	b.activeSubs.Add(1)
	return s, nil
}

func (b *memoryBus) AddObserver(obs Observer) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *memoryBus) RemoveObserver(obs Observer) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *memoryBus) Metrics() Metrics {
	return Metrics{
		Published:         b.published.Load(),
		DeliveredHandlers: b.delivered.Load(),
		Errors:            b.errCount.Load(),
		DroppedByFilters:  b.dropped.Load(),
		SubscribersActive: b.activeSubs.Load(),
	}
}

func (b *memoryBus) Topics() []TopicInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TopicInfo, 0, len(b.handlers))
	for name, types := range b.handlers {
		info := TopicInfo{Name: name, EventTypes: len(types)}
		for _, m := range types {
			info.Subs += len(m)
		}
		out = append(out, info)
	}
	return out
}

func (b *memoryBus) deliver(topic string, ev Event) error {
	start := time.Now()

	b.mu.RLock()
	var entries []*handlerEntry
	if types := b.handlers[topic]; types != nil {
		if m := types[ev.Type]; len(m) > 0 {
			entries = make([]*handlerEntry, 0, len(m))
			for _, e := range m {
				entries = append(entries, e)
			}
		}
	}
	var observers []Observer
	if len(b.observers) > 0 {
		observers = make([]Observer, 0, len(b.observers))
		for obs := range b.observers {
			observers = append(observers, obs)
		}
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(topic, ev)
	}

	var all error
	for _, e := range entries {
		if !e.sub.active.Load() {
			continue
		}
		if err := e.fn(ev); err != nil {
			all = errors.Join(all, err)
		}
	}

	b.published.Add(1)
	b.delivered.Add(uint64(len(entries)))
	if all != nil {
		b.errCount.Add(1)
	}
	for _, obs := range observers {
		obs.OnDelivered(topic, ev, len(entries), all, time.Since(start))
	}
	return all
}
