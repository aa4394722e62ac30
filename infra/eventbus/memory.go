package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/mlmcore/pkg/domain/events"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
)

// MemoryEventBus dispatches events synchronously to in-process handlers.
// Handler errors are logged and never returned to the emitter.
type MemoryEventBus struct {
	handlers  map[events.EventType][]eventbus.HandlerFunc
	mu        sync.RWMutex
	logger    *slog.Logger
	published []events.Event
}

// NewWithMemory creates a new in-memory event bus.
func NewWithMemory(logger *slog.Logger) *MemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryEventBus{
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		logger:   logger.With("bus", "memory"),
	}
}

// Register registers a handler for a specific event type.
func (b *MemoryEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit dispatches the event to all registered handlers for its type.
func (b *MemoryEventBus) Emit(ctx context.Context, event events.Event) error {
	eventType := events.EventType(event.Type())

	b.mu.Lock()
	b.published = append(b.published, event)
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
	b.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("event handler failed", "type", eventType, "error", err)
		}
	}
	return nil
}

// Published returns a copy of every event emitted so far.
func (b *MemoryEventBus) Published() []events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]events.Event(nil), b.published...)
}

// ClearPublished forgets recorded events.
func (b *MemoryEventBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

var _ eventbus.Bus = (*MemoryEventBus)(nil)

type queuedEvent struct {
	ctx   context.Context
	event events.Event
}

// MemoryAsyncEventBus queues events and dispatches them on a background goroutine.
type MemoryAsyncEventBus struct {
	handlers map[events.EventType][]eventbus.HandlerFunc
	mu       sync.RWMutex
	queue    chan queuedEvent
	log      *slog.Logger
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWithMemoryAsync creates an in-memory bus with a queue of the given capacity.
func NewWithMemoryAsync(logger *slog.Logger, capacity int) *MemoryAsyncEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 100
	}
	b := &MemoryAsyncEventBus{
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		queue:    make(chan queuedEvent, capacity),
		log:      logger.With("bus", "memory-async"),
	}
	b.wg.Add(1)
	go b.process()
	return b
}

// Register registers a handler for a specific event type.
func (b *MemoryAsyncEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Emit enqueues the event, blocking while the queue is full or until ctx ends.
func (b *MemoryAsyncEventBus) Emit(ctx context.Context, event events.Event) error {
	select {
	case b.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to be handled.
func (b *MemoryAsyncEventBus) Close() error {
	b.once.Do(func() { close(b.queue) })
	b.wg.Wait()
	return nil
}

func (b *MemoryAsyncEventBus) process() {
	defer b.wg.Done()
	for q := range b.queue {
		eventType := events.EventType(q.event.Type())
		b.mu.RLock()
		handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
		b.mu.RUnlock()
		for _, handler := range handlers {
			b.dispatch(q, eventType, handler)
		}
	}
}

func (b *MemoryAsyncEventBus) dispatch(q queuedEvent, eventType events.EventType, handler eventbus.HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic recovered in event handler", "type", eventType, "panic", r)
		}
	}()
	if err := handler(q.ctx, q.event); err != nil {
		b.log.Error("failed to process event", "type", eventType, "error", err)
	}
}

var _ eventbus.Bus = (*MemoryAsyncEventBus)(nil)
