package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain/events"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTrackerSize = 10_000
	defaultTrackerTTL  = time.Hour
)

// ErrUnsettled is returned (wrapped) by a handler that finished without error
// but without a final outcome, e.g. an order that is not paid yet. WithIdempotency
// swallows it and leaves the key eligible for the next delivery.
var ErrUnsettled = errors.New("event handled without a final outcome")

// KeyExtractor extracts an idempotency key from an event.
type KeyExtractor func(events.Event) string

// IdempotencyTracker remembers keys whose handler already settled in this process.
// It holds at most size keys, each for at most ttl; the durable guard stays with
// the handler (for commissions, the ledger operation id).
type IdempotencyTracker struct {
	processed *expirable.LRU[string, struct{}]
	inflight  singleflight.Group
}

// NewIdempotencyTracker creates an empty tracker with the default bounds.
func NewIdempotencyTracker() *IdempotencyTracker {
	return NewBoundedIdempotencyTracker(defaultTrackerSize, defaultTrackerTTL)
}

// NewBoundedIdempotencyTracker creates an empty tracker holding at most size keys for ttl.
func NewBoundedIdempotencyTracker(size int, ttl time.Duration) *IdempotencyTracker {
	if size <= 0 {
		size = defaultTrackerSize
	}
	if ttl <= 0 {
		ttl = defaultTrackerTTL
	}
	return &IdempotencyTracker{processed: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Seen reports whether key has been processed successfully.
func (t *IdempotencyTracker) Seen(key string) bool {
	_, ok := t.processed.Peek(key)
	return ok
}

// Len reports how many keys are remembered.
func (t *IdempotencyTracker) Len() int {
	return t.processed.Len()
}

// WithIdempotency runs handler at most once per key: concurrent deliveries share one
// attempt and redeliveries after success are skipped. Failed and unsettled keys stay
// eligible for retry.
func WithIdempotency(
	handler HandlerFunc,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	handlerName string,
	logger *slog.Logger,
) HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e events.Event) error {
		key := keyExtractor(e)
		if key == "" {
			return handler(ctx, e)
		}
		if tracker.Seen(key) {
			logger.Info("🔁 [SKIP] Event already processed",
				"handler", handlerName, "event_type", e.Type(), "idempotency_key", key)
			return nil
		}
		_, err, _ := tracker.inflight.Do(key, func() (any, error) {
			if tracker.Seen(key) {
				return nil, nil
			}
			if err := handler(ctx, e); err != nil {
				return nil, err
			}
			tracker.processed.Add(key, struct{}{})
			return nil, nil
		})
		if errors.Is(err, ErrUnsettled) {
			logger.Info("⏳ [PENDING] Event handled without final outcome",
				"handler", handlerName, "event_type", e.Type(), "idempotency_key", key, "reason", err)
			return nil
		}
		return err
	}
}
