package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/observability"
)

// Entity is a server-owned record a Collection can hold.
type Entity[T any] interface {
	EntityID() int64
	Deleted() bool
	Clone() T
	Merge(raw json.RawMessage) (T, error)
}

// Snapshot is a point-in-time copy of a collection for rendering.
type Snapshot[T any] struct {
	Items               []T
	Loading             bool
	LastError           *api.Error
	LastUpdated         time.Time
	ConsecutiveFailures int // fetch failures since the last good fetch
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot[T]) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Collection mirrors the server's listing of one entity type. It is updated
// wholesale by fetches and incrementally by mutations; responses are applied
// in the order they arrive.
type Collection[T Entity[T]] struct {
	name    string
	metrics *observability.Metrics

	mu          sync.RWMutex
	items       []T
	inflight    int
	lastErr     *api.Error
	lastUpdated time.Time
	failures    int
}

// Snapshot returns a deep copy of the collection and its status.
func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot[T]{
		Items:               cloneItems(c.items),
		Loading:             c.inflight > 0,
		LastUpdated:         c.lastUpdated,
		ConsecutiveFailures: c.failures,
	}
	if c.lastErr != nil {
		dup := *c.lastErr
		snap.LastError = &dup
	}
	return snap
}

// Lookup returns the local copy of the entity with id. It never hits the
// network.
func (c *Collection[T]) Lookup(id int64) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i].Clone(), true
	}
	var zero T
	return zero, false
}

// Len returns the number of entities held.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// LastError returns the error of the most recent failed operation, or nil.
func (c *Collection[T]) LastError() *api.Error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// ClearError dismisses the recorded error.
func (c *Collection[T]) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

func (c *Collection[T]) begin() {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()
}

// finish ends an operation started with begin and returns err classified,
// or a nil error on success.
func (c *Collection[T]) finish(err error, fetch bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if err == nil {
		c.lastErr = nil
		if fetch {
			c.failures = 0
			c.lastUpdated = time.Now()
		}
		return nil
	}
	classified := api.Classify(err)
	c.lastErr = classified
	if fetch {
		c.failures++
		c.lastUpdated = time.Now()
	}
	if c.metrics != nil {
		c.metrics.StoreErrorsByKind.WithLabelValues(c.name, classified.Kind.String()).Inc()
	}
	return classified
}

func (c *Collection[T]) fetch(ctx context.Context, list func(context.Context) ([]T, error)) error {
	c.begin()
	items, err := list(ctx)
	if err == nil {
		c.mu.Lock()
		c.items = cloneItems(items)
		c.mu.Unlock()
	}
	return c.finish(err, true)
}

func (c *Collection[T]) create(ctx context.Context, send func(context.Context) (T, error)) (T, error) {
	c.begin()
	item, err := send(ctx)
	if err == nil {
		c.upsert(item)
	}
	if err := c.finish(err, false); err != nil {
		var zero T
		return zero, err
	}
	return item.Clone(), nil
}

// patch sends a mutation answered with the entity's new representation and
// overlays that onto the local copy. fallback, when set, is applied instead
// when the server answers with a bare acknowledgement.
func (c *Collection[T]) patch(ctx context.Context, id int64, send func(context.Context) (json.RawMessage, error), fallback func(T) T) (T, error) {
	c.begin()
	raw, err := send(ctx)
	var merged T
	if err == nil {
		merged, err = c.applyResponse(id, raw, fallback)
	}
	if err := c.finish(err, false); err != nil {
		var zero T
		return zero, err
	}
	return merged, nil
}

func (c *Collection[T]) remove(ctx context.Context, id int64, send func(context.Context) error) error {
	c.begin()
	err := send(ctx)
	if err == nil {
		c.mu.Lock()
		if i := c.indexLocked(id); i >= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		c.mu.Unlock()
	}
	return c.finish(err, false)
}

func (c *Collection[T]) applyResponse(id int64, raw json.RawMessage, fallback func(T) T) (T, error) {
	full := api.HasEntityID(raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		var item T
		if !full {
			return item, nil
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			return item, err
		}
		c.items = append(c.items, item)
		return item.Clone(), nil
	}

	merged, err := c.items[i].Merge(raw)
	if err != nil {
		return merged, err
	}
	if !full && fallback != nil {
		merged = fallback(merged)
	}
	c.items[i] = merged
	return merged.Clone(), nil
}

func (c *Collection[T]) upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(item.EntityID()); i >= 0 {
		c.items[i] = item.Clone()
		return
	}
	c.items = append(c.items, item.Clone())
}

func (c *Collection[T]) indexLocked(id int64) int {
	for i, item := range c.items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func cloneItems[T Entity[T]](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	for i, item := range items {
		dup[i] = item.Clone()
	}
	return dup
}
