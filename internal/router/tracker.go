package router

import (
	"errors"
	"sync"

	"gungnir/internal/common"
)

var ErrDuplicateOrder = errors.New("duplicate order id")

// Tracker is the in-memory registry of every order the router has accepted.
// Records live for the process lifetime; there is no eviction. Inserts and
// lookups are safe across identifiers, while updates to a single identifier
// are serialized by the session's in-order event delivery.
type Tracker struct {
	mu     sync.RWMutex
	orders map[string]common.Order
}

func NewTracker() *Tracker {
	return &Tracker{
		orders: make(map[string]common.Order),
	}
}

// Add registers a new order keyed by its identifier.
func (t *Tracker) Add(order common.Order) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.orders[order.ID]; ok {
		return ErrDuplicateOrder
	}
	t.orders[order.ID] = order
	return nil
}

// Get returns the tracked order, if any.
func (t *Tracker) Get(id string) (common.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	order, ok := t.orders[id]
	return order, ok
}

// Update replaces the stored record.
func (t *Tracker) Update(order common.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders[order.ID] = order
}

// Len reports the number of tracked orders.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.orders)
}
