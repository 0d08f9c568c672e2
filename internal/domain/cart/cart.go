// Package cart implements the session-local shopping cart: a set of distinct
// products, each with its own quantity, persisted to an external key-value
// slot across restarts.
package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tahat-market/shop-api/internal/domain/pricing"
	"github.com/tahat-market/shop-api/internal/domain/product"
)

// Entry pairs a product snapshot with the quantity the customer wants.
type Entry struct {
	Product  product.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Storage is the external key-value slot holding the serialized entry list.
// It is read once on hydration and written on every mutation.
type Storage interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

const saveTimeout = 5 * time.Second

// Store holds the cart state for one session. Mutations are atomic from the
// caller's point of view; persistence runs in the background and never blocks
// the caller. If a save fails, the in-memory state stays authoritative.
type Store struct {
	storage    Storage // nil disables persistence
	lg         *zap.Logger
	manualSave bool

	mu       sync.Mutex
	entries  []Entry
	hydrated bool
	subs     []func()
}

// NewStore creates an empty, not yet hydrated cart. storage may be nil for a
// purely in-memory cart.
func NewStore(storage Storage, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{storage: storage, lg: lg}
}

// NewRequestStore creates a cart that persists only through explicit Flush
// calls: background saves are disabled. A store that does not outlive a single
// request must flush before replying, otherwise an acknowledged mutation may
// not be visible to the next request on the same session.
func NewRequestStore(storage Storage, lg *zap.Logger) *Store {
	s := NewStore(storage, lg)
	s.manualSave = true
	return s
}

// Hydrate loads the persisted entry list. It must be called once before the
// cart is consulted; until then Hydrated reports false so consumers can tell
// "still loading" apart from "loaded and empty". A load failure is logged and
// leaves an empty but hydrated cart.
func (s *Store) Hydrate(ctx context.Context) {
	var entries []Entry
	if s.storage != nil {
		loaded, err := s.storage.Load(ctx)
		if err != nil {
			s.lg.Warn("cart load failed, starting empty", zap.Error(err))
		} else {
			entries = loaded
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.hydrated = true
	s.mu.Unlock()
	s.notify()
}

// Hydrated reports whether the persisted state has been loaded.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Toggle adds the product with the given quantity, or removes it when it is
// already present. The cart is a set of distinct products: adding twice never
// accumulates quantity.
func (s *Store) Toggle(p product.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	if idx := s.indexOf(p.ID); idx >= 0 {
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	} else {
		s.entries = append(s.entries, Entry{Product: p, Quantity: quantity})
	}
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.persist(snapshot)
	s.notify()
}

// Remove deletes the entry for the given product id, if present.
func (s *Store) Remove(productID string) {
	s.mu.Lock()
	idx := s.indexOf(productID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.persist(snapshot)
	s.notify()
}

// Contains reports whether the product is currently in the cart.
func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

// Items returns a copy of the current entries in insertion order.
func (s *Store) Items() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Total recomputes the cart total from the current entries on every call:
// sum of FinalPrice(price, discount) * quantity. Nothing is cached, so a
// mutated product snapshot is always reflected.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, e := range s.entries {
		unit := pricing.FinalPrice(e.Product.Price, e.Product.Discount)
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return total
}

// Clear empties the cart. Callers invoke it only after a successful
// cart-originated order commit; a failed commit must leave the cart intact.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	snapshot := s.snapshot()
	s.mu.Unlock()

	s.persist(snapshot)
	s.notify()
}

// Subscribe registers fn to be called after every cart mutation. Consumers
// re-render on notification instead of polling.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// indexOf returns the position of the product in entries, or -1.
// Caller must hold s.mu.
func (s *Store) indexOf(productID string) int {
	for i, e := range s.entries {
		if e.Product.ID == productID {
			return i
		}
	}
	return -1
}

// snapshot copies the entry list. Caller must hold s.mu.
func (s *Store) snapshot() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Flush writes the current entry list synchronously.
func (s *Store) Flush(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	s.mu.Lock()
	snapshot := s.snapshot()
	s.mu.Unlock()

	if err := s.storage.Save(ctx, snapshot); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// persist writes the snapshot in the background. Failures are logged only:
// the in-memory cart remains the source of truth for the session.
func (s *Store) persist(entries []Entry) {
	if s.storage == nil || s.manualSave {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.storage.Save(ctx, entries); err != nil {
			s.lg.Warn("cart save failed", zap.Error(err))
		}
	}()
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
