package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahat-market/shop-api/internal/domain/product"
)

// --- Mock storage ---

type mockStorage struct {
	mu      sync.Mutex
	loaded  []Entry
	loadErr error
	saveErr error
	saved   [][]Entry
	saveCh  chan struct{}
}

func newMockStorage() *mockStorage {
	return &mockStorage{saveCh: make(chan struct{}, 16)}
}

func (m *mockStorage) Load(_ context.Context) ([]Entry, error) {
	return m.loaded, m.loadErr
}

func (m *mockStorage) Save(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, entries)
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
	return nil
}

func (m *mockStorage) waitForSave(t *testing.T) {
	t.Helper()
	select {
	case <-m.saveCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cart save")
	}
}

func (m *mockStorage) lastSaved() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

// --- Helpers ---

func testProduct(id string, price string, discount string) product.Product {
	p := product.Product{
		ID:    id,
		Name:  "Product " + id,
		Slug:  "product-" + id,
		Price: decimal.RequireFromString(price),
	}
	if discount != "" {
		p.Discount = decimal.NullDecimal{
			Decimal: decimal.RequireFromString(discount),
			Valid:   true,
		}
	}
	return p
}

// --- Tests ---

func TestToggle_AddThenRemove(t *testing.T) {
	s := NewStore(nil, nil)
	p := testProduct("p1", "100", "")

	s.Toggle(p, 1)
	assert.True(t, s.Contains("p1"))

	// Toggling an already-present product removes it, never increments.
	s.Toggle(p, 3)
	assert.False(t, s.Contains("p1"))
	assert.Equal(t, 0, s.Len())
}

func TestToggle_SequenceReflectsLastToggle(t *testing.T) {
	s := NewStore(nil, nil)
	p := testProduct("p1", "100", "")

	for i := range 5 {
		s.Toggle(p, 1)
		assert.Equal(t, i%2 == 0, s.Contains("p1"))
	}
}

func TestToggle_DistinctProductsKeepOwnQuantities(t *testing.T) {
	s := NewStore(nil, nil)
	s.Toggle(testProduct("p1", "100", ""), 2)
	s.Toggle(testProduct("p2", "50", ""), 4)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 4, items[1].Quantity)
}

func TestRemove_AbsentProductIsNoop(t *testing.T) {
	s := NewStore(nil, nil)
	s.Toggle(testProduct("p1", "100", ""), 1)
	s.Remove("missing")
	assert.Equal(t, 1, s.Len())
}

func TestTotal_UsesFinalPrice(t *testing.T) {
	s := NewStore(nil, nil)
	// price 1000 with discount 800, qty 2 => 1600
	s.Toggle(testProduct("p1", "1000", "800"), 2)

	assert.True(t, decimal.RequireFromString("1600").Equal(s.Total()))
}

func TestTotal_RecomputedLive(t *testing.T) {
	s := NewStore(nil, nil)
	s.Toggle(testProduct("p1", "1000", "800"), 2)
	require.True(t, decimal.RequireFromString("1600").Equal(s.Total()))

	s.Toggle(testProduct("p2", "50", ""), 1)
	assert.True(t, decimal.RequireFromString("1650").Equal(s.Total()))

	s.Remove("p1")
	assert.True(t, decimal.RequireFromString("50").Equal(s.Total()))
}

func TestTotal_EmptyCartIsZero(t *testing.T) {
	s := NewStore(nil, nil)
	assert.True(t, decimal.Zero.Equal(s.Total()))
}

func TestHydrate_LoadsPersistedEntries(t *testing.T) {
	st := newMockStorage()
	st.loaded = []Entry{{Product: testProduct("p1", "100", ""), Quantity: 2}}

	s := NewStore(st, nil)
	assert.False(t, s.Hydrated())

	s.Hydrate(context.Background())
	assert.True(t, s.Hydrated())
	assert.True(t, s.Contains("p1"))
}

func TestHydrate_LoadFailureLeavesEmptyHydratedCart(t *testing.T) {
	st := newMockStorage()
	st.loadErr = assert.AnError

	s := NewStore(st, nil)
	s.Hydrate(context.Background())

	assert.True(t, s.Hydrated())
	assert.Equal(t, 0, s.Len())
}

func TestMutationsPersistSnapshot(t *testing.T) {
	st := newMockStorage()
	s := NewStore(st, nil)

	s.Toggle(testProduct("p1", "100", ""), 2)
	st.waitForSave(t)

	saved := st.lastSaved()
	require.Len(t, saved, 1)
	assert.Equal(t, "p1", saved[0].Product.ID)
	assert.Equal(t, 2, saved[0].Quantity)
}

func TestSaveFailureKeepsMemoryAuthoritative(t *testing.T) {
	st := newMockStorage()
	st.saveErr = assert.AnError

	s := NewStore(st, nil)
	s.Toggle(testProduct("p1", "100", ""), 1)

	assert.True(t, s.Contains("p1"))
}

func TestClear_EmptiesCartAndPersists(t *testing.T) {
	st := newMockStorage()
	s := NewStore(st, nil)

	s.Toggle(testProduct("p1", "100", ""), 1)
	s.Toggle(testProduct("p2", "200", ""), 1)
	s.Clear()

	// Saves run on their own goroutines, so wait for all three before
	// inspecting what was written.
	for range 3 {
		st.waitForSave(t)
	}

	assert.Equal(t, 0, s.Len())

	st.mu.Lock()
	defer st.mu.Unlock()
	var sawEmpty bool
	for _, snap := range st.saved {
		if len(snap) == 0 {
			sawEmpty = true
		}
	}
	assert.True(t, sawEmpty, "empty snapshot should be persisted after Clear")
}

func TestRequestStore_NoBackgroundSave(t *testing.T) {
	st := newMockStorage()
	s := NewRequestStore(st, nil)

	s.Toggle(testProduct("p1", "100", ""), 1)

	select {
	case <-st.saveCh:
		t.Fatal("request store must not save in the background")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, s.Flush(context.Background()))
	saved := st.lastSaved()
	require.Len(t, saved, 1)
	assert.Equal(t, "p1", saved[0].Product.ID)
}

func TestFlush_SurfacesSaveError(t *testing.T) {
	st := newMockStorage()
	st.saveErr = assert.AnError

	s := NewRequestStore(st, nil)
	s.Toggle(testProduct("p1", "100", ""), 1)

	assert.Error(t, s.Flush(context.Background()))
	assert.True(t, s.Contains("p1"))
}

func TestSubscribe_NotifiedOnEveryMutation(t *testing.T) {
	s := NewStore(nil, nil)

	var mu sync.Mutex
	calls := 0
	s.Subscribe(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.Toggle(testProduct("p1", "100", ""), 1)
	s.Remove("p1")
	s.Clear()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}
