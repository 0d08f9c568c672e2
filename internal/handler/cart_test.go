package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahat-market/shop-api/internal/cache"
	"github.com/tahat-market/shop-api/internal/catalog"
	"github.com/tahat-market/shop-api/internal/domain/cart"
	"github.com/tahat-market/shop-api/internal/domain/order"
	"github.com/tahat-market/shop-api/internal/domain/product"
)

// doCart performs a cart request carrying the session cookie from a previous
// response, and returns the recorder.
func doCart(t *testing.T, h http.Handler, method, path string, body any, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if session != nil {
		req.AddCookie(session)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// newCartHandler builds routes around a custom cart storage factory, with no
// auth middleware in the way.
func newCartHandler(factory CartStorageFactory, products ...product.Product) *http.ServeMux {
	productRepo := &mockProductRepo{products: products}
	categoryRepo := &mockCategoryRepo{}
	inv := cache.NewInvalidator(noopDeleter{}, nil)
	h := New(
		Config{},
		productRepo,
		categoryRepo,
		order.NewService(&mockOrderRepo{}),
		catalog.NewService(productRepo, categoryRepo, inv),
		factory,
	)
	return h.Routes(func(next http.Handler) http.Handler { return next })
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cartSessionCookie {
			return c
		}
	}
	t.Fatal("cart session cookie not set")
	return nil
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetCartEmpty(t *testing.T) {
	f := newFixture()

	w := doCart(t, f.mux, http.MethodGet, "/api/cart", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeCart(t, w)
	assert.True(t, resp.Hydrated)
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.Total)
	sessionCookie(t, w)
}

func TestToggleCartAdds(t *testing.T) {
	f := newFixture(phoneX())

	w := doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 2}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeCart(t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "phone-x", resp.Items[0].Product.Slug)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.Equal(t, float64(90000), resp.Total)
}

func TestToggleCartRemovesOnSecondToggle(t *testing.T) {
	f := newFixture(phoneX())

	w := doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 1}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := sessionCookie(t, w)

	w = doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 1}, session)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeCart(t, w)
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.Total)
}

func TestToggleCartUnknownProduct(t *testing.T) {
	f := newFixture()

	w := doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "no-such"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartPersistsAcrossRequests(t *testing.T) {
	f := newFixture(phoneX())

	w := doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 3}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := sessionCookie(t, w)

	w = doCart(t, f.mux, http.MethodGet, "/api/cart", nil, session)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeCart(t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)
}

// slowCartStorage makes every save take a while, like a Redis write under
// load.
type slowCartStorage struct {
	cart.Storage
	delay time.Duration
}

func (s slowCartStorage) Save(ctx context.Context, entries []cart.Entry) error {
	time.Sleep(s.delay)
	return s.Storage.Save(ctx, entries)
}

func TestToggleCartVisibleToNextRequest(t *testing.T) {
	carts := newMemCartStore()
	mux := newCartHandler(func(sessionID string) cart.Storage {
		return slowCartStorage{Storage: carts.factory(sessionID), delay: 100 * time.Millisecond}
	}, phoneX())

	w := doCart(t, mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 1}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeCart(t, w).Items, 1)
	session := sessionCookie(t, w)

	w = doCart(t, mux, http.MethodGet, "/api/cart", nil, session)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeCart(t, w)
	require.Len(t, resp.Items, 1, "acknowledged toggle must be visible to the next request")
	assert.Equal(t, "phone-x", resp.Items[0].Product.Slug)
}

type failingCartStorage struct{}

func (failingCartStorage) Load(context.Context) ([]cart.Entry, error) { return nil, nil }

func (failingCartStorage) Save(context.Context, []cart.Entry) error { return assert.AnError }

func TestToggleCartSaveFailure(t *testing.T) {
	mux := newCartHandler(func(string) cart.Storage { return failingCartStorage{} }, phoneX())

	w := doCart(t, mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 1}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "lost mutation must not be acknowledged")
}

func TestCartTotalUsesDiscountedPrice(t *testing.T) {
	p := phoneX()
	p.Discount = decimal.NullDecimal{Decimal: decimal.RequireFromString("40000"), Valid: true}
	f := newFixture(p)

	w := doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 2}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeCart(t, w)
	assert.Equal(t, float64(80000), resp.Total)
}

func TestClearCart(t *testing.T) {
	f := newFixture(phoneX())

	w := doCart(t, f.mux, http.MethodPost, "/api/cart/toggle", toggleRequest{Slug: "phone-x", Quantity: 1}, nil)
	session := sessionCookie(t, w)

	w = doCart(t, f.mux, http.MethodDelete, "/api/cart", nil, session)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, w).Items)

	w = doCart(t, f.mux, http.MethodGet, "/api/cart", nil, session)
	assert.Empty(t, decodeCart(t, w).Items)
}
