package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"

	"github.com/tahat-market/shop-api/internal/domain/cart"
	"github.com/tahat-market/shop-api/internal/domain/product"
)

const cartSessionCookie = "cart_session"

type cartEntryResponse struct {
	Product  productResponse `json:"product"`
	Quantity int             `json:"quantity"`
}

type cartResponse struct {
	Hydrated bool                `json:"hydrated"`
	Items    []cartEntryResponse `json:"items"`
	Total    float64             `json:"total"`
}

type toggleRequest struct {
	Slug     string `json:"slug"`
	Quantity int    `json:"quantity"`
}

// sessionCart resolves the cart session from the request cookie, creating a
// new session when none exists, and returns the hydrated store for it.
func (h *Handler) sessionCart(w http.ResponseWriter, r *http.Request) *cart.Store {
	var sessionID string
	if c, err := r.Cookie(cartSessionCookie); err == nil && c.Value != "" {
		sessionID = c.Value
	} else {
		sessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cartSessionCookie,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int((30 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	store := cart.NewRequestStore(h.carts(sessionID), zctx.From(r.Context()))
	store.Hydrate(r.Context())
	return store
}

func (h *Handler) toCartResponse(store *cart.Store) cartResponse {
	entries := store.Items()
	resp := cartResponse{
		Hydrated: store.Hydrated(),
		Items:    make([]cartEntryResponse, len(entries)),
		Total:    store.Total().InexactFloat64(),
	}
	for i, e := range entries {
		resp.Items[i] = cartEntryResponse{
			Product:  h.toProductResponse(e.Product),
			Quantity: e.Quantity,
		}
	}
	return resp
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	store := h.sessionCart(w, r)
	writeJSON(w, http.StatusOK, h.toCartResponse(store))
}

// toggleCart adds the product to the session cart, or removes it when it is
// already there. The response carries the resulting cart state.
func (h *Handler) toggleCart(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.products.GetBySlug(r.Context(), req.Slug)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, "resolve cart product", err)
		return
	}

	store := h.sessionCart(w, r)
	store.Toggle(*p, req.Quantity)
	// The store dies with this request, so the save must land before the
	// mutation is acknowledged.
	if err := store.Flush(r.Context()); err != nil {
		internalError(w, r, "persist cart", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(store))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	store := h.sessionCart(w, r)
	store.Clear()
	if err := store.Flush(r.Context()); err != nil {
		internalError(w, r, "persist cart", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(store))
}
