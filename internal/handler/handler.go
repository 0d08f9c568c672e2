// Package handler exposes the HTTP API: public catalog reads and order
// placement, plus API-key protected admin product mutations.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tahat-market/shop-api/internal/catalog"
	"github.com/tahat-market/shop-api/internal/domain/cart"
	"github.com/tahat-market/shop-api/internal/domain/order"
	"github.com/tahat-market/shop-api/internal/domain/product"
)

// CartStorageFactory returns the persistence slot for one cart session.
type CartStorageFactory func(sessionID string) cart.Storage

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in responses. When
	// empty, paths are returned as stored.
	ImageBaseURL string
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	products     product.Repository
	categories   product.CategoryRepository
	orders       *order.Service
	catalog      *catalog.Service
	carts        CartStorageFactory
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	categories product.CategoryRepository,
	orders *order.Service,
	catalogSvc *catalog.Service,
	carts CartStorageFactory,
) *Handler {
	return &Handler{
		products:     products,
		categories:   categories,
		orders:       orders,
		catalog:      catalogSvc,
		carts:        carts,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
	}
}

// Routes registers all API endpoints on a new mux. The admin routes must be
// wrapped with the API key middleware by the caller.
func (h *Handler) Routes(requireKey func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{slug}", h.getProduct)
	mux.HandleFunc("GET /api/categories", h.listCategories)
	mux.HandleFunc("GET /api/home", h.homepage)
	mux.HandleFunc("POST /api/orders", h.createOrder)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/toggle", h.toggleCart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)

	mux.Handle("POST /api/products", requireKey(http.HandlerFunc(h.createProduct)))
	mux.Handle("PUT /api/products/{id}", requireKey(http.HandlerFunc(h.updateProduct)))
	mux.Handle("DELETE /api/products/{id}", requireKey(http.HandlerFunc(h.deleteProduct)))
	mux.Handle("POST /api/categories", requireKey(http.HandlerFunc(h.createCategory)))

	return mux
}

// errorBody is the uniform JSON error shape.
type errorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Success: false, Message: message})
}

// writeFieldErrors surfaces validation failures as field-level messages.
func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Success: false,
		Message: "validation failed",
		Fields:  fields,
	})
}

// internalError logs the cause and answers with a generic failure: storage
// detail never leaks to the caller.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
