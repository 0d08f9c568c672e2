package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tahat-market/shop-api/internal/catalog"
	"github.com/tahat-market/shop-api/internal/domain/pricing"
	"github.com/tahat-market/shop-api/internal/domain/product"
)

// --- Response DTOs ---

type imageResponse struct {
	URL       string `json:"url"`
	StorageID string `json:"storageId"`
}

type featureResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type productResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Slug           string            `json:"slug"`
	Mark           string            `json:"mark"`
	Description    string            `json:"description"`
	Price          float64           `json:"price"`
	Discount       *float64          `json:"discount,omitempty"`
	FinalPrice     float64           `json:"finalPrice"`
	IsFeatured     bool              `json:"isFeatured"`
	ShowInCarousel bool              `json:"showInCarousel"`
	CategoryID     string            `json:"categoryId,omitempty"`
	Images         []imageResponse   `json:"images"`
	Features       []featureResponse `json:"features"`
}

type categoryResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	IsFeatured bool   `json:"isFeatured"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

func (h *Handler) toProductResponse(p product.Product) productResponse {
	resp := productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Slug:           p.Slug,
		Mark:           p.Mark,
		Description:    p.Description,
		Price:          p.Price.InexactFloat64(),
		FinalPrice:     pricing.FinalPrice(p.Price, p.Discount).InexactFloat64(),
		IsFeatured:     p.IsFeatured,
		ShowInCarousel: p.ShowInCarousel,
		CategoryID:     p.CategoryID,
		Images:         make([]imageResponse, len(p.Images)),
		Features:       make([]featureResponse, len(p.Features)),
	}
	if p.Discount.Valid {
		d := p.Discount.Decimal.InexactFloat64()
		resp.Discount = &d
	}
	for i, img := range p.Images {
		resp.Images[i] = imageResponse{URL: h.imageURL(img.URL), StorageID: img.StorageID}
	}
	for i, f := range p.Features {
		resp.Features[i] = featureResponse{Name: f.Name, Value: f.Value}
	}
	return resp
}

// imageURL prefixes relative paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(path, "/")
}

// --- Public reads ---

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		internalError(w, r, "list products", err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		internalError(w, r, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		internalError(w, r, "list categories", err)
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = categoryResponse{
			ID:         c.ID,
			Name:       c.Name,
			Slug:       c.Slug,
			IsFeatured: c.IsFeatured,
			ImageURL:   c.ImageURL,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// homepage returns the landing page product sets: the featured grid plus the
// carousel.
func (h *Handler) homepage(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListHomepage(r.Context())
	if err != nil {
		internalError(w, r, "list homepage products", err)
		return
	}

	// Marshal empty sections as [] rather than null.
	featured := make([]productResponse, 0)
	carousel := make([]productResponse, 0)
	for _, p := range products {
		resp := h.toProductResponse(p)
		if p.IsFeatured {
			featured = append(featured, resp)
		}
		if p.ShowInCarousel {
			carousel = append(carousel, resp)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"featured": featured,
		"carousel": carousel,
	})
}

// --- Admin mutations ---

type featureRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// productRequest mirrors the admin form payload: the complete desired image
// list as parallel url/storage-id arrays, and the complete feature list.
type productRequest struct {
	Name           string           `json:"name"`
	Mark           string           `json:"mark"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	Discount       *decimal.Decimal `json:"discount"`
	IsFeatured     bool             `json:"isFeatured"`
	ShowInCarousel bool             `json:"showInCarousel"`
	Category       string           `json:"category"`
	ImageURLs      []string         `json:"imageUrls"`
	CloudIDs       []string         `json:"cloudIds"`
	Features       []featureRequest `json:"features"`
}

func (req productRequest) toInput() (catalog.Input, bool) {
	if len(req.ImageURLs) != len(req.CloudIDs) {
		return catalog.Input{}, false
	}

	in := catalog.Input{
		Name:           req.Name,
		Mark:           req.Mark,
		Description:    req.Description,
		Price:          req.Price,
		IsFeatured:     req.IsFeatured,
		ShowInCarousel: req.ShowInCarousel,
		Category:       req.Category,
		Images:         make([]catalog.ImageInput, len(req.ImageURLs)),
		Features:       make([]catalog.FeatureInput, len(req.Features)),
	}
	if req.Discount != nil {
		in.Discount = decimal.NullDecimal{Decimal: *req.Discount, Valid: true}
	}
	for i, url := range req.ImageURLs {
		in.Images[i] = catalog.ImageInput{URL: url, StorageID: req.CloudIDs[i]}
	}
	for i, f := range req.Features {
		in.Features[i] = catalog.FeatureInput{Name: f.Name, Value: f.Value}
	}
	return in, true
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, ok := req.toInput()
	if !ok {
		writeFieldErrors(w, map[string]string{"cloudIds": "must pair one storage id with every image url"})
		return
	}

	if err := h.catalog.Create(r.Context(), in); err != nil {
		h.writeCatalogError(w, r, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, successResponse{Success: true})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, ok := req.toInput()
	if !ok {
		writeFieldErrors(w, map[string]string{"cloudIds": "must pair one storage id with every image url"})
		return
	}

	if err := h.catalog.Update(r.Context(), r.PathValue("id"), in); err != nil {
		h.writeCatalogError(w, r, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeCatalogError(w, r, "delete product", err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type categoryRequest struct {
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl"`
	IsFeatured bool   `json:"isFeatured"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.catalog.CreateCategory(r.Context(), req.Name, req.ImageURL, req.IsFeatured); err != nil {
		h.writeCatalogError(w, r, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, successResponse{Success: true})
}

// writeCatalogError maps catalog errors onto HTTP responses. Unexpected
// failures degrade to a generic message with the cause logged.
func (h *Handler) writeCatalogError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var vErr *catalog.ValidationError
	switch {
	case errors.As(err, &vErr):
		fields := make(map[string]string, len(vErr.Fields))
		for _, f := range vErr.Fields {
			fields[f.Field] = f.Message
		}
		writeFieldErrors(w, fields)
	case errors.Is(err, product.ErrCategoryNotFound):
		writeError(w, http.StatusUnprocessableEntity, "category not found")
	case errors.Is(err, product.ErrSlugTaken):
		writeError(w, http.StatusConflict, "a product with this name already exists")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	default:
		internalError(w, r, op, err)
	}
}
