// Package catalog implements the admin-side product mutation path: create,
// update, and delete of products together with the all-or-nothing replacement
// of their image and feature collections, followed by page-cache
// invalidation.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tahat-market/shop-api/internal/cache"
	"github.com/tahat-market/shop-api/internal/domain/pricing"
	"github.com/tahat-market/shop-api/internal/domain/product"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries every field-level failure found in a mutation
// input. It is returned before any storage access.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid product: " + strings.Join(msgs, "; ")
}

// ImageInput references one uploaded image. The upload itself happens in the
// external image store before the mutation is submitted; the catalog only
// receives the resulting url and storage id.
type ImageInput struct {
	URL       string
	StorageID string
}

// FeatureInput is one name/value specification pair.
type FeatureInput struct {
	Name  string
	Value string
}

// Input holds the parent fields plus the complete desired image and feature
// lists for a product mutation. The stored collections are replaced to match
// exactly, never merged.
type Input struct {
	Name           string
	Mark           string
	Description    string
	Price          decimal.Decimal
	Discount       decimal.NullDecimal
	IsFeatured     bool
	ShowInCarousel bool
	Category       string // category name or slug; empty means uncategorized
	Images         []ImageInput
	Features       []FeatureInput
}

// Service coordinates product mutations: validation, category resolution, the
// transactional write, and post-commit cache invalidation.
type Service struct {
	products    product.Repository
	categories  product.CategoryRepository
	invalidator *cache.Invalidator
}

// NewService creates a catalog Service.
func NewService(
	products product.Repository,
	categories product.CategoryRepository,
	invalidator *cache.Invalidator,
) *Service {
	return &Service{
		products:    products,
		categories:  categories,
		invalidator: invalidator,
	}
}

// Create inserts a new product with its image and feature collections in one
// transaction. The category must resolve: creation with an unknown category
// fails cleanly with product.ErrCategoryNotFound and persists nothing. A name
// that slugifies to an existing slug is rejected with product.ErrSlugTaken.
func (s *Service) Create(ctx context.Context, in Input) error {
	if err := validate(in); err != nil {
		return err
	}

	categorySlug := product.Slugify(in.Category)
	cat, err := s.categories.GetBySlug(ctx, categorySlug)
	if err != nil {
		if errors.Is(err, product.ErrCategoryNotFound) {
			return product.ErrCategoryNotFound
		}
		return errors.Wrap(err, "resolve category")
	}

	p := buildProduct(uuid.New().String(), in)
	p.Slug = product.Slugify(in.Name)
	p.CategoryID = cat.ID

	if err := s.products.Create(ctx, p); err != nil {
		return errors.Wrap(err, "create product")
	}

	s.invalidator.Invalidate(ctx, cache.Refresh{
		ProductSlug:  p.Slug,
		CategorySlug: categorySlug,
		Homepage:     p.HomepageVisible(),
	})
	return nil
}

// Update replaces the product's parent fields and rewrites both dependent
// collections atomically. An unresolvable category is not fatal here: the
// category reference is simply left unset. The product's slug never changes
// on update.
func (s *Service) Update(ctx context.Context, id string, in Input) error {
	if err := validate(in); err != nil {
		return err
	}

	existing, err := s.products.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "load product")
	}

	categorySlug := product.Slugify(in.Category)
	categoryID := ""
	if cat, err := s.categories.GetBySlug(ctx, categorySlug); err == nil {
		categoryID = cat.ID
	} else if !errors.Is(err, product.ErrCategoryNotFound) {
		return errors.Wrap(err, "resolve category")
	}

	p := buildProduct(id, in)
	p.Slug = existing.Slug
	p.CategoryID = categoryID

	if err := s.products.Update(ctx, p); err != nil {
		return errors.Wrap(err, "update product")
	}

	s.invalidator.Invalidate(ctx, cache.Refresh{
		ProductSlug:  existing.Slug,
		CategorySlug: categorySlug,
		Homepage:     p.HomepageVisible(),
	})
	return nil
}

// Delete removes the product; the storage layer cascades the dependent rows.
// The slugs and homepage visibility are captured before the delete so the
// right cache entries can be invalidated afterwards.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.products.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "load product")
	}

	categorySlug := ""
	if existing.CategoryID != "" {
		if cat, err := s.categories.GetByID(ctx, existing.CategoryID); err == nil {
			categorySlug = cat.Slug
		}
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}

	s.invalidator.Invalidate(ctx, cache.Refresh{
		ProductSlug:  existing.Slug,
		CategorySlug: categorySlug,
		Homepage:     existing.HomepageVisible(),
	})
	return nil
}

// CreateCategory inserts a new category with a slug derived from its name.
func (s *Service) CreateCategory(ctx context.Context, name, imageURL string, isFeatured bool) error {
	if len(strings.TrimSpace(name)) < 2 {
		return &ValidationError{Fields: []FieldError{{Field: "name", Message: "must be at least 2 characters"}}}
	}

	c := &product.Category{
		ID:         uuid.New().String(),
		Name:       name,
		Slug:       product.Slugify(name),
		IsFeatured: isFeatured,
		ImageURL:   imageURL,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return errors.Wrap(err, "create category")
	}
	return nil
}

func buildProduct(id string, in Input) *product.Product {
	images := make([]product.Image, len(in.Images))
	for i, img := range in.Images {
		images[i] = product.Image{URL: img.URL, StorageID: img.StorageID}
	}
	features := make([]product.Feature, len(in.Features))
	for i, f := range in.Features {
		features[i] = product.Feature{Name: f.Name, Value: f.Value}
	}

	return &product.Product{
		ID:             id,
		Name:           in.Name,
		Mark:           in.Mark,
		Description:    in.Description,
		Price:          in.Price,
		Discount:       in.Discount,
		IsFeatured:     in.IsFeatured,
		ShowInCarousel: in.ShowInCarousel,
		Images:         images,
		Features:       features,
	}
}

func validate(in Input) error {
	var fields []FieldError
	add := func(field, msg string) {
		fields = append(fields, FieldError{Field: field, Message: msg})
	}

	if len(strings.TrimSpace(in.Name)) < 2 {
		add("name", "must be at least 2 characters")
	}
	if len(strings.TrimSpace(in.Mark)) < 2 {
		add("mark", "must be at least 2 characters")
	}
	if len(strings.TrimSpace(in.Description)) < 10 {
		add("description", "must be at least 10 characters")
	}
	if !in.Price.IsPositive() {
		add("price", "must be positive")
	}
	// A set discount is an absolute final price and must stay below the base
	// price; a negative final price is never representable.
	if !pricing.ValidDiscount(in.Price, in.Discount) {
		add("discount", "must be between 0 and the price")
	}

	for i, img := range in.Images {
		if img.URL == "" {
			add(fmt.Sprintf("images[%d].url", i), "required")
		}
		if img.StorageID == "" {
			add(fmt.Sprintf("images[%d].storageId", i), "required")
		}
	}
	for i, f := range in.Features {
		if f.Name == "" {
			add(fmt.Sprintf("features[%d].name", i), "required")
		}
		if f.Value == "" {
			add(fmt.Sprintf("features[%d].value", i), "required")
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
