// Package product defines the catalog entities and their persistence
// contracts: products with their owned image and feature collections, and the
// categories that group them.
package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrCategoryNotFound is returned when a category slug resolves to nothing.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSlugTaken is returned when a new product or category name slugifies
	// to a slug that already exists.
	ErrSlugTaken = errors.New("slug already taken")
)

// Product is a catalog item. The Images and Features slices are owned
// exclusively by the product and are replaced wholesale on every edit.
type Product struct {
	ID             string
	Name           string
	Slug           string
	Mark           string
	Description    string
	Price          decimal.Decimal
	Discount       decimal.NullDecimal
	IsFeatured     bool
	ShowInCarousel bool
	CategoryID     string // empty when uncategorized
	CreatedAt      time.Time
	Images         []Image
	Features       []Feature
}

// Image is an ordered reference to an externally hosted product picture.
// StorageID identifies the object in the external image store so it can be
// released when the image is replaced.
type Image struct {
	URL       string
	StorageID string
}

// Feature is a name/value specification pair, e.g. {"RAM", "8 GB"}.
type Feature struct {
	Name  string
	Value string
}

// Category groups products. Products reference it weakly: deleting a category
// leaves its products uncategorized.
type Category struct {
	ID         string
	Name       string
	Slug       string
	IsFeatured bool
	ImageURL   string
}

// HomepageVisible reports whether the product appears on the landing page and
// therefore whether the homepage cache must be invalidated when it changes.
func (p Product) HomepageVisible() bool {
	return p.IsFeatured || p.ShowInCarousel
}

// Slugify derives the canonical URL-safe slug for a display name. The same
// name always yields the same slug.
func Slugify(name string) string {
	return slug.Make(name)
}

// Repository defines read and transactional write operations for products.
// Create and Update must replace the image and feature collections together
// with the parent row in one transaction, leaving no partial state behind on
// failure.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]Product, error)
	ListHomepage(ctx context.Context) ([]Product, error)

	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
}
