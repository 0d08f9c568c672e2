package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tahat-market/shop-api/internal/domain/product"
)

const (
	listCategoriesSQL = `SELECT id, name, slug, is_featured, COALESCE(image_url, '')
		FROM categories ORDER BY name`

	getCategoryBySlugSQL = `SELECT id, name, slug, is_featured, COALESCE(image_url, '')
		FROM categories WHERE slug = $1`

	getCategoryByIDSQL = `SELECT id, name, slug, is_featured, COALESCE(image_url, '')
		FROM categories WHERE id = $1`

	insertCategorySQL = `INSERT INTO categories (id, name, slug, is_featured, image_url)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`
)

var _ product.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements product.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

// GetBySlug returns the category with the given slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*product.Category, error) {
	return r.getOne(ctx, getCategoryBySlugSQL, slug)
}

// GetByID returns the category with the given id.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*product.Category, error) {
	return r.getOne(ctx, getCategoryByIDSQL, id)
}

func (r *CategoryRepository) getOne(ctx context.Context, sql, arg string) (*product.Category, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get category")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrCategoryNotFound
		}
		return nil, errors.Wrap(err, "get category")
	}
	return &c, nil
}

// Create inserts a new category. A slug collision surfaces as
// product.ErrSlugTaken.
func (r *CategoryRepository) Create(ctx context.Context, c *product.Category) error {
	_, err := r.pool.Exec(ctx, insertCategorySQL, c.ID, c.Name, c.Slug, c.IsFeatured, c.ImageURL)
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrSlugTaken
		}
		return errors.Wrap(err, "create category")
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (product.Category, error) {
	var c product.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.IsFeatured, &c.ImageURL)
	return c, err
}
