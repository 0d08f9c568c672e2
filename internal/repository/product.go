package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tahat-market/shop-api/internal/domain/product"
)

const (
	productColumns = `id, name, slug, mark, description, price, discount,
		is_featured, show_in_carousel, COALESCE(category_id::text, ''), created_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listProductsByCategorySQL = `SELECT ` + productColumns + ` FROM products
		WHERE category_id = $1 ORDER BY created_at DESC`

	listHomepageProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_featured OR show_in_carousel ORDER BY created_at DESC`

	listImagesSQL = `SELECT url, storage_id FROM product_images
		WHERE product_id = $1 ORDER BY position`

	listFeaturesSQL = `SELECT name, value FROM product_features WHERE product_id = $1`

	insertProductSQL = `INSERT INTO products
		(id, name, slug, mark, description, price, discount, is_featured, show_in_carousel, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid)`

	updateProductSQL = `UPDATE products SET
		name = $2, mark = $3, description = $4, price = $5, discount = $6,
		is_featured = $7, show_in_carousel = $8, category_id = NULLIF($9, '')::uuid
		WHERE id = $1`

	deleteImagesSQL   = `DELETE FROM product_images WHERE product_id = $1`
	insertImageSQL    = `INSERT INTO product_images (id, product_id, url, storage_id, position) VALUES ($1, $2, $3, $4, $5)`
	deleteFeaturesSQL = `DELETE FROM product_features WHERE product_id = $1`
	insertFeatureSQL  = `INSERT INTO product_features (id, product_id, name, value) VALUES ($1, $2, $3, $4)`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products, newest first, without their dependent collections.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListByCategory returns the products of one category, newest first.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsByCategorySQL, categoryID)
	if err != nil {
		return nil, errors.Wrap(err, "list products by category")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListHomepage returns the products shown on the landing page: featured ones
// plus those in the carousel.
func (r *ProductRepository) ListHomepage(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listHomepageProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list homepage products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetBySlug returns one product with its image and feature collections.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

// GetByID returns one product with its image and feature collections.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

func (r *ProductRepository) getOne(ctx context.Context, sql, arg string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}

	if p.Images, err = r.listImages(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.Features, err = r.listFeatures(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) listImages(ctx context.Context, productID string) ([]product.Image, error) {
	rows, err := r.pool.Query(ctx, listImagesSQL, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list product images")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Image, error) {
		var img product.Image
		err := row.Scan(&img.URL, &img.StorageID)
		return img, err
	})
}

func (r *ProductRepository) listFeatures(ctx context.Context, productID string) ([]product.Feature, error) {
	rows, err := r.pool.Query(ctx, listFeaturesSQL, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list product features")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Feature, error) {
		var f product.Feature
		err := row.Scan(&f.Name, &f.Value)
		return f, err
	})
}

// Create inserts the parent row and both dependent collections in one
// transaction. A slug collision surfaces as product.ErrSlugTaken with nothing
// persisted.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertProductSQL,
			p.ID, p.Name, p.Slug, p.Mark, p.Description,
			p.Price, nullDecimal(p.Discount),
			p.IsFeatured, p.ShowInCarousel, p.CategoryID,
		)
		if err != nil {
			return errors.Wrap(err, "insert product")
		}
		return replaceCollections(ctx, tx, p)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrSlugTaken
		}
		return errors.Wrap(err, "create product")
	}
	return nil
}

// Update rewrites the parent row and fully replaces the image and feature
// collections inside one transaction: after commit the stored sets equal the
// submitted sets exactly, and a failure anywhere leaves the previous state
// untouched.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateProductSQL,
			p.ID, p.Name, p.Mark, p.Description,
			p.Price, nullDecimal(p.Discount),
			p.IsFeatured, p.ShowInCarousel, p.CategoryID,
		)
		if err != nil {
			return errors.Wrap(err, "update product")
		}
		if tag.RowsAffected() == 0 {
			return product.ErrNotFound
		}
		return replaceCollections(ctx, tx, p)
	})
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return product.ErrNotFound
		}
		return errors.Wrap(err, "update product")
	}
	return nil
}

// Delete removes the parent row; dependent rows cascade at the storage level.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// replaceCollections deletes every image and feature row of the product and
// inserts the submitted sets, preserving image order by position.
func replaceCollections(ctx context.Context, tx pgx.Tx, p *product.Product) error {
	if _, err := tx.Exec(ctx, deleteImagesSQL, p.ID); err != nil {
		return errors.Wrap(err, "delete images")
	}
	for i, img := range p.Images {
		_, err := tx.Exec(ctx, insertImageSQL, uuid.New().String(), p.ID, img.URL, img.StorageID, i)
		if err != nil {
			return errors.Wrap(err, "insert image")
		}
	}

	if _, err := tx.Exec(ctx, deleteFeaturesSQL, p.ID); err != nil {
		return errors.Wrap(err, "delete features")
	}
	for _, f := range p.Features {
		_, err := tx.Exec(ctx, insertFeatureSQL, uuid.New().String(), p.ID, f.Name, f.Value)
		if err != nil {
			return errors.Wrap(err, "insert feature")
		}
	}
	return nil
}

// nullDecimal maps an unset discount to SQL NULL.
func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p        product.Product
		discount *decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Mark, &p.Description,
		&p.Price, &discount,
		&p.IsFeatured, &p.ShowInCarousel, &p.CategoryID, &p.CreatedAt,
	)
	if discount != nil {
		p.Discount = decimal.NullDecimal{Decimal: *discount, Valid: true}
	}
	return p, err
}
