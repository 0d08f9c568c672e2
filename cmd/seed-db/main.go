// Command seed-db loads categories and products from a JSON file into the
// database and registers the default admin API key. Existing rows are left
// alone: slugs that already exist are skipped, so the tool is safe to re-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tahat-market/shop-api/internal/domain/auth"
	"github.com/tahat-market/shop-api/internal/domain/product"
	"github.com/tahat-market/shop-api/internal/repository"
)

type seedFile struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
}

type categoryJSON struct {
	Name       string `json:"name"`
	IsFeatured bool   `json:"isFeatured"`
	ImageURL   string `json:"imageUrl"`
}

type productJSON struct {
	Name           string               `json:"name"`
	Mark           string               `json:"mark"`
	Description    string               `json:"description"`
	Price          decimal.Decimal      `json:"price"`
	Discount       *decimal.Decimal     `json:"discount,omitempty"`
	Category       string               `json:"category"`
	IsFeatured     bool                 `json:"isFeatured"`
	ShowInCarousel bool                 `json:"showInCarousel"`
	Images         []productImageJSON   `json:"images"`
	Features       []productFeatureJSON `json:"features"`
}

type productImageJSON struct {
	URL       string `json:"url"`
	StorageID string `json:"storageId"`
}

type productFeatureJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or TAHAT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or TAHAT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("TAHAT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or TAHAT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("TAHAT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	categories := repository.NewCategoryRepository(pool)
	products := repository.NewProductRepository(pool)

	categoryIDs, err := seedCategories(ctx, categories, seed.Categories)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, products, categoryIDs, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

// seedCategories inserts missing categories and returns a slug -> id map
// covering both inserted and pre-existing rows.
func seedCategories(ctx context.Context, repo *repository.CategoryRepository, categories []categoryJSON) (map[string]string, error) {
	ids := make(map[string]string, len(categories))

	for _, c := range categories {
		cat := &product.Category{
			ID:         uuid.NewString(),
			Name:       c.Name,
			Slug:       product.Slugify(c.Name),
			IsFeatured: c.IsFeatured,
			ImageURL:   c.ImageURL,
		}

		err := repo.Create(ctx, cat)
		switch {
		case err == nil:
			slog.Info("created category", slog.String("slug", cat.Slug))
		case errors.Is(err, product.ErrSlugTaken):
			existing, getErr := repo.GetBySlug(ctx, cat.Slug)
			if getErr != nil {
				return nil, errors.Wrapf(getErr, "resolve existing category %s", cat.Slug)
			}
			cat.ID = existing.ID
			slog.Info("category exists, skipping", slog.String("slug", cat.Slug))
		default:
			return nil, errors.Wrapf(err, "create category %s", cat.Slug)
		}

		ids[cat.Slug] = cat.ID
	}

	return ids, nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, categoryIDs map[string]string, products []productJSON) error {
	slog.Info("seeding products", slog.Int("count", len(products)))

	for _, p := range products {
		categoryID, ok := categoryIDs[p.Category]
		if !ok {
			return errors.Errorf("product %q references unknown category %q", p.Name, p.Category)
		}

		prod := &product.Product{
			ID:             uuid.NewString(),
			Name:           p.Name,
			Slug:           product.Slugify(p.Name),
			Mark:           p.Mark,
			Description:    p.Description,
			Price:          p.Price,
			IsFeatured:     p.IsFeatured,
			ShowInCarousel: p.ShowInCarousel,
			CategoryID:     categoryID,
		}
		if p.Discount != nil {
			prod.Discount = decimal.NewNullDecimal(*p.Discount)
		}
		for _, img := range p.Images {
			prod.Images = append(prod.Images, product.Image{URL: img.URL, StorageID: img.StorageID})
		}
		for _, f := range p.Features {
			prod.Features = append(prod.Features, product.Feature{Name: f.Name, Value: f.Value})
		}

		err := repo.Create(ctx, prod)
		switch {
		case err == nil:
			slog.Info("created product", slog.String("slug", prod.Slug))
		case errors.Is(err, product.ErrSlugTaken):
			slog.Info("product exists, skipping", slog.String("slug", prod.Slug))
		default:
			return errors.Wrapf(err, "create product %s", prod.Slug)
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	info := &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    "Default admin key",
		Scopes:  []string{"catalog_write"},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}
