// Command catalog-ingest imports supplier product feeds into the database.
//
// Feeds are gzip-compressed JSON-lines files, one product per line. Suppliers
// routinely ship overlapping assortments, so the importer makes two passes:
// the first streams every feed concurrently and builds one bloom filter of
// slugs per file, the second uses the filters to detect slugs claimed by more
// than one feed. Conflicting slugs are skipped and reported rather than
// letting whichever feed happens to load last win.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tahat-market/shop-api/internal/domain/product"
	"github.com/tahat-market/shop-api/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type feedRow struct {
	Name           string           `json:"name"`
	Mark           string           `json:"mark"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	Discount       *decimal.Decimal `json:"discount,omitempty"`
	Category       string           `json:"category"`
	IsFeatured     bool             `json:"isFeatured"`
	ShowInCarousel bool             `json:"showInCarousel"`
	Images         []struct {
		URL       string `json:"url"`
		StorageID string `json:"storageId"`
	} `json:"images"`
	Features []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"features"`
}

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing *.jsonl.gz supplier feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(feedDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds found in %s", feedDir)
	}

	slog.Info("pass 1: building slug filters", slog.Int("feeds", len(files)))

	filters, err := buildSlugFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build slug filters")
	}

	slog.Info("pass 2: resolving cross-feed conflicts")

	conflicts, err := findConflictingSlugs(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find conflicting slugs")
	}

	slog.Info("conflicting slugs", slog.Int("count", len(conflicts)))

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	imp := &importer{
		products:    repository.NewProductRepository(pool),
		categories:  repository.NewCategoryRepository(pool),
		categoryIDs: make(map[string]string),
		conflicts:   conflicts,
	}

	for _, f := range files {
		if err := imp.importFeed(ctx, f); err != nil {
			return errors.Wrapf(err, "import feed %s", f)
		}
	}

	slog.Info("import summary",
		slog.Uint64("created", imp.created),
		slog.Uint64("skipped_existing", imp.skippedExisting),
		slog.Uint64("skipped_conflict", imp.skippedConflict),
		slog.Uint64("skipped_bad_row", imp.skippedBadRow),
	)

	return nil
}

// buildSlugFilters streams every feed concurrently and builds one bloom
// filter of product slugs per file.
func buildSlugFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamFeed(ctx, f, func(row feedRow) {
				filter.AddString(product.Slugify(row.Name))
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("feed", i+1), slog.Uint64("rows", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "filter feed %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("feed", i+1), slog.Uint64("rows", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findConflictingSlugs re-streams each feed and tests its slugs against the
// OTHER feeds' filters. A slug confirmed in two or more feeds is a conflict.
// Bloom false positives can only flag extra conflicts, never lose a product
// silently to the wrong supplier, which is the acceptable direction.
func findConflictingSlugs(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)

			err := streamFeed(ctx, f, func(row feedRow) {
				slug := product.Slugify(row.Name)
				for j, filter := range filters {
					if j == i {
						continue
					}
					if filter.TestString(slug) {
						candidates[slug] |= fileBit
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan feed %d", i+1)
			}

			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for slug, mask := range r {
			merged[slug] |= mask
		}
	}

	conflicts := make(map[string]struct{})
	for slug, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts[slug] = struct{}{}
		}
	}
	return conflicts, nil
}

// streamFeed opens a gzip-compressed JSON-lines feed and calls fn per row.
func streamFeed(ctx context.Context, path string, fn func(row feedRow)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var row feedRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			slog.Warn("skipping malformed row", slog.String("feed", path), slog.String("error", err.Error()))
			continue
		}
		fn(row)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

type productCreator interface {
	Create(ctx context.Context, p *product.Product) error
}

type categoryFinder interface {
	GetBySlug(ctx context.Context, slug string) (*product.Category, error)
}

type importer struct {
	products    productCreator
	categories  categoryFinder
	categoryIDs map[string]string
	conflicts   map[string]struct{}

	created         uint64
	skippedExisting uint64
	skippedConflict uint64
	skippedBadRow   uint64
}

func (imp *importer) importFeed(ctx context.Context, path string) error {
	slog.Info("importing feed", slog.String("path", path))

	return streamFeed(ctx, path, func(row feedRow) {
		slug := product.Slugify(row.Name)
		if _, ok := imp.conflicts[slug]; ok {
			imp.skippedConflict++
			return
		}

		categoryID, err := imp.resolveCategory(ctx, row.Category)
		if err != nil {
			slog.Warn("skipping row with unknown category",
				slog.String("slug", slug), slog.String("category", row.Category))
			imp.skippedBadRow++
			return
		}

		prod := &product.Product{
			ID:             uuid.NewString(),
			Name:           row.Name,
			Slug:           slug,
			Mark:           row.Mark,
			Description:    row.Description,
			Price:          row.Price,
			IsFeatured:     row.IsFeatured,
			ShowInCarousel: row.ShowInCarousel,
			CategoryID:     categoryID,
		}
		if row.Discount != nil {
			prod.Discount = decimal.NewNullDecimal(*row.Discount)
		}
		for _, img := range row.Images {
			prod.Images = append(prod.Images, product.Image{URL: img.URL, StorageID: img.StorageID})
		}
		for _, ft := range row.Features {
			prod.Features = append(prod.Features, product.Feature{Name: ft.Name, Value: ft.Value})
		}

		switch err := imp.products.Create(ctx, prod); {
		case err == nil:
			imp.created++
		case errors.Is(err, product.ErrSlugTaken):
			imp.skippedExisting++
		default:
			slog.Error("create product", slog.String("slug", slug), slog.String("error", err.Error()))
			imp.skippedBadRow++
		}
	})
}

// resolveCategory maps a feed category value to its id. Suppliers export the
// value in whatever form they like ("Olive Oil", "olive-oil"), so it is
// slugified first, same as the admin path.
func (imp *importer) resolveCategory(ctx context.Context, name string) (string, error) {
	slug := product.Slugify(name)
	if id, ok := imp.categoryIDs[slug]; ok {
		return id, nil
	}
	cat, err := imp.categories.GetBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	imp.categoryIDs[slug] = cat.ID
	return cat.ID, nil
}
