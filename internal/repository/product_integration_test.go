//go:build integration

package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tahat-market/shop-api/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tahat",
				"POSTGRES_PASSWORD": "tahat",
				"POSTGRES_DB":       "tahat",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://tahat:tahat@%s:%s/tahat?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func honeyProduct() *product.Product {
	return &product.Product{
		ID:    uuid.NewString(),
		Name:  "Sidr Honey 250g",
		Slug:  "sidr-honey-250g",
		Price: decimal.RequireFromString("3200"),
		Images: []product.Image{
			{URL: "img/a.jpg", StorageID: "c1"},
			{URL: "img/b.jpg", StorageID: "c2"},
		},
		Features: []product.Feature{
			{Name: "Origin", Value: "Sahara"},
		},
	}
}

// A failure after the image rows have already been replaced inside the
// transaction must leave the previously committed collections untouched.
func TestUpdate_RollsBackCollectionReplaceOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewProductRepository(pool)

	orig := honeyProduct()
	require.NoError(t, repo.Create(ctx, orig))

	// Cap feature names so the feature insert, the last step of the
	// collection replace, blows up mid-transaction.
	_, err := pool.Exec(ctx, `ALTER TABLE product_features
		ADD CONSTRAINT product_features_name_len CHECK (char_length(name) <= 64)`)
	require.NoError(t, err)

	updated := *orig
	updated.Name = "Sidr Honey 250 g"
	updated.Images = []product.Image{{URL: "img/new.jpg", StorageID: "c9"}}
	updated.Features = []product.Feature{{Name: strings.Repeat("x", 65), Value: "too long"}}

	require.Error(t, repo.Update(ctx, &updated))

	got, err := repo.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sidr Honey 250g", got.Name)
	assert.Equal(t, orig.Images, got.Images, "image rows must survive the failed update")
	assert.Equal(t, orig.Features, got.Features, "feature rows must survive the failed update")
}

func TestUpdate_ReplacesCollectionsExactly(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewProductRepository(pool)

	orig := honeyProduct()
	require.NoError(t, repo.Create(ctx, orig))

	updated := *orig
	updated.Images = []product.Image{{URL: "img/front.jpg", StorageID: "c7"}}
	updated.Features = []product.Feature{
		{Name: "Origin", Value: "Sahara"},
		{Name: "Weight", Value: "250 g"},
	}
	require.NoError(t, repo.Update(ctx, &updated))

	got, err := repo.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Images, got.Images)
	assert.ElementsMatch(t, updated.Features, got.Features)
}
