package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
)

func TestCatalogService_ReadsThroughCache(t *testing.T) {
	store := NewMemStore()
	store.AddProduct(1, "Kibble", "12.50", 10)
	views := NewMockViews()
	svc := NewCatalogService(store, views, discardLogger())

	first, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Kibble", first.Name)

	// A write straight to the store is invisible until the tag is invalidated.
	store.AddProduct(1, "Premium Kibble", "14.00", 10)
	second, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Kibble", second.Name)

	require.NoError(t, views.Invalidate(context.Background(), cache.ProductTag(1)))
	third, err := svc.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Premium Kibble", third.Name)
}

func TestCatalogService_GetProduct_NotFound(t *testing.T) {
	svc := NewCatalogService(NewMemStore(), NewMockViews(), discardLogger())

	_, err := svc.GetProduct(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogService_CreateProduct(t *testing.T) {
	store := NewMemStore()
	views := NewMockViews()
	svc := NewCatalogService(store, views, discardLogger())
	product := &domain.Product{CategoryID: 1, Name: "Bird Seed", Price: decimal.RequireFromString("3.99"), Stock: 20}

	err := svc.CreateProduct(userCtx("user-1"), product)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = svc.CreateProduct(context.Background(), product)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.CreateProduct(adminCtx(), product))
	assert.NotZero(t, product.ID)
	assert.Contains(t, views.InvalidatedTags(), cache.TagCatalog)
	assert.Contains(t, views.InvalidatedTags(), cache.ProductTag(product.ID))

	product.Price = decimal.Zero
	assert.ErrorIs(t, svc.UpdateProduct(adminCtx(), product), domain.ErrValidation)
}

func TestCatalogService_ListProducts(t *testing.T) {
	store := NewMemStore()
	store.AddProduct(2, "Chew Toy", "4.00", 1)
	store.AddProduct(1, "Kibble", "12.50", 10)
	svc := NewCatalogService(store, nil, discardLogger())

	products, err := svc.ListProducts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)

	categories, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dogs", categories[0].Slug)
}
