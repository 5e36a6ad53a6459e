package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/pawmart/internal/domain"
)

func newCartFixture() (*MemStore, *MockCartCache, *CartService) {
	store := NewMemStore()
	store.AddProduct(1, "Kibble", "12.50", 10)
	cartCache := NewMockCartCache()
	return store, cartCache, NewCartService(store, store, cartCache, discardLogger())
}

func TestCartService_GetCart_FromCacheJoinsLiveProducts(t *testing.T) {
	_, cartCache, svc := newCartFixture()
	cached := &domain.Cart{UserID: "user-1", Items: []domain.CartItem{
		{ProductID: 1, Quantity: 7, Product: &domain.Product{ID: 1, Name: "Old Kibble", Price: decimal.RequireFromString("1.00")}},
		{ProductID: 9, Quantity: 1},
	}}
	require.NoError(t, cartCache.Set(context.Background(), "user-1", 0, cached))

	cart, err := svc.GetCart(userCtx("user-1"))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "lines for missing products are dropped")
	assert.Equal(t, 7, cart.Items[0].Quantity)
	require.NotNil(t, cart.Items[0].Product)
	assert.Equal(t, "Kibble", cart.Items[0].Product.Name)
	assert.Equal(t, "12.5", cart.Items[0].Product.Price.String())
}

func TestCartService_GetCart_SeesProductUpdates(t *testing.T) {
	store, cartCache, svc := newCartFixture()
	catalog := NewCatalogService(store, NewMockViews(), discardLogger())
	ctx := userCtx("user-1")
	require.NoError(t, svc.AddItem(ctx, 1, 2))

	first, err := svc.GetCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12.5", first.Items[0].Product.Price.String())
	require.True(t, cartCache.Has("user-1"))

	product, err := store.GetProduct(ctx, 1)
	require.NoError(t, err)
	product.Price = decimal.RequireFromString("99.00")
	product.Stock = 3
	require.NoError(t, catalog.UpdateProduct(adminCtx(), product))

	second, err := svc.GetCart(ctx)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "99", second.Items[0].Product.Price.String())
	assert.Equal(t, 3, second.Items[0].Product.Stock)
	assert.True(t, cartCache.Has("user-1"), "served from the cached lines")
}

func TestCartService_GetCart_DropsFillRacingWithWrite(t *testing.T) {
	store, cartCache, svc := newCartFixture()
	ctx := userCtx("user-1")
	require.NoError(t, store.AddItem(ctx, "user-1", 1, 1))

	// A write lands between the database read and the cache fill.
	cartCache.BeforeSet = func() {
		cartCache.BeforeSet = nil
		require.NoError(t, svc.AddItem(ctx, 1, 4))
	}

	stale, err := svc.GetCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Items[0].Quantity)
	assert.False(t, cartCache.Has("user-1"))

	fresh, err := svc.GetCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.Items[0].Quantity)
	assert.True(t, cartCache.Has("user-1"))
}

func TestCartService_GetCart_FallsBackOnCacheError(t *testing.T) {
	store, cartCache, svc := newCartFixture()
	cartCache.GetErr = errors.New("redis down")
	require.NoError(t, store.AddItem(context.Background(), "user-1", 1, 2))

	cart, err := svc.GetCart(userCtx("user-1"))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCartService_GetCart_Anonymous(t *testing.T) {
	_, _, svc := newCartFixture()

	_, err := svc.GetCart(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCartService_AddItem(t *testing.T) {
	store, cartCache, svc := newCartFixture()
	ctx := userCtx("user-1")
	require.NoError(t, cartCache.Set(ctx, "user-1", 0, &domain.Cart{}))

	require.NoError(t, svc.AddItem(ctx, 1, 2))
	require.NoError(t, svc.AddItem(ctx, 1, 3))

	cart, err := store.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.False(t, cartCache.Has("user-1"))
}

func TestCartService_AddItem_Invalid(t *testing.T) {
	_, _, svc := newCartFixture()
	ctx := userCtx("user-1")

	assert.ErrorIs(t, svc.AddItem(ctx, 1, 0), domain.ErrValidation)
	assert.ErrorIs(t, svc.AddItem(ctx, 1, 100), domain.ErrValidation)
	assert.ErrorIs(t, svc.AddItem(ctx, 42, 1), domain.ErrNotFound)
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	store, _, svc := newCartFixture()
	ctx := userCtx("user-1")
	require.NoError(t, svc.AddItem(ctx, 1, 1))

	require.NoError(t, svc.UpdateQuantity(ctx, 1, 4))
	cart, err := store.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 1, 0), domain.ErrValidation)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, 2, 1), domain.ErrNotFound)

	require.NoError(t, svc.RemoveItem(ctx, 1))
	assert.ErrorIs(t, svc.RemoveItem(ctx, 1), domain.ErrNotFound)

	require.NoError(t, svc.AddItem(ctx, 1, 1))
	require.NoError(t, svc.ClearCart(ctx))
	cart, err = store.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
