package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_FreezesPricesAndTotal(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cart := &Cart{
		UserID: "user-1",
		Items: []CartItem{
			{ProductID: 1, Quantity: 2, Product: &Product{ID: 1, Name: "Kibble", Price: decimal.RequireFromString("12.50")}},
			{ProductID: 2, Quantity: 3, Product: &Product{ID: 2, Name: "Leash", Price: decimal.RequireFromString("4.99")}},
		},
	}

	snapshot, err := cart.Snapshot("usd", now)
	require.NoError(t, err)

	require.Len(t, snapshot.Items, 2)
	assert.True(t, decimal.RequireFromString("25").Equal(snapshot.Items[0].Subtotal))
	assert.True(t, decimal.RequireFromString("14.97").Equal(snapshot.Items[1].Subtotal))
	assert.True(t, decimal.RequireFromString("39.97").Equal(snapshot.TotalAmount))
	assert.Equal(t, now, snapshot.CapturedAt)

	// Later catalog changes must not leak into the snapshot
	cart.Items[0].Product.Price = decimal.RequireFromString("99")
	assert.True(t, decimal.RequireFromString("12.50").Equal(snapshot.Items[0].UnitPrice))
}

func TestSnapshot_EmptyCart(t *testing.T) {
	_, err := (&Cart{UserID: "user-1"}).Snapshot("usd", time.Now())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestSnapshot_MissingProduct(t *testing.T) {
	cart := &Cart{Items: []CartItem{{ProductID: 7, Quantity: 1}}}
	_, err := cart.Snapshot("usd", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckStock(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{ProductID: 1, Quantity: 2, Product: &Product{ID: 1, Stock: 2}},
		{ProductID: 2, Quantity: 1, Product: &Product{ID: 2, Stock: 5}},
	}}
	require.NoError(t, cart.CheckStock())

	cart.Items[0].Quantity = 3
	err := cart.CheckStock()
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "product 1")

	cart.Items[0].Product = nil
	assert.ErrorIs(t, cart.CheckStock(), ErrNotFound)
}

func TestValidQuantity(t *testing.T) {
	assert.False(t, ValidQuantity(0))
	assert.True(t, ValidQuantity(1))
	assert.True(t, ValidQuantity(MaxItemQuantity))
	assert.False(t, ValidQuantity(MaxItemQuantity+1))
}
