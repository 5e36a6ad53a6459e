package cache

import (
	"context"
	"errors"

	"github.com/fjod/pawmart/internal/domain"
)

// CartCache caches the lines of each user's cart. Products are never cached with them, callers
// join live product data after Get.
//
// Writers call Delete after changing a cart, which also bumps the cart's version. Readers take
// Version before loading the cart from the database and pass it to Set, so a fill that raced
// with a write is dropped instead of stored.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Version(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, version int64, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
