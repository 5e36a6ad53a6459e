package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
)

type CartService struct {
	repo     CartRepository
	products CatalogRepository
	cache    cache.CartCache
	log      *slog.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(repo CartRepository, products CatalogRepository, cache cache.CartCache, log *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		log:      log,
	}
}

// GetCart returns the caller's cart with live product data. Only the lines are cached, so
// price and stock edits show up without touching the cart cache.
func (s *CartService) GetCart(ctx context.Context) (*domain.Cart, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	userID := id.UserID

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return s.withProducts(ctx, cart)
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", slog.String("user_id", userID), slog.Any("error", err))
		}
		return s.loadCart(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// loadCart reads the cart from the database and fills the cache. The version is taken before the
// read so a concurrent write makes the fill a no-op.
func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	version, versionErr := s.cache.Version(ctx, userID)

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if versionErr != nil {
		s.log.WarnContext(ctx, "cache version error", slog.String("user_id", userID), slog.Any("error", versionErr))
		return cart, nil
	}
	if err := s.cache.Set(ctx, userID, version, cart); err != nil {
		s.log.WarnContext(ctx, "cache set error", slog.String("user_id", userID), slog.Any("error", err))
	}
	return cart, nil
}

// withProducts attaches the current product to every cached line. Lines whose product is gone
// are dropped.
func (s *CartService) withProducts(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if cart.IsEmpty() {
		return cart, nil
	}
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	items := make([]domain.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		p, ok := products[item.ProductID]
		if !ok {
			continue
		}
		item.Product = p
		items = append(items, item)
	}
	cart.Items = items
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, productID int64, quantity int) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	if !domain.ValidQuantity(quantity) {
		return domain.NewValidationError("quantity")
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.repo.AddItem(ctx, id.UserID, productID, quantity); err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	s.invalidateCache(id.UserID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	if !domain.ValidQuantity(quantity) {
		return domain.NewValidationError("quantity")
	}

	if err := s.repo.UpdateItemQuantity(ctx, id.UserID, productID, quantity); err != nil {
		return fmt.Errorf("update item quantity: %w", err)
	}
	s.invalidateCache(id.UserID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, productID int64) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveItem(ctx, id.UserID, productID); err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	s.invalidateCache(id.UserID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.ClearCart(ctx, id.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.invalidateCache(id.UserID)
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", slog.String("user_id", userID), slog.Any("error", err))
	}
}
