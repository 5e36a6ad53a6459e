package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
)

const maxOrdersPage = 100

type OrderService struct {
	repo  OrderRepository
	views ViewCache
	log   *slog.Logger
	now   func() time.Time
}

func NewOrderService(repo OrderRepository, views ViewCache, log *slog.Logger) *OrderService {
	return &OrderService{repo: repo, views: views, log: log, now: time.Now}
}

// ListMyOrders returns the caller's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context) ([]*domain.Order, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	key := "orders:user:" + id.UserID
	tags := []string{cache.TagOrders, cache.UserOrdersTag(id.UserID)}
	return cached(ctx, s.views, s.log, key, tags, func() ([]*domain.Order, error) {
		return s.repo.ListOrdersByUser(ctx, id.UserID)
	})
}

// GetOrder hides orders of other users behind ErrNotFound unless the caller is an admin.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != id.UserID && !id.IsAdmin() {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxOrdersPage {
		limit = maxOrdersPage
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrders(ctx, limit, offset)
}

// UpdateStatus overwrites the order status with any value of the closed set, regardless of the
// current one.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.SetStatus(ctx, orderID, status)
}

// SetStatus is UpdateStatus without the caller check, for operator tooling.
func (s *OrderService) SetStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error) {
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.UpdateOrderStatus(ctx, orderID, parsed, s.now())
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID.String()),
		slog.String("status", string(parsed)))
	invalidate(s.views, s.log, cache.TagOrders, cache.UserOrdersTag(order.UserID))
	return order, nil
}
