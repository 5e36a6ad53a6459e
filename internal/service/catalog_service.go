package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
)

type CatalogService struct {
	repo  CatalogRepository
	views ViewCache
	log   *slog.Logger
}

func NewCatalogService(repo CatalogRepository, views ViewCache, log *slog.Logger) *CatalogService {
	return &CatalogService{repo: repo, views: views, log: log}
}

func (s *CatalogService) ListProducts(ctx context.Context, categorySlug string) ([]*domain.Product, error) {
	key := "products:all"
	if categorySlug != "" {
		key = "products:category:" + categorySlug
	}
	return cached(ctx, s.views, s.log, key, []string{cache.TagCatalog}, func() ([]*domain.Product, error) {
		return s.repo.ListProducts(ctx, categorySlug)
	})
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := fmt.Sprintf("product:%d", id)
	return cached(ctx, s.views, s.log, key, []string{cache.TagCatalog, cache.ProductTag(id)}, func() (*domain.Product, error) {
		return s.repo.GetProduct(ctx, id)
	})
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return cached(ctx, s.views, s.log, "categories", []string{cache.TagCatalog}, func() ([]*domain.Category, error) {
		return s.repo.ListCategories(ctx)
	})
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	invalidate(s.views, s.log, cache.TagCatalog, cache.ProductTag(p.ID))
	return nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	invalidate(s.views, s.log, cache.TagCatalog, cache.ProductTag(p.ID))
	return nil
}

func requireAdmin(ctx context.Context) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	if !id.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}
