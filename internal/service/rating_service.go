package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
)

type RatingService struct {
	repo  RatingRepository
	views ViewCache
	log   *slog.Logger
}

func NewRatingService(repo RatingRepository, views ViewCache, log *slog.Logger) *RatingService {
	return &RatingService{repo: repo, views: views, log: log}
}

func (s *RatingService) ListRatings(ctx context.Context, productID int64) ([]*domain.Rating, error) {
	key := fmt.Sprintf("ratings:%d", productID)
	return cached(ctx, s.views, s.log, key, []string{cache.RatingsTag(productID)}, func() ([]*domain.Rating, error) {
		return s.repo.ListRatings(ctx, productID)
	})
}

// RateProduct creates or replaces the caller's rating. The product aggregate is refreshed in
// the same transaction.
func (s *RatingService) RateProduct(ctx context.Context, productID int64, value int, comment string) (*domain.Rating, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	rating := &domain.Rating{
		ProductID: productID,
		UserID:    id.UserID,
		Value:     value,
		Comment:   strings.TrimSpace(comment),
	}
	if err := rating.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpsertRating(ctx, rating); err != nil {
		return nil, err
	}
	s.invalidateProduct(productID)
	return rating, nil
}

func (s *RatingService) DeleteRating(ctx context.Context, productID int64) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRating(ctx, productID, id.UserID); err != nil {
		return err
	}
	s.invalidateProduct(productID)
	return nil
}

func (s *RatingService) invalidateProduct(productID int64) {
	invalidate(s.views, s.log, cache.TagCatalog, cache.ProductTag(productID), cache.RatingsTag(productID))
}
