package http

import (
	"context"

	"github.com/google/uuid"

	"github.com/fjod/pawmart/internal/domain"
)

type CatalogService interface {
	ListProducts(ctx context.Context, categorySlug string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
}

type RatingService interface {
	ListRatings(ctx context.Context, productID int64) ([]*domain.Rating, error)
	RateProduct(ctx context.Context, productID int64, value int, comment string) (*domain.Rating, error)
	DeleteRating(ctx context.Context, productID int64) error
}

type CartService interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, productID int64, quantity int) error
	RemoveItem(ctx context.Context, productID int64) error
	ClearCart(ctx context.Context) error
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*domain.Order, error)
}

type OrderService interface {
	ListMyOrders(ctx context.Context) ([]*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListAllOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error)
}

type CommunityService interface {
	CreatePost(ctx context.Context, title, body, imageURL string) (*domain.Post, error)
	ListPosts(ctx context.Context, page, limit int) ([]*domain.Post, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	AddComment(ctx context.Context, postID string, parentID *string, body string) (*domain.Comment, error)
	GetCommentTree(ctx context.Context, postID string) ([]*domain.CommentNode, error)
	ToggleUpvote(ctx context.Context, postID string) (bool, error)
	ListNotifications(ctx context.Context) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}
