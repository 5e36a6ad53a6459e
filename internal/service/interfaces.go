package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/pawmart/internal/domain"
	"github.com/fjod/pawmart/internal/payment"
	"github.com/fjod/pawmart/internal/repository"
)

// Consumers define the interfaces they need; the PostgreSQL and MongoDB repositories satisfy them.

type CatalogRepository interface {
	ListProducts(ctx context.Context, categorySlug string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID int64) error
	ClearCart(ctx context.Context, userID string) error
}

type CheckoutRepository interface {
	WithCheckoutTx(ctx context.Context, fn func(repository.CheckoutTx) error) error
	FindOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error)
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, now time.Time) (*domain.Order, error)
}

type RatingRepository interface {
	ListRatings(ctx context.Context, productID int64) ([]*domain.Rating, error)
	UpsertRating(ctx context.Context, rating *domain.Rating) error
	DeleteRating(ctx context.Context, productID int64, userID string) error
}

type CommunityRepository interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	ListPosts(ctx context.Context, page, limit int) ([]*domain.Post, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	InsertComment(ctx context.Context, comment *domain.Comment) error
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
	ToggleUpvote(ctx context.Context, upvote domain.Upvote) (bool, error)
	InsertNotification(ctx context.Context, n *domain.Notification) (bool, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

type PaymentGateway interface {
	NewSessionRequest(userID string, shipping domain.ShippingInfo, snapshot *domain.CartSnapshot) (payment.SessionRequest, error)
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

// ViewCache is the tag-indexed read cache.
type ViewCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, tags ...string) error
	Invalidate(ctx context.Context, tags ...string) error
}

// CheckoutRecorder counts checkout and webhook outcomes.
type CheckoutRecorder interface {
	ObserveCheckout(method domain.PaymentMethod, outcome string)
	ObserveWebhook(eventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCheckout(domain.PaymentMethod, string) {}
func (nopRecorder) ObserveWebhook(string, string)                {}
