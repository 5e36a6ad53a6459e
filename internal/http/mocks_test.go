package http

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fjod/pawmart/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockCatalog struct {
	Products []*domain.Product
	Created  *domain.Product
	Err      error
}

func (m *MockCatalog) ListProducts(_ context.Context, slug string) ([]*domain.Product, error) {
	return m.Products, m.Err
}

func (m *MockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCatalog) ListCategories(context.Context) ([]*domain.Category, error) {
	return []*domain.Category{{ID: 1, Name: "Dogs", Slug: "dogs"}}, m.Err
}

func (m *MockCatalog) CreateProduct(ctx context.Context, p *domain.Product) error {
	if m.Err != nil {
		return m.Err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = 42
	m.Created = p
	return nil
}

func (m *MockCatalog) UpdateProduct(_ context.Context, p *domain.Product) error {
	return m.Err
}

type MockRatings struct {
	LastValue int
	Err       error
}

func (m *MockRatings) ListRatings(context.Context, int64) ([]*domain.Rating, error) {
	return []*domain.Rating{}, m.Err
}

func (m *MockRatings) RateProduct(ctx context.Context, productID int64, value int, comment string) (*domain.Rating, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	m.LastValue = value
	r := &domain.Rating{ProductID: productID, UserID: id.UserID, Value: value, Comment: comment}
	return r, r.Validate()
}

func (m *MockRatings) DeleteRating(context.Context, int64) error {
	return m.Err
}

type MockCarts struct {
	Cart    *domain.Cart
	Err     error
	AddedID int64
	UserID  string
}

func (m *MockCarts) GetCart(ctx context.Context) (*domain.Cart, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Cart, nil
}

func (m *MockCarts) AddItem(ctx context.Context, productID int64, quantity int) error {
	if m.Err != nil {
		return m.Err
	}
	id, _ := domain.IdentityFrom(ctx)
	m.UserID = id.UserID
	m.AddedID = productID
	return nil
}

func (m *MockCarts) UpdateQuantity(context.Context, int64, int) error { return m.Err }
func (m *MockCarts) RemoveItem(context.Context, int64) error          { return m.Err }
func (m *MockCarts) ClearCart(context.Context) error                  { return m.Err }

type MockCheckout struct {
	Result       *domain.CheckoutResult
	Err          error
	Request      domain.CheckoutRequest
	WebhookOrder *domain.Order
	WebhookErr   error
	Signature    string
	Payload      []byte
}

func (m *MockCheckout) PlaceOrder(_ context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	m.Request = req
	return m.Result, m.Err
}

func (m *MockCheckout) HandleWebhook(_ context.Context, payload []byte, signature string) (*domain.Order, error) {
	m.Payload = payload
	m.Signature = signature
	return m.WebhookOrder, m.WebhookErr
}

type MockOrders struct {
	Order     *domain.Order
	Err       error
	NewStatus string
	Limit     int
}

func (m *MockOrders) ListMyOrders(context.Context) ([]*domain.Order, error) {
	return []*domain.Order{m.Order}, m.Err
}

func (m *MockOrders) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockOrders) ListAllOrders(_ context.Context, limit, offset int) ([]*domain.Order, error) {
	m.Limit = limit
	return []*domain.Order{m.Order}, m.Err
}

func (m *MockOrders) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	m.NewStatus = status
	m.Order.Status = parsed
	return m.Order, nil
}

type MockCommunity struct {
	Tree     []*domain.CommentNode
	Err      error
	ParentID *string
}

func (m *MockCommunity) CreatePost(ctx context.Context, title, body, imageURL string) (*domain.Post, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Post{ID: "p1", AuthorID: id.UserID, Title: title, Body: body}, m.Err
}

func (m *MockCommunity) ListPosts(context.Context, int, int) ([]*domain.Post, error) {
	return []*domain.Post{}, m.Err
}

func (m *MockCommunity) GetPost(_ context.Context, id string) (*domain.Post, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &domain.Post{ID: id}, nil
}

func (m *MockCommunity) DeletePost(context.Context, string) error { return m.Err }

func (m *MockCommunity) AddComment(_ context.Context, postID string, parentID *string, body string) (*domain.Comment, error) {
	m.ParentID = parentID
	return &domain.Comment{ID: "c1", PostID: postID, ParentID: parentID, Body: body}, m.Err
}

func (m *MockCommunity) GetCommentTree(context.Context, string) ([]*domain.CommentNode, error) {
	return m.Tree, m.Err
}

func (m *MockCommunity) ToggleUpvote(context.Context, string) (bool, error) { return true, m.Err }

func (m *MockCommunity) ListNotifications(context.Context) ([]*domain.Notification, error) {
	return []*domain.Notification{}, m.Err
}

func (m *MockCommunity) MarkNotificationRead(context.Context, string) error { return m.Err }
