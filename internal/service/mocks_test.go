package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
	"github.com/fjod/pawmart/internal/payment"
	"github.com/fjod/pawmart/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userCtx(userID string) context.Context {
	return domain.WithIdentity(context.Background(), domain.Identity{UserID: userID, Role: "user"})
}

func adminCtx() context.Context {
	return domain.WithIdentity(context.Background(), domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin})
}

// memState is the data a checkout transaction can touch.
type memState struct {
	products map[int64]*domain.Product
	carts    map[string][]domain.CartItem
	orders   []*domain.Order
	events   []domain.OrderEvent
}

func (s *memState) clone() *memState {
	c := &memState{
		products: make(map[int64]*domain.Product, len(s.products)),
		carts:    make(map[string][]domain.CartItem, len(s.carts)),
		orders:   append([]*domain.Order(nil), s.orders...),
		events:   append([]domain.OrderEvent(nil), s.events...),
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for u, items := range s.carts {
		c.carts[u] = append([]domain.CartItem(nil), items...)
	}
	return c
}

// MemStore is an in-memory stand-in for the PostgreSQL repository with real rollback.
type MemStore struct {
	mu    sync.Mutex
	state *memState

	TxCalls int
	// HideSessionLookups makes that many session lookups miss, as when a concurrent delivery
	// commits between the lookup and the insert.
	HideSessionLookups int
	CommitErr          error
}

func NewMemStore() *MemStore {
	return &MemStore{state: &memState{
		products: map[int64]*domain.Product{},
		carts:    map[string][]domain.CartItem{},
	}}
}

func (m *MemStore) AddProduct(id int64, name, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[id] = &domain.Product{ID: id, CategoryID: 1, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func (m *MemStore) Stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id].Stock
}

func (m *MemStore) Orders() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Order(nil), m.state.orders...)
}

func (m *MemStore) InsertOrder(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.orders = append(m.state.orders, o)
}

func (m *MemStore) Events() []domain.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderEvent(nil), m.state.events...)
}

func (m *MemStore) cartOf(s *memState, userID string) *domain.Cart {
	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
	for _, item := range s.carts[userID] {
		if p, ok := s.products[item.ProductID]; ok {
			cp := *p
			item.Product = &cp
		}
		cart.Items = append(cart.Items, item)
	}
	return cart
}

func findBySession(s *memState, sessionID string) (*domain.Order, error) {
	for _, o := range s.orders {
		if o.PaymentSessionID != nil && *o.PaymentSessionID == sessionID {
			return o, nil
		}
	}
	return nil, fmt.Errorf("order for session %s: %w", sessionID, domain.ErrNotFound)
}

// CheckoutRepository

func (m *MemStore) WithCheckoutTx(ctx context.Context, fn func(repository.CheckoutTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TxCalls++

	staged := m.state.clone()
	if err := fn(&memTx{store: m, state: staged}); err != nil {
		return err
	}
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.state = staged
	return nil
}

func (m *MemStore) FindOrderByPaymentSession(_ context.Context, sessionID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HideSessionLookups > 0 {
		m.HideSessionLookups--
		return nil, domain.ErrNotFound
	}
	return findBySession(m.state, sessionID)
}

type memTx struct {
	store *MemStore
	state *memState
}

func (t *memTx) LockCart(_ context.Context, userID string) (*domain.Cart, error) {
	return t.store.cartOf(t.state, userID), nil
}

func (t *memTx) FindOrderByPaymentSession(_ context.Context, sessionID string) (*domain.Order, error) {
	if t.store.HideSessionLookups > 0 {
		t.store.HideSessionLookups--
		return nil, domain.ErrNotFound
	}
	return findBySession(t.state, sessionID)
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, quantity int, allowNegative bool) error {
	p, ok := t.state.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	if !allowNegative && p.Stock < quantity {
		return fmt.Errorf("product %d: %w", productID, domain.ErrInsufficientStock)
	}
	p.Stock -= quantity
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, order *domain.Order) error {
	if order.PaymentSessionID != nil {
		if _, err := findBySession(t.state, *order.PaymentSessionID); err == nil {
			return repository.ErrDuplicatePaymentSession
		}
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	t.state.orders = append(t.state.orders, order)
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID string) error {
	delete(t.state.carts, userID)
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, event domain.OrderEvent) error {
	t.state.events = append(t.state.events, event)
	return nil
}

// CartRepository

func (m *MemStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cartOf(m.state, userID), nil
}

func (m *MemStore) AddItem(_ context.Context, userID string, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.state.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			if !domain.ValidQuantity(items[i].Quantity + quantity) {
				return domain.NewValidationError("quantity")
			}
			items[i].Quantity += quantity
			return nil
		}
	}
	m.state.carts[userID] = append(items, domain.CartItem{ProductID: productID, Quantity: quantity, AddedAt: time.Now()})
	return nil
}

func (m *MemStore) UpdateItemQuantity(_ context.Context, userID string, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.state.carts[userID] {
		if item.ProductID == productID {
			m.state.carts[userID][i].Quantity = quantity
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MemStore) RemoveItem(_ context.Context, userID string, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.state.carts[userID]
	for i, item := range items {
		if item.ProductID == productID {
			m.state.carts[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MemStore) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.carts, userID)
	return nil
}

// CatalogRepository

func (m *MemStore) ListProducts(context.Context, string) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Product, 0, len(m.state.products))
	for _, p := range m.state.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.state.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemStore) ListCategories(context.Context) ([]*domain.Category, error) {
	return []*domain.Category{{ID: 1, Name: "Dogs", Slug: "dogs"}}, nil
}

func (m *MemStore) CreateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.state.products) + 1)
	cp := *p
	m.state.products[p.ID] = &cp
	return nil
}

func (m *MemStore) UpdateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.state.products[p.ID] = &cp
	return nil
}

// MockGateway records session requests.
type MockGateway struct {
	Requests []payment.SessionRequest
	Err      error
}

func (g *MockGateway) NewSessionRequest(userID string, shipping domain.ShippingInfo, snapshot *domain.CartSnapshot) (payment.SessionRequest, error) {
	shippingJSON, _ := json.Marshal(shipping)
	items := make([]payment.LineItem, len(snapshot.Items))
	for i, item := range snapshot.Items {
		items[i] = payment.LineItem{Name: item.ProductName, UnitAmount: payment.ToMinorUnits(item.UnitPrice), Quantity: item.Quantity}
	}
	return payment.SessionRequest{
		LineItems: items,
		Currency:  snapshot.Currency,
		Metadata:  map[string]string{payment.MetadataUserID: userID, payment.MetadataShipping: string(shippingJSON)},
	}, nil
}

func (g *MockGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	g.Requests = append(g.Requests, req)
	id := fmt.Sprintf("cs_test_%d", len(g.Requests))
	return &payment.Session{ID: id, URL: "https://pay.example/" + id, Metadata: req.Metadata}, nil
}

// MockViews is a map-backed ViewCache that records invalidated tags.
type MockViews struct {
	mu          sync.Mutex
	data        map[string][]byte
	Invalidated []string
	Gets        int
}

func NewMockViews() *MockViews {
	return &MockViews{data: map[string][]byte{}}
}

func (v *MockViews) Get(_ context.Context, key string, dest any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Gets++
	raw, ok := v.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (v *MockViews) Set(_ context.Context, key string, value any, _ ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	v.data[key] = raw
	return nil
}

func (v *MockViews) Invalidate(_ context.Context, tags ...string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Invalidated = append(v.Invalidated, tags...)
	v.data = map[string][]byte{}
	return nil
}

func (v *MockViews) InvalidatedTags() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.Invalidated...)
}

// MockCartCache implements cache.CartCache
type MockCartCache struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	versions map[string]int64
	GetErr   error
	Deleted  []string
	// BeforeSet runs just before a fill is stored, as a concurrent writer would.
	BeforeSet func()
}

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{carts: map[string]*domain.Cart{}, versions: map[string]int64{}}
}

func (c *MockCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return linesOnly(cart), nil
}

func (c *MockCartCache) Version(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *MockCartCache) Set(_ context.Context, userID string, version int64, cart *domain.Cart) error {
	if c.BeforeSet != nil {
		c.BeforeSet()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return nil
	}
	c.carts[userID] = linesOnly(cart)
	return nil
}

func (c *MockCartCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, userID)
	c.versions[userID]++
	c.Deleted = append(c.Deleted, userID)
	return nil
}

func (c *MockCartCache) Has(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.carts[userID]
	return ok
}

func linesOnly(cart *domain.Cart) *domain.Cart {
	cp := *cart
	cp.Items = make([]domain.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		item.Product = nil
		cp.Items = append(cp.Items, item)
	}
	return &cp
}

// MockRecorder captures checkout metrics.
type MockRecorder struct {
	mu       sync.Mutex
	Checkout []string
	Webhook  []string
}

func (r *MockRecorder) ObserveCheckout(method domain.PaymentMethod, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Checkout = append(r.Checkout, string(method)+":"+outcome)
}

func (r *MockRecorder) ObserveWebhook(eventType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Webhook = append(r.Webhook, eventType+":"+outcome)
}

// MockOrderRepository implements OrderRepository
type MockOrderRepository struct {
	Orders     map[uuid.UUID]*domain.Order
	ListCalls  int
	UpdatedTo  []domain.OrderStatus
	LastLimit  int
	LastOffset int
}

func (m *MockOrderRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.Orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (m *MockOrderRepository) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	m.ListCalls++
	out := make([]*domain.Order, 0)
	for _, o := range m.Orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) ListOrders(_ context.Context, limit, offset int) ([]*domain.Order, error) {
	m.LastLimit, m.LastOffset = limit, offset
	out := make([]*domain.Order, 0)
	for _, o := range m.Orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *MockOrderRepository) UpdateOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus, _ time.Time) (*domain.Order, error) {
	o, ok := m.Orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.Status = status
	m.UpdatedTo = append(m.UpdatedTo, status)
	return o, nil
}

// MockRatingRepository keeps ratings per product and recomputes the mean like the real store.
type MockRatingRepository struct {
	Ratings  map[int64]map[string]int
	Averages map[int64]float64
}

func NewMockRatingRepository() *MockRatingRepository {
	return &MockRatingRepository{Ratings: map[int64]map[string]int{}, Averages: map[int64]float64{}}
}

func (m *MockRatingRepository) ListRatings(_ context.Context, productID int64) ([]*domain.Rating, error) {
	out := make([]*domain.Rating, 0)
	for user, v := range m.Ratings[productID] {
		out = append(out, &domain.Rating{ProductID: productID, UserID: user, Value: v})
	}
	return out, nil
}

func (m *MockRatingRepository) UpsertRating(_ context.Context, r *domain.Rating) error {
	if m.Ratings[r.ProductID] == nil {
		m.Ratings[r.ProductID] = map[string]int{}
	}
	m.Ratings[r.ProductID][r.UserID] = r.Value
	m.recompute(r.ProductID)
	return nil
}

func (m *MockRatingRepository) DeleteRating(_ context.Context, productID int64, userID string) error {
	if _, ok := m.Ratings[productID][userID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.Ratings[productID], userID)
	m.recompute(productID)
	return nil
}

func (m *MockRatingRepository) recompute(productID int64) {
	var values []int
	for _, v := range m.Ratings[productID] {
		values = append(values, v)
	}
	m.Averages[productID] = domain.AverageRating(values)
}

// MockCommunityRepository is an in-memory community store.
type MockCommunityRepository struct {
	Posts         map[string]*domain.Post
	Comments      []domain.Comment
	Upvotes       map[string]bool
	Notifications []*domain.Notification
	NotifyErr     error
}

func NewMockCommunityRepository() *MockCommunityRepository {
	return &MockCommunityRepository{Posts: map[string]*domain.Post{}, Upvotes: map[string]bool{}}
}

func (m *MockCommunityRepository) CreatePost(_ context.Context, post *domain.Post) error {
	m.Posts[post.ID] = post
	return nil
}

func (m *MockCommunityRepository) ListPosts(_ context.Context, page, limit int) ([]*domain.Post, error) {
	out := make([]*domain.Post, 0)
	for _, p := range m.Posts {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockCommunityRepository) GetPost(_ context.Context, id string) (*domain.Post, error) {
	p, ok := m.Posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockCommunityRepository) DeletePost(_ context.Context, id string) error {
	if _, ok := m.Posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.Posts, id)
	return nil
}

func (m *MockCommunityRepository) InsertComment(_ context.Context, c *domain.Comment) error {
	m.Comments = append(m.Comments, *c)
	return nil
}

func (m *MockCommunityRepository) GetComment(_ context.Context, id string) (*domain.Comment, error) {
	for i := range m.Comments {
		if m.Comments[i].ID == id {
			c := m.Comments[i]
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCommunityRepository) ListComments(_ context.Context, postID string) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0)
	for _, c := range m.Comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockCommunityRepository) ToggleUpvote(_ context.Context, u domain.Upvote) (bool, error) {
	key := u.PostID + "/" + u.UserID
	if m.Upvotes[key] {
		delete(m.Upvotes, key)
		return false, nil
	}
	m.Upvotes[key] = true
	return true, nil
}

func (m *MockCommunityRepository) InsertNotification(_ context.Context, n *domain.Notification) (bool, error) {
	if m.NotifyErr != nil {
		return false, m.NotifyErr
	}
	m.Notifications = append(m.Notifications, n)
	return true, nil
}

func (m *MockCommunityRepository) ListNotifications(_ context.Context, userID string, _ int) ([]*domain.Notification, error) {
	out := make([]*domain.Notification, 0)
	for _, n := range m.Notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MockCommunityRepository) MarkNotificationRead(_ context.Context, id, userID string) error {
	for _, n := range m.Notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}
