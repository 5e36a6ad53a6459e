package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/pawmart/internal/domain"
)

const (
	defaultCartTTL = 15 * time.Minute
	maxJitter      = 5 * time.Minute
	// versionTTL outlives any cart entry so a version never resets under a pending fill.
	versionTTL = 24 * time.Hour
)

var errVersionMoved = errors.New("cart version moved")

// cartLine is the cached form of a cart item.
type cartLine struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type cartEntry struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Lines     []cartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func newCartEntry(cart *domain.Cart) cartEntry {
	entry := cartEntry{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Lines:     make([]cartLine, 0, len(cart.Items)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		entry.Lines = append(entry.Lines, cartLine{ProductID: item.ProductID, Quantity: item.Quantity, AddedAt: item.AddedAt})
	}
	return entry
}

func (e cartEntry) cart() *domain.Cart {
	cart := &domain.Cart{
		ID:        e.ID,
		UserID:    e.UserID,
		Items:     make([]domain.CartItem, 0, len(e.Lines)),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	for _, line := range e.Lines {
		cart.Items = append(cart.Items, domain.CartItem{ProductID: line.ProductID, Quantity: line.Quantity, AddedAt: line.AddedAt})
	}
	return cart
}

// RedisCartCache stores cart lines as JSON under cart:<user> next to a cart:<user>:version counter.
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartCache(client *redis.Client) *RedisCartCache {
	return &RedisCartCache{
		client:  client,
		baseTTL: defaultCartTTL,
	}
}

// Get returns the cached lines. Items come back without products.
func (r *RedisCartCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry cartEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return entry.cart(), nil
}

func (r *RedisCartCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := readVersion(ctx, r.client, versionKey(userID))
	if err != nil {
		return 0, fmt.Errorf("redis get version failed: %w", err)
	}
	return v, nil
}

// Set stores the cart's lines if the version is still the one the caller read. A moved version
// means the cart changed while it was loaded; the write is skipped without error.
func (r *RedisCartCache) Set(ctx context.Context, userID string, version int64, cart *domain.Cart) error {
	data, err := json.Marshal(newCartEntry(cart))
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	key, vkey := cartKey(userID), versionKey(userID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, vkey)
		if err != nil {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, jitteredTTL(r.baseTTL))
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, errVersionMoved) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete drops the cached lines and bumps the version in one MULTI.
func (r *RedisCartCache) Delete(ctx context.Context, userID string) error {
	vkey := versionKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cartKey(userID))
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c stringGetter, key string) (int64, error) {
	v, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func cartKey(userID string) string {
	return "cart:" + userID
}

func versionKey(userID string) string {
	return cartKey(userID) + ":version"
}

// jitteredTTL spreads expirations over [base, base+maxJitter).
func jitteredTTL(base time.Duration) time.Duration {
	return base + time.Duration(rand.Int63n(int64(maxJitter)))
}
