package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/pawmart/internal/cache"
)

// cached reads key from the view cache, falling back to load and storing its result under tags.
// Cache failures are logged and never fail the read.
func cached[T any](ctx context.Context, c ViewCache, log *slog.Logger, key string, tags []string, load func() (T, error)) (T, error) {
	var v T
	if c == nil {
		return load()
	}

	err := c.Get(ctx, key, &v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.WarnContext(ctx, "cache get error", slog.String("key", key), slog.Any("error", err))
	}

	v, err = load()
	if err != nil {
		return v, err
	}

	if err := c.Set(ctx, key, v, tags...); err != nil {
		log.WarnContext(ctx, "cache set error", slog.String("key", key), slog.Any("error", err))
	}
	return v, nil
}

// invalidate drops every view under tags. It runs detached from the request so a cancelled
// request still clears stale views.
func invalidate(c ViewCache, log *slog.Logger, tags ...string) {
	if c == nil || len(tags) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Invalidate(ctx, tags...); err != nil {
		log.Warn("cache invalidate error", slog.Any("tags", tags), slog.Any("error", err))
	}
}
