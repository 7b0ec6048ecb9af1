// Package redis puts a read-through cache in front of a link store. Links are
// immutable once created, so cached entries never need invalidation.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/IgorGrieder/shortlink-analytics/pkg/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "link:code:"

// cache is the subset of go-redis the repository uses.
type cache interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

type cachedLink struct {
	ID          string     `json:"id"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	OwnerID     string     `json:"ownerId,omitempty"`
}

// CachedLinkRepository wraps a links.LinkRepository. Cache failures are
// logged and the call falls through to the wrapped store.
type CachedLinkRepository struct {
	next    links.LinkRepository
	cache   cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

func NewCachedLinkRepository(next links.LinkRepository, client cache, ttl time.Duration, breaker *circuitbreaker.CircuitBreaker) *CachedLinkRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if breaker == nil {
		breaker = circuitbreaker.New("redis-link-cache", 5, 10*time.Second, logger.Named("circuitbreaker"))
	}
	return &CachedLinkRepository{
		next:    next,
		cache:   client,
		ttl:     ttl,
		breaker: breaker,
	}
}

func (r *CachedLinkRepository) Insert(ctx context.Context, link *links.Link) error {
	if err := r.next.Insert(ctx, link); err != nil {
		return err
	}
	r.store(ctx, link)
	return nil
}

func (r *CachedLinkRepository) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	if link, ok := r.load(ctx, code); ok {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return link, nil
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()

	link, err := r.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	r.store(ctx, link)
	return link, nil
}

func (r *CachedLinkRepository) FindByID(ctx context.Context, id string) (*links.Link, error) {
	return r.next.FindByID(ctx, id)
}

func (r *CachedLinkRepository) load(ctx context.Context, code string) (*links.Link, bool) {
	var raw []byte
	err := r.breaker.Do(func() error {
		b, err := r.cache.Get(ctx, keyPrefix+code).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			logger.Warn("link cache read failed", zap.String("code", code), zap.Error(err))
		}
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var c cachedLink
	if err := json.Unmarshal(raw, &c); err != nil {
		logger.Warn("discarding malformed cached link", zap.String("code", code), zap.Error(err))
		return nil, false
	}
	return &links.Link{
		ID:          c.ID,
		ShortCode:   c.ShortCode,
		OriginalURL: c.OriginalURL,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
		OwnerID:     c.OwnerID,
	}, true
}

func (r *CachedLinkRepository) store(ctx context.Context, link *links.Link) {
	raw, err := json.Marshal(cachedLink{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		OwnerID:     link.OwnerID,
	})
	if err != nil {
		return
	}

	err = r.breaker.Do(func() error {
		return r.cache.Set(ctx, keyPrefix+link.ShortCode, raw, r.ttl).Err()
	})
	if err != nil && !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		logger.Warn("link cache write failed", zap.String("code", link.ShortCode), zap.Error(err))
	}
}
