package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
)

// CacheStore persists cached responses.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// MemoryCacheStore is a process-local CacheStore.
type MemoryCacheStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCacheStore creates an empty in-memory store.
func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{items: make(map[string]memoryItem), now: time.Now}
}

// Get implements CacheStore. Expired entries are reported as missing.
func (s *MemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !s.now().Before(item.expires) {
		return nil, false, nil
	}
	return item.value, true, nil
}

// Set implements CacheStore.
func (s *MemoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{value: value, expires: s.now().Add(ttl)}
	return nil
}

// Purge drops expired entries.
func (s *MemoryCacheStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, item := range s.items {
		if !now.Before(item.expires) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// RedisClient is the subset of the go-redis API the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCacheStore keeps cached responses in Redis under a key prefix.
type RedisCacheStore struct {
	client RedisClient
	prefix string
}

// NewRedisCacheStore creates a store backed by client.
func NewRedisCacheStore(client RedisClient, prefix string) *RedisCacheStore {
	return &RedisCacheStore{client: client, prefix: prefix}
}

// Get implements CacheStore.
func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

// Set implements CacheStore.
func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// cachedResponse is the stored form of a response.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// ExecuteResult replays the cached response.
func (cr cachedResponse) ExecuteResult(ac *actions.ActionContext) error {
	h := ac.Response.Header()
	if cr.ContentType != "" {
		h.Set("Content-Type", cr.ContentType)
	}
	h.Set("X-Cache", "HIT")
	ac.Response.WriteHeader(cr.Status)
	_, err := ac.Response.Write(cr.Body)
	return err
}

// ResponseCache is a resource filter caching successful GET responses.
// Store failures are logged and treated as misses.
type ResponseCache struct {
	Store CacheStore
	TTL   time.Duration
}

// NewResponseCache creates a cache filter.
func NewResponseCache(store CacheStore, ttl time.Duration) *ResponseCache {
	return &ResponseCache{Store: store, TTL: ttl}
}

// cacheKey identifies a response by action, request URI, Accept header and
// authenticated user, so negotiated formats and per-user results never mix.
func cacheKey(ac *actions.ActionContext) string {
	id := ac.Descriptor.ID
	if id == "" {
		id = ac.Descriptor.DisplayName()
	}
	return strings.Join([]string{
		id,
		ac.Request.URL.RequestURI(),
		ac.Request.Header.Get("Accept"),
		logging.GetUserID(ac.Context()),
	}, "|")
}

// OnResourceExecution implements ResourceFilter.
func (rc *ResponseCache) OnResourceExecution(c *ResourceExecutingContext, next ResourceNext) error {
	if c.Request.Method != http.MethodGet || rc.TTL <= 0 {
		next()
		return nil
	}

	key := cacheKey(c.ActionContext)
	if b, ok, err := rc.Store.Get(c.Context(), key); err != nil {
		c.Logger.WithError(err).Warn("Response cache read failed")
	} else if ok {
		var cr cachedResponse
		if err := json.Unmarshal(b, &cr); err == nil {
			c.Result = cr
			return nil
		}
	}

	c.Response.StartCapture()
	executed := next()
	body := c.Response.StopCapture()

	if executed.Canceled || (executed.Err != nil && !executed.ExceptionHandled) || c.Response.Status() != http.StatusOK {
		return nil
	}
	b, err := json.Marshal(cachedResponse{
		Status:      c.Response.Status(),
		ContentType: c.Response.Header().Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		return nil
	}
	if err := rc.Store.Set(c.Context(), key, b, rc.TTL); err != nil {
		c.Logger.WithError(err).Warn("Response cache write failed")
	}
	return nil
}
