package content

import (
	"context"
	"encoding/json"
	"time"

	"ignews-service/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

const (
	postsKey = "posts"

	// loadTimeout bounds a shared regeneration, which outlives the request
	// that started it.
	loadTimeout = 30 * time.Second
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ignews",
	Subsystem: "content",
	Name:      "cache_total",
	Help:      "Post listing cache lookups by result",
}, []string{"result"})

// Service serves the post listing, regenerating it from the CMS at most
// once per TTL. Cache failures fall through to the CMS.
type Service struct {
	client *Client
	cache  Cache
	ttl    time.Duration
	loc    *time.Location

	refresh singleflight.Group
}

// NewService builds the listing service. cache may be nil, and a zero ttl
// disables caching.
func NewService(client *Client, cache Cache, ttl time.Duration) *Service {
	return &Service{
		client: client,
		cache:  cache,
		ttl:    ttl,
		loc:    time.UTC,
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

func (s *Service) List(ctx context.Context) ([]Post, error) {
	if s.cacheEnabled() {
		if posts, ok := s.fromCache(ctx); ok {
			return posts, nil
		}
	}

	ch := s.refresh.DoChan(postsKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]Post), nil
	}
}

func (s *Service) fromCache(ctx context.Context) ([]Post, bool) {
	raw, ok, err := s.cache.Get(ctx, postsKey)
	if err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		logger.Warn("content cache read failed", map[string]any{"error": err})
		return nil, false
	}
	if !ok {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		cacheLookups.WithLabelValues("error").Inc()
		logger.Warn("content cache entry corrupt", map[string]any{"error": err})
		return nil, false
	}

	cacheLookups.WithLabelValues("hit").Inc()
	return posts, true
}

func (s *Service) load(ctx context.Context) ([]Post, error) {
	docs, err := s.client.Documents(ctx)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, toPost(doc, s.loc))
	}

	if s.cacheEnabled() {
		raw, err := json.Marshal(posts)
		if err == nil {
			err = s.cache.Set(ctx, postsKey, raw, s.ttl)
		}
		if err != nil {
			logger.Warn("content cache write failed", map[string]any{"error": err})
		}
	}

	logger.Debug("posts regenerated", map[string]any{"count": len(posts)})

	return posts, nil
}
