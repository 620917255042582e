// Package poi serves Amap searches through a Redis read-through cache.
package poi

import (
	"context"
	"errors"
	"time"

	"bizarea/internal/amap"
	"bizarea/internal/cache"
	"bizarea/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Searcher is the part of the Amap client the service depends on.
type Searcher interface {
	SearchAround(ctx context.Context, q amap.SearchQuery) (*amap.SearchResult, error)
	SearchText(ctx context.Context, q amap.SearchQuery) (*amap.SearchResult, error)
	SearchBusinessAreas(ctx context.Context, center amap.Location, radius int) []amap.Place
	SearchNearbyPois(ctx context.Context, center amap.Location, radius int) []amap.Place
}

// Service caches search results. Identical concurrent requests share one
// upstream call. A nil cache disables caching but keeps the sharing.
type Service struct {
	searcher      Searcher
	cache         *cache.RedisCache
	group         singleflight.Group
	flightTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithFlightTimeout bounds a shared upstream lookup. The default covers the
// slowest aggregate at the default transport timeout.
func WithFlightTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flightTimeout = d
		}
	}
}

func NewService(searcher Searcher, c *cache.RedisCache, opts ...Option) *Service {
	s := &Service{searcher: searcher, cache: c, flightTimeout: amap.AggregateTimeout(amap.DefaultTimeout)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchAround runs a cached around search. Errors are returned as the client
// produced them and are never cached.
func (s *Service) SearchAround(ctx context.Context, q amap.SearchQuery) (*amap.SearchResult, error) {
	key := cache.AroundKey(q.Location.Lng, q.Location.Lat, q.Keywords, q.Types, q.Radius, q.Offset, q.Page)

	var result amap.SearchResult
	if s.lookup(ctx, "around", key, &result) {
		return &result, nil
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (any, error) {
		res, err := s.searcher.SearchAround(ctx, q)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, res, cache.AroundTTL)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*amap.SearchResult), nil
}

// SearchText runs a cached keyword search.
func (s *Service) SearchText(ctx context.Context, q amap.SearchQuery) (*amap.SearchResult, error) {
	key := cache.TextKey(q.Keywords, q.Types, q.City, q.Offset, q.Page)

	var result amap.SearchResult
	if s.lookup(ctx, "text", key, &result) {
		return &result, nil
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (any, error) {
		res, err := s.searcher.SearchText(ctx, q)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, res, cache.TextTTL)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*amap.SearchResult), nil
}

// BusinessAreas returns business areas around center. Empty results are not
// cached since they usually mean every sub-query failed.
func (s *Service) BusinessAreas(ctx context.Context, center amap.Location, radius int) []amap.Place {
	key := cache.BusinessAreasKey(center.Lng, center.Lat, radius)
	return s.aggregate(ctx, "business_areas", key, cache.BusinessAreasTTL, func(ctx context.Context) []amap.Place {
		return s.searcher.SearchBusinessAreas(ctx, center, radius)
	})
}

// NearbyPOIs returns everyday places around center.
func (s *Service) NearbyPOIs(ctx context.Context, center amap.Location, radius int) []amap.Place {
	key := cache.NearbyPOIsKey(center.Lng, center.Lat, radius)
	return s.aggregate(ctx, "nearby_pois", key, cache.NearbyPOIsTTL, func(ctx context.Context) []amap.Place {
		return s.searcher.SearchNearbyPois(ctx, center, radius)
	})
}

// aggregate returns an empty slice, not an error, when the caller gives up
// before the shared lookup finishes.
func (s *Service) aggregate(ctx context.Context, kind, key string, ttl time.Duration, fetch func(context.Context) []amap.Place) []amap.Place {
	var places []amap.Place
	if s.lookup(ctx, kind, key, &places) && places != nil {
		return places
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (any, error) {
		res := fetch(ctx)
		if len(res) > 0 {
			s.store(ctx, key, res, ttl)
		}
		return res, nil
	})
	if err != nil {
		return []amap.Place{}
	}
	places, _ = v.([]amap.Place)
	if places == nil {
		places = []amap.Place{}
	}
	return places
}

// share runs fn once per key for all concurrent callers. fn gets a context
// detached from any single caller, bounded by the flight timeout, so one client
// going away does not fail the others. Each caller still stops waiting when
// its own ctx is done.
func (s *Service) share(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
		defer cancel()
		return fn(flightCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) lookup(ctx context.Context, kind, key string, dst any) bool {
	if s.cache == nil {
		return false
	}

	err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err == nil:
		metrics.CacheLookupsTotal.WithLabelValues(kind, "hit").Inc()
		return true
	case errors.Is(err, cache.ErrKeyNotFound):
		metrics.CacheLookupsTotal.WithLabelValues(kind, "miss").Inc()
	default:
		metrics.CacheLookupsTotal.WithLabelValues(kind, "error").Inc()
		log.Warn().Err(err).Str("kind", kind).Msg("Cache lookup failed")
	}
	return false
}

func (s *Service) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache search result")
	}
}
