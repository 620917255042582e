package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"bizarea/internal/cache"
	"bizarea/internal/repo"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Worker periodically recomputes the per-city business-area heat ranking and
// keeps it in Redis sorted sets.
type Worker struct {
	repo  repo.Repository
	cache *cache.RedisCache
	ttl   time.Duration
	limit int

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

// RankedArea is a business area with its position in the city ranking.
type RankedArea struct {
	repo.BusinessArea
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

type Meta struct {
	LastComputedAt time.Time `json:"lastComputedAt"`
	CityCount      int       `json:"cityCount"`
	AreaCount      int       `json:"areaCount"`
}

func NewWorker(r repo.Repository, c *cache.RedisCache, ttl time.Duration, limit int) *Worker {
	if ttl <= 0 {
		ttl = cache.RankingTTL
	}
	if limit <= 0 {
		limit = 50
	}
	return &Worker{
		repo:  r,
		cache: c,
		ttl:   ttl,
		limit: limit,
		done:  make(chan struct{}),
	}
}

// Start computes the rankings once and then on every tick until Stop or ctx is done.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	w.ticker = time.NewTicker(interval)

	go func() {
		if err := w.ComputeAll(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to compute rankings")
		}
		for {
			select {
			case <-w.ticker.C:
				if err := w.ComputeAll(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to compute rankings")
				}
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Ranking worker started")
}

// Stop stops the background computation. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.ticker != nil {
			w.ticker.Stop()
		}
		close(w.done)
		log.Info().Msg("Ranking worker stopped")
	})
}

// ComputeAll rebuilds the ranking of every city.
func (w *Worker) ComputeAll(ctx context.Context) error {
	if w.cache == nil {
		return nil
	}
	start := time.Now()

	cityIDs, err := w.repo.CityIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cities: %w", err)
	}

	cityCount, areaCount := 0, 0
	for _, id := range cityIDs {
		n, err := w.ComputeCity(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("city_id", id).Msg("Failed to compute city ranking")
			continue
		}
		if n > 0 {
			cityCount++
			areaCount += n
		}
	}

	meta := Meta{LastComputedAt: time.Now(), CityCount: cityCount, AreaCount: areaCount}
	if err := w.cache.Set(ctx, cache.RankingMetaKey(), meta, w.ttl); err != nil {
		log.Warn().Err(err).Msg("Failed to store ranking meta")
	}

	log.Info().
		Dur("duration", time.Since(start)).
		Int("cities", cityCount).
		Int("areas", areaCount).
		Msg("Completed ranking computation")
	return nil
}

// ComputeCity rebuilds one city's ranking and returns how many areas it holds.
func (w *Worker) ComputeCity(ctx context.Context, cityID string) (int, error) {
	areas, err := w.repo.HotRanking(ctx, cityID, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load business areas: %w", err)
	}

	ranked := rank(areas)
	if len(ranked) > w.limit {
		ranked = ranked[:w.limit]
	}

	members := make([]redis.Z, 0, len(ranked))
	for _, r := range ranked {
		members = append(members, redis.Z{Score: r.Score, Member: r.ID})
	}
	if err := w.cache.ReplaceZSet(ctx, cache.RankingKey(cityID), w.ttl, members...); err != nil {
		return 0, err
	}
	return len(members), nil
}

// Top returns the highest ranked areas of a city. It reads the precomputed
// sorted set and falls back to scoring the stored areas directly when the set
// is missing or Redis is unavailable.
func (w *Worker) Top(ctx context.Context, cityID string, limit int) ([]RankedArea, error) {
	if limit <= 0 {
		limit = 10
	}

	if w.cache != nil && cityID != "" {
		ranked, err := w.fromCache(ctx, cityID, limit)
		if err != nil {
			log.Warn().Err(err).Str("city_id", cityID).Msg("Falling back to repository ranking")
		} else if len(ranked) > 0 {
			return ranked, nil
		}
	}

	areas, err := w.repo.HotRanking(ctx, cityID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load hot ranking: %w", err)
	}
	ranked := rank(areas)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (w *Worker) fromCache(ctx context.Context, cityID string, limit int) ([]RankedArea, error) {
	scores, err := w.cache.ZRevRangeWithScores(ctx, cache.RankingKey(cityID), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking: %w", err)
	}

	ranked := make([]RankedArea, 0, len(scores))
	for _, z := range scores {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		area, err := w.repo.GetBusinessArea(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedArea{BusinessArea: area, Rank: len(ranked) + 1, Score: z.Score})
	}
	return ranked, nil
}

// Score combines the stored hot value with rating, foot traffic and store count.
func Score(a repo.BusinessArea) float64 {
	score := float64(a.HotValue)*0.6 +
		a.Rating*8 +
		math.Log10(1+float64(max(a.CustomerFlow, 0)))*3 +
		math.Log10(1+float64(max(a.StoreCount, 0)))*2
	return math.Round(score*100) / 100
}

func rank(areas []repo.BusinessArea) []RankedArea {
	ranked := make([]RankedArea, 0, len(areas))
	for _, a := range areas {
		ranked = append(ranked, RankedArea{BusinessArea: a, Score: Score(a)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
