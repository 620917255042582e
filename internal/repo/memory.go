package repo

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultNearbyLimit = 20

// MemoryRepository keeps everything in maps. It backs local runs without
// Postgres and the tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	cities map[string]City
	areas  map[string]BusinessArea
	stores map[string]Store
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		cities: make(map[string]City),
		areas:  make(map[string]BusinessArea),
		stores: make(map[string]Store),
	}
}

func (r *MemoryRepository) ListCities(ctx context.Context, f CityFilter) ([]City, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []City
	for _, c := range r.cities {
		if f.Level != "" && c.Level != f.Level {
			continue
		}
		if f.Keyword != "" && !cityMatches(c, f.Keyword) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	return paginate(matched, f.Page), len(matched), nil
}

func (r *MemoryRepository) HotCities(ctx context.Context, limit int) ([]City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hot := []City{}
	for _, c := range r.cities {
		if c.IsHot && c.Level == LevelCity {
			hot = append(hot, c)
		}
	}
	sort.Slice(hot, func(i, j int) bool { return hot[i].Name < hot[j].Name })
	return truncate(hot, limit), nil
}

func (r *MemoryRepository) GetCity(ctx context.Context, id string) (City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cities[id]
	if !ok {
		return City{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepository) SearchCities(ctx context.Context, keyword string, limit int) ([]City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := []City{}
	for _, c := range r.cities {
		if cityMatches(c, keyword) {
			found = append(found, c)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].IsHot != found[j].IsHot {
			return found[i].IsHot
		}
		return found[i].Name < found[j].Name
	})
	return truncate(found, limit), nil
}

func (r *MemoryRepository) CityIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.cities))
	for id := range r.cities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryRepository) ListBusinessAreas(ctx context.Context, f BusinessAreaFilter) ([]BusinessArea, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []BusinessArea
	for _, a := range r.areas {
		if f.CityID != "" && a.CityID != f.CityID {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Level != "" && a.Level != f.Level {
			continue
		}
		matched = append(matched, a)
	}

	key := func(a BusinessArea) float64 {
		switch f.SortBy {
		case "rating":
			return a.Rating
		case "customer_flow":
			return float64(a.CustomerFlow)
		default:
			return float64(a.HotValue)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ki, kj := key(matched[i]), key(matched[j])
		if ki == kj {
			return matched[i].ID < matched[j].ID
		}
		if f.Asc {
			return ki < kj
		}
		return ki > kj
	})

	return paginate(matched, f.Page), len(matched), nil
}

func (r *MemoryRepository) GetBusinessArea(ctx context.Context, id string) (BusinessArea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.areas[id]
	if !ok {
		return BusinessArea{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepository) NearbyBusinessAreas(ctx context.Context, p NearbyParams) ([]NearbyBusinessArea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nearby := []NearbyBusinessArea{}
	for _, a := range r.areas {
		d := haversineMeters(p.Latitude, p.Longitude, a.Latitude, a.Longitude)
		if d <= p.Radius {
			nearby = append(nearby, NearbyBusinessArea{BusinessArea: a, Distance: int(math.Round(d))})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].Distance < nearby[j].Distance })
	return truncate(nearby, orLimit(p.Limit)), nil
}

func (r *MemoryRepository) HotRanking(ctx context.Context, cityID string, limit int) ([]BusinessArea, error) {
	areas, _, err := r.ListBusinessAreas(ctx, BusinessAreaFilter{
		CityID: cityID,
		SortBy: "hot_value",
		Page:   Page{Page: 1, PageSize: MaxPageSize},
	})
	if err != nil {
		return nil, err
	}
	return truncate(areas, limit), nil
}

func (r *MemoryRepository) ListStores(ctx context.Context, f StoreFilter) ([]Store, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Store
	for _, s := range r.stores {
		if f.BusinessAreaID != "" && s.BusinessAreaID != f.BusinessAreaID {
			continue
		}
		if f.Category != "" && s.Category != f.Category {
			continue
		}
		matched = append(matched, s)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch f.SortBy {
		case "price":
			if a.AvgPrice != b.AvgPrice {
				return a.AvgPrice < b.AvgPrice
			}
		case "reviews":
			if a.ReviewCount != b.ReviewCount {
				return a.ReviewCount > b.ReviewCount
			}
		default:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		}
		return a.ID < b.ID
	})

	return paginate(matched, f.Page), len(matched), nil
}

func (r *MemoryRepository) GetStore(ctx context.Context, id string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stores[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) NearbyStores(ctx context.Context, p NearbyParams) ([]NearbyStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nearby := []NearbyStore{}
	for _, s := range r.stores {
		d := haversineMeters(p.Latitude, p.Longitude, s.Latitude, s.Longitude)
		if d <= p.Radius {
			nearby = append(nearby, NearbyStore{Store: s, Distance: int(math.Round(d))})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].Distance < nearby[j].Distance })
	return truncate(nearby, orLimit(p.Limit)), nil
}

func (r *MemoryRepository) UpsertCity(ctx context.Context, c City) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.UpdatedAt = time.Now()
	r.cities[c.ID] = c
	return nil
}

func (r *MemoryRepository) UpsertBusinessArea(ctx context.Context, a BusinessArea) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Tags == nil {
		a.Tags = []string{}
	}
	a.UpdatedAt = time.Now()
	r.areas[a.ID] = a
	return nil
}

func (r *MemoryRepository) UpsertStore(ctx context.Context, s Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Tags == nil {
		s.Tags = []string{}
	}
	s.UpdatedAt = time.Now()
	r.stores[s.ID] = s
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() {}

func cityMatches(c City, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return true
	}
	return strings.Contains(c.Name, keyword) ||
		strings.Contains(strings.ToLower(c.Pinyin), strings.ToLower(keyword)) ||
		strings.Contains(strings.ToUpper(c.PinyinAbbr), strings.ToUpper(keyword))
}

func paginate[T any](items []T, p Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func orLimit(limit int) int {
	if limit <= 0 {
		return defaultNearbyLimit
	}
	return limit
}
