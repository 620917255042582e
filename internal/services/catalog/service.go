// Package catalog serves the stored cities, business areas and stores.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bizarea/internal/cache"
	"bizarea/internal/repo"

	"github.com/rs/zerolog/log"
)

type Service struct {
	repo  repo.Repository
	cache *cache.RedisCache
}

func NewService(r repo.Repository, c *cache.RedisCache) *Service {
	return &Service{repo: r, cache: c}
}

// AreaStats summarizes the stores of a business area.
type AreaStats struct {
	StoreCount       int     `json:"storeCount"`
	AvgRating        float64 `json:"avgRating"`
	AvgPrice         float64 `json:"avgPrice"`
	RecommendedCount int     `json:"recommendedCount"`
}

type AreaDetail struct {
	repo.BusinessArea
	CityName string    `json:"cityName"`
	Stats    AreaStats `json:"stats"`
}

func (s *Service) ListCities(ctx context.Context, f repo.CityFilter) ([]repo.City, int, error) {
	return s.repo.ListCities(ctx, f)
}

// HotCities is read through the cache; the list changes only on ingest.
func (s *Service) HotCities(ctx context.Context, limit int) ([]repo.City, error) {
	if s.cache == nil {
		return s.repo.HotCities(ctx, limit)
	}

	data, err := s.cache.GetOrSet(ctx, cache.HotCitiesKey(limit), cache.HotCitiesTTL, func() (any, error) {
		return s.repo.HotCities(ctx, limit)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Hot cities cache unavailable")
		return s.repo.HotCities(ctx, limit)
	}

	var cities []repo.City
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("failed to decode hot cities: %w", err)
	}
	if cities == nil {
		cities = []repo.City{}
	}
	return cities, nil
}

func (s *Service) GetCity(ctx context.Context, id string) (repo.City, error) {
	return s.repo.GetCity(ctx, id)
}

func (s *Service) SearchCities(ctx context.Context, keyword string, limit int) ([]repo.City, error) {
	return s.repo.SearchCities(ctx, keyword, limit)
}

// CityBusinessAreas lists the business areas of an existing city.
func (s *Service) CityBusinessAreas(ctx context.Context, cityID string, f repo.BusinessAreaFilter) ([]repo.BusinessArea, int, error) {
	if _, err := s.repo.GetCity(ctx, cityID); err != nil {
		return nil, 0, err
	}
	f.CityID = cityID
	return s.repo.ListBusinessAreas(ctx, f)
}

func (s *Service) ListBusinessAreas(ctx context.Context, f repo.BusinessAreaFilter) ([]repo.BusinessArea, int, error) {
	return s.repo.ListBusinessAreas(ctx, f)
}

// BusinessAreaDetail returns an area with its city name and store statistics.
func (s *Service) BusinessAreaDetail(ctx context.Context, id string) (AreaDetail, error) {
	area, err := s.repo.GetBusinessArea(ctx, id)
	if err != nil {
		return AreaDetail{}, err
	}

	detail := AreaDetail{BusinessArea: area}
	if city, err := s.repo.GetCity(ctx, area.CityID); err == nil {
		detail.CityName = city.Name
	} else if !errors.Is(err, repo.ErrNotFound) {
		return AreaDetail{}, err
	}

	stats, err := s.areaStats(ctx, id)
	if err != nil {
		return AreaDetail{}, err
	}
	detail.Stats = stats
	return detail, nil
}

func (s *Service) areaStats(ctx context.Context, areaID string) (AreaStats, error) {
	var stats AreaStats
	var ratingSum, priceSum float64

	page := repo.Page{Page: 1, PageSize: repo.MaxPageSize}
	for {
		stores, total, err := s.repo.ListStores(ctx, repo.StoreFilter{BusinessAreaID: areaID, Page: page})
		if err != nil {
			return AreaStats{}, err
		}
		for _, st := range stores {
			ratingSum += st.Rating
			priceSum += st.AvgPrice
			if st.IsRecommended {
				stats.RecommendedCount++
			}
		}
		stats.StoreCount += len(stores)
		if len(stores) == 0 || stats.StoreCount >= total {
			break
		}
		page.Page++
	}

	if stats.StoreCount > 0 {
		stats.AvgRating = ratingSum / float64(stats.StoreCount)
		stats.AvgPrice = priceSum / float64(stats.StoreCount)
	}
	return stats, nil
}

func (s *Service) NearbyBusinessAreas(ctx context.Context, p repo.NearbyParams) ([]repo.NearbyBusinessArea, error) {
	return s.repo.NearbyBusinessAreas(ctx, p)
}

// AreaStores lists the stores of an existing business area.
func (s *Service) AreaStores(ctx context.Context, areaID string, f repo.StoreFilter) ([]repo.Store, int, error) {
	if _, err := s.repo.GetBusinessArea(ctx, areaID); err != nil {
		return nil, 0, err
	}
	f.BusinessAreaID = areaID
	return s.repo.ListStores(ctx, f)
}

func (s *Service) ListStores(ctx context.Context, f repo.StoreFilter) ([]repo.Store, int, error) {
	return s.repo.ListStores(ctx, f)
}

func (s *Service) GetStore(ctx context.Context, id string) (repo.Store, error) {
	return s.repo.GetStore(ctx, id)
}

func (s *Service) NearbyStores(ctx context.Context, p repo.NearbyParams) ([]repo.NearbyStore, error) {
	return s.repo.NearbyStores(ctx, p)
}
