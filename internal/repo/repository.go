package repo

import (
	"context"
	"errors"
	"math"
)

var ErrNotFound = errors.New("not found")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to valid values.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type CityFilter struct {
	Level   string
	Keyword string
	Page    Page
}

type BusinessAreaFilter struct {
	CityID string
	Type   string
	Level  string
	// SortBy is one of hot_value, rating, customer_flow.
	SortBy string
	Asc    bool
	Page   Page
}

type StoreFilter struct {
	BusinessAreaID string
	Category       string
	// SortBy is one of rating, price, reviews.
	SortBy string
	Page   Page
}

// NearbyParams selects rows within Radius meters of a point.
type NearbyParams struct {
	Longitude float64
	Latitude  float64
	Radius    float64
	Limit     int
}

// Repository is the storage used by the API and the ranking worker.
type Repository interface {
	ListCities(ctx context.Context, f CityFilter) ([]City, int, error)
	HotCities(ctx context.Context, limit int) ([]City, error)
	GetCity(ctx context.Context, id string) (City, error)
	SearchCities(ctx context.Context, keyword string, limit int) ([]City, error)
	CityIDs(ctx context.Context) ([]string, error)

	ListBusinessAreas(ctx context.Context, f BusinessAreaFilter) ([]BusinessArea, int, error)
	GetBusinessArea(ctx context.Context, id string) (BusinessArea, error)
	NearbyBusinessAreas(ctx context.Context, p NearbyParams) ([]NearbyBusinessArea, error)
	HotRanking(ctx context.Context, cityID string, limit int) ([]BusinessArea, error)

	ListStores(ctx context.Context, f StoreFilter) ([]Store, int, error)
	GetStore(ctx context.Context, id string) (Store, error)
	NearbyStores(ctx context.Context, p NearbyParams) ([]NearbyStore, error)

	UpsertCity(ctx context.Context, c City) error
	UpsertBusinessArea(ctx context.Context, a BusinessArea) error
	UpsertStore(ctx context.Context, s Store) error

	Ping(ctx context.Context) error
	Close()
}

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two points in meters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
