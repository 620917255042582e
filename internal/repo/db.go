package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresRepository stores cities, business areas and stores in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to databaseURL and ensures the schema exists.
func NewPostgresRepository(ctx context.Context, databaseURL string, maxConns int32) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	r := &PostgresRepository{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Int32("max_conns", cfg.MaxConns).Msg("Postgres connection established")
	return r, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS cities (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	code           TEXT NOT NULL UNIQUE,
	level          TEXT NOT NULL,
	parent_id      TEXT REFERENCES cities(id),
	longitude      DOUBLE PRECISION NOT NULL,
	latitude       DOUBLE PRECISION NOT NULL,
	population     BIGINT NOT NULL DEFAULT 0,
	area           DOUBLE PRECISION NOT NULL DEFAULT 0,
	economic_level TEXT NOT NULL DEFAULT 'medium',
	is_hot         BOOLEAN NOT NULL DEFAULT FALSE,
	pinyin         TEXT NOT NULL DEFAULT '',
	pinyin_abbr    TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cities_level_idx ON cities (level);

CREATE TABLE IF NOT EXISTS business_areas (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	city_id         TEXT NOT NULL REFERENCES cities(id),
	type            TEXT NOT NULL DEFAULT 'mixed',
	level           TEXT NOT NULL DEFAULT 'C',
	longitude       DOUBLE PRECISION NOT NULL,
	latitude        DOUBLE PRECISION NOT NULL,
	hot_value       INTEGER NOT NULL DEFAULT 0,
	avg_consumption DOUBLE PRECISION NOT NULL DEFAULT 0,
	customer_flow   INTEGER NOT NULL DEFAULT 0,
	store_count     INTEGER NOT NULL DEFAULT 0,
	rating          DOUBLE PRECISION NOT NULL DEFAULT 0,
	address         TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	tags            TEXT[] NOT NULL DEFAULT '{}',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS business_areas_city_hot_idx ON business_areas (city_id, hot_value DESC);

CREATE TABLE IF NOT EXISTS stores (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	business_area_id TEXT NOT NULL REFERENCES business_areas(id),
	category         TEXT NOT NULL,
	sub_category     TEXT NOT NULL DEFAULT '',
	longitude        DOUBLE PRECISION NOT NULL,
	latitude         DOUBLE PRECISION NOT NULL,
	rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count     INTEGER NOT NULL DEFAULT 0,
	avg_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
	phone            TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	tags             TEXT[] NOT NULL DEFAULT '{}',
	is_recommended   BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS stores_area_idx ON stores (business_area_id);
`

func (r *PostgresRepository) migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const cityColumns = `id, name, code, level, parent_id, longitude, latitude, population, area,
	economic_level, is_hot, pinyin, pinyin_abbr, updated_at`

func scanCity(row pgx.Row) (City, error) {
	var c City
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Level, &c.ParentID, &c.Longitude, &c.Latitude,
		&c.Population, &c.Area, &c.EconomicLevel, &c.IsHot, &c.Pinyin, &c.PinyinAbbr, &c.UpdatedAt)
	return c, err
}

const areaColumns = `id, name, city_id, type, level, longitude, latitude, hot_value, avg_consumption,
	customer_flow, store_count, rating, address, description, tags, updated_at`

func scanArea(row pgx.Row, extra ...any) (BusinessArea, error) {
	var a BusinessArea
	dest := []any{&a.ID, &a.Name, &a.CityID, &a.Type, &a.Level, &a.Longitude, &a.Latitude,
		&a.HotValue, &a.AvgConsumption, &a.CustomerFlow, &a.StoreCount, &a.Rating, &a.Address,
		&a.Description, &a.Tags, &a.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return a, err
}

const storeColumns = `id, name, business_area_id, category, sub_category, longitude, latitude, rating,
	review_count, avg_price, phone, address, tags, is_recommended, updated_at`

func scanStore(row pgx.Row, extra ...any) (Store, error) {
	var s Store
	dest := []any{&s.ID, &s.Name, &s.BusinessAreaID, &s.Category, &s.SubCategory, &s.Longitude,
		&s.Latitude, &s.Rating, &s.ReviewCount, &s.AvgPrice, &s.Phone, &s.Address, &s.Tags,
		&s.IsRecommended, &s.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return s, err
}

// haversineSQL is the distance in meters from ($1 lng, $2 lat) to the row.
const haversineSQL = `(6371000 * 2 * asin(sqrt(
	power(sin(radians(latitude - $2) / 2), 2) +
	cos(radians($2)) * cos(radians(latitude)) * power(sin(radians(longitude - $1) / 2), 2))))`

func (r *PostgresRepository) ListCities(ctx context.Context, f CityFilter) ([]City, int, error) {
	p := f.Page.Normalize()
	where := `WHERE ($1::text = '' OR level = $1)
		AND ($2::text = '' OR name LIKE '%' || $2 || '%'
		     OR lower(pinyin) LIKE '%' || lower($2) || '%'
		     OR upper(pinyin_abbr) LIKE '%' || upper($2) || '%')`
	keyword := strings.TrimSpace(f.Keyword)

	total, err := r.count(ctx, `SELECT count(*) FROM cities `+where, f.Level, keyword)
	if err != nil {
		return nil, 0, err
	}

	cities, err := r.queryCities(ctx, `SELECT `+cityColumns+` FROM cities `+where+`
		ORDER BY name LIMIT $3 OFFSET $4`, f.Level, keyword, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	return cities, total, nil
}

func (r *PostgresRepository) HotCities(ctx context.Context, limit int) ([]City, error) {
	return r.queryCities(ctx, `SELECT `+cityColumns+` FROM cities
		WHERE is_hot AND level = 'city' ORDER BY name LIMIT $1`, limitOrAll(limit))
}

func (r *PostgresRepository) GetCity(ctx context.Context, id string) (City, error) {
	c, err := scanCity(r.pool.QueryRow(ctx, `SELECT `+cityColumns+` FROM cities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return City{}, ErrNotFound
	}
	if err != nil {
		return City{}, fmt.Errorf("failed to get city %s: %w", id, err)
	}
	return c, nil
}

func (r *PostgresRepository) SearchCities(ctx context.Context, keyword string, limit int) ([]City, error) {
	return r.queryCities(ctx, `SELECT `+cityColumns+` FROM cities
		WHERE name LIKE '%' || $1::text || '%'
		   OR lower(pinyin) LIKE '%' || lower($1) || '%'
		   OR upper(pinyin_abbr) LIKE '%' || upper($1) || '%'
		ORDER BY is_hot DESC, name
		LIMIT $2`, strings.TrimSpace(keyword), limitOrAll(limit))
}

func (r *PostgresRepository) CityIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM cities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list city ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *PostgresRepository) queryCities(ctx context.Context, sql string, args ...any) ([]City, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	cities := []City{}
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

var areaOrder = map[string]string{
	"hot_value":     "hot_value",
	"rating":        "rating",
	"customer_flow": "customer_flow",
}

func (r *PostgresRepository) ListBusinessAreas(ctx context.Context, f BusinessAreaFilter) ([]BusinessArea, int, error) {
	p := f.Page.Normalize()
	column, ok := areaOrder[f.SortBy]
	if !ok {
		column = "hot_value"
	}
	direction := "DESC"
	if f.Asc {
		direction = "ASC"
	}

	where := `WHERE ($1::text = '' OR city_id = $1) AND ($2::text = '' OR type = $2) AND ($3::text = '' OR level = $3)`
	total, err := r.count(ctx, `SELECT count(*) FROM business_areas `+where, f.CityID, f.Type, f.Level)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+areaColumns+` FROM business_areas `+where+
		fmt.Sprintf(` ORDER BY %s %s, id LIMIT $4 OFFSET $5`, column, direction),
		f.CityID, f.Type, f.Level, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list business areas: %w", err)
	}
	defer rows.Close()

	areas := []BusinessArea{}
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan business area: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, total, rows.Err()
}

func (r *PostgresRepository) GetBusinessArea(ctx context.Context, id string) (BusinessArea, error) {
	a, err := scanArea(r.pool.QueryRow(ctx, `SELECT `+areaColumns+` FROM business_areas WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return BusinessArea{}, ErrNotFound
	}
	if err != nil {
		return BusinessArea{}, fmt.Errorf("failed to get business area %s: %w", id, err)
	}
	return a, nil
}

func (r *PostgresRepository) NearbyBusinessAreas(ctx context.Context, p NearbyParams) ([]NearbyBusinessArea, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+areaColumns+`, round(`+haversineSQL+`)::int AS distance FROM business_areas
		) t
		WHERE distance <= $3::float8
		ORDER BY distance
		LIMIT $4`,
		p.Longitude, p.Latitude, p.Radius, orLimit(p.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby business areas: %w", err)
	}
	defer rows.Close()

	nearby := []NearbyBusinessArea{}
	for rows.Next() {
		var distance int
		a, err := scanArea(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan business area: %w", err)
		}
		nearby = append(nearby, NearbyBusinessArea{BusinessArea: a, Distance: distance})
	}
	return nearby, rows.Err()
}

func (r *PostgresRepository) HotRanking(ctx context.Context, cityID string, limit int) ([]BusinessArea, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+areaColumns+` FROM business_areas
		WHERE ($1::text = '' OR city_id = $1)
		ORDER BY hot_value DESC, id
		LIMIT $2`, cityID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query hot ranking: %w", err)
	}
	defer rows.Close()

	areas := []BusinessArea{}
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan business area: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

var storeOrder = map[string]string{
	"rating":  "rating DESC",
	"price":   "avg_price ASC",
	"reviews": "review_count DESC",
}

func (r *PostgresRepository) ListStores(ctx context.Context, f StoreFilter) ([]Store, int, error) {
	p := f.Page.Normalize()
	order, ok := storeOrder[f.SortBy]
	if !ok {
		order = storeOrder["rating"]
	}

	where := `WHERE ($1::text = '' OR business_area_id = $1) AND ($2::text = '' OR category = $2)`
	total, err := r.count(ctx, `SELECT count(*) FROM stores `+where, f.BusinessAreaID, f.Category)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+storeColumns+` FROM stores `+where+
		` ORDER BY `+order+`, id LIMIT $3 OFFSET $4`,
		f.BusinessAreaID, f.Category, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	stores := []Store{}
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}
	return stores, total, rows.Err()
}

func (r *PostgresRepository) GetStore(ctx context.Context, id string) (Store, error) {
	s, err := scanStore(r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, ErrNotFound
	}
	if err != nil {
		return Store{}, fmt.Errorf("failed to get store %s: %w", id, err)
	}
	return s, nil
}

func (r *PostgresRepository) NearbyStores(ctx context.Context, p NearbyParams) ([]NearbyStore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+storeColumns+`, round(`+haversineSQL+`)::int AS distance FROM stores
		) t
		WHERE distance <= $3::float8
		ORDER BY distance
		LIMIT $4`,
		p.Longitude, p.Latitude, p.Radius, orLimit(p.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby stores: %w", err)
	}
	defer rows.Close()

	nearby := []NearbyStore{}
	for rows.Next() {
		var distance int
		s, err := scanStore(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		nearby = append(nearby, NearbyStore{Store: s, Distance: distance})
	}
	return nearby, rows.Err()
}

func (r *PostgresRepository) UpsertCity(ctx context.Context, c City) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cities (`+cityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, code = EXCLUDED.code, level = EXCLUDED.level,
			parent_id = EXCLUDED.parent_id, longitude = EXCLUDED.longitude,
			latitude = EXCLUDED.latitude, population = EXCLUDED.population, area = EXCLUDED.area,
			economic_level = EXCLUDED.economic_level, is_hot = EXCLUDED.is_hot,
			pinyin = EXCLUDED.pinyin, pinyin_abbr = EXCLUDED.pinyin_abbr, updated_at = now()`,
		c.ID, c.Name, c.Code, c.Level, c.ParentID, c.Longitude, c.Latitude, c.Population, c.Area,
		c.EconomicLevel, c.IsHot, c.Pinyin, c.PinyinAbbr)
	if err != nil {
		return fmt.Errorf("failed to upsert city %s: %w", c.ID, err)
	}
	return nil
}

func (r *PostgresRepository) UpsertBusinessArea(ctx context.Context, a BusinessArea) error {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_areas (`+areaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, city_id = EXCLUDED.city_id, type = EXCLUDED.type,
			level = EXCLUDED.level, longitude = EXCLUDED.longitude, latitude = EXCLUDED.latitude,
			hot_value = EXCLUDED.hot_value, avg_consumption = EXCLUDED.avg_consumption,
			customer_flow = EXCLUDED.customer_flow, store_count = EXCLUDED.store_count,
			rating = EXCLUDED.rating, address = EXCLUDED.address,
			description = EXCLUDED.description, tags = EXCLUDED.tags, updated_at = now()`,
		a.ID, a.Name, a.CityID, a.Type, a.Level, a.Longitude, a.Latitude, a.HotValue,
		a.AvgConsumption, a.CustomerFlow, a.StoreCount, a.Rating, a.Address, a.Description, a.Tags)
	if err != nil {
		return fmt.Errorf("failed to upsert business area %s: %w", a.ID, err)
	}
	return nil
}

func (r *PostgresRepository) UpsertStore(ctx context.Context, s Store) error {
	if s.Tags == nil {
		s.Tags = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stores (`+storeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, business_area_id = EXCLUDED.business_area_id,
			category = EXCLUDED.category, sub_category = EXCLUDED.sub_category,
			longitude = EXCLUDED.longitude, latitude = EXCLUDED.latitude, rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count, avg_price = EXCLUDED.avg_price,
			phone = EXCLUDED.phone, address = EXCLUDED.address, tags = EXCLUDED.tags,
			is_recommended = EXCLUDED.is_recommended, updated_at = now()`,
		s.ID, s.Name, s.BusinessAreaID, s.Category, s.SubCategory, s.Longitude, s.Latitude,
		s.Rating, s.ReviewCount, s.AvgPrice, s.Phone, s.Address, s.Tags, s.IsRecommended)
	if err != nil {
		return fmt.Errorf("failed to upsert store %s: %w", s.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) count(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// limitOrAll maps a non-positive limit to no limit (LIMIT NULL).
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
