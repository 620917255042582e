package repo

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresRepo runs against POSTGRES_URL inside a throwaway schema.
func newPostgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schemaName := fmt.Sprintf("bizarea_test_%d", time.Now().UnixNano())
	admin, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schemaName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schemaName+" CASCADE")
		admin.Close(context.Background())
	})

	r, err := NewPostgresRepository(ctx, withSearchPath(t, dsn, schemaName), 4)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	seedRepository(t, r)
	return r
}

func withSearchPath(t *testing.T, dsn, schemaName string) string {
	t.Helper()
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		q := u.Query()
		q.Set("search_path", schemaName)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return dsn + " search_path=" + schemaName
}

// seedRepository loads the same fixtures as seededRepo through any Repository.
func seedRepository(t *testing.T, r Repository) {
	t.Helper()
	ctx := context.Background()
	mem := seededRepo(t)

	cities, _, err := mem.ListCities(ctx, CityFilter{Page: Page{PageSize: MaxPageSize}})
	require.NoError(t, err)
	for _, c := range cities {
		require.NoError(t, r.UpsertCity(ctx, c))
	}
	areas, _, err := mem.ListBusinessAreas(ctx, BusinessAreaFilter{Page: Page{PageSize: MaxPageSize}})
	require.NoError(t, err)
	for _, a := range areas {
		require.NoError(t, r.UpsertBusinessArea(ctx, a))
	}
	stores, _, err := mem.ListStores(ctx, StoreFilter{Page: Page{PageSize: MaxPageSize}})
	require.NoError(t, err)
	for _, s := range stores {
		require.NoError(t, r.UpsertStore(ctx, s))
	}
}

func TestPostgresRepository_Cities(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	cities, total, err := r.ListCities(ctx, CityFilter{Level: LevelCity, Page: Page{Page: 1, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, cities, 2)

	hot, err := r.HotCities(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hot, 2)

	found, err := r.SearchCities(ctx, "sh", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "310100", found[0].ID)

	_, err = r.GetCity(ctx, "000000")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := r.CityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"110100", "310100", "320000", "320500"}, ids)
}

func TestPostgresRepository_UpsertUpdatesExistingRows(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	a, err := r.GetBusinessArea(ctx, "a3")
	require.NoError(t, err)
	a.HotValue = 99
	a.Tags = []string{"夜市"}
	require.NoError(t, r.UpsertBusinessArea(ctx, a))

	got, err := r.GetBusinessArea(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, 99, got.HotValue)
	assert.Equal(t, []string{"夜市"}, got.Tags)

	_, total, err := r.ListBusinessAreas(ctx, BusinessAreaFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestPostgresRepository_BusinessAreas(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	areas, total, err := r.ListBusinessAreas(ctx, BusinessAreaFilter{CityID: "110100", SortBy: "rating"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, areas, 3)
	assert.Equal(t, "a2", areas[0].ID)

	ranked, err := r.HotRanking(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	assert.Equal(t, "a4", ranked[0].ID)

	ranked, err = r.HotRanking(ctx, "110100", 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)

	nearby, err := r.NearbyBusinessAreas(ctx, NearbyParams{Longitude: 116.4109, Latitude: 39.9149, Radius: 1000})
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, "a1", nearby[0].ID)
	assert.Equal(t, 0, nearby[0].Distance)

	nearby, err = r.NearbyBusinessAreas(ctx, NearbyParams{Longitude: 116.4109, Latitude: 39.9149, Radius: 6000})
	require.NoError(t, err)
	require.Len(t, nearby, 3)
	for i := 1; i < len(nearby); i++ {
		assert.LessOrEqual(t, nearby[i-1].Distance, nearby[i].Distance)
	}
}

func TestPostgresRepository_Stores(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	stores, total, err := r.ListStores(ctx, StoreFilter{BusinessAreaID: "a1", Category: "restaurant", SortBy: "price"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, stores, 2)
	assert.Equal(t, "s2", stores[0].ID)

	_, err = r.GetStore(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	nearby, err := r.NearbyStores(ctx, NearbyParams{Longitude: 116.4109, Latitude: 39.9149, Radius: 1000, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, nearby, 2)
}
