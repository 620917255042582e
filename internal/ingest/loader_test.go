package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bizarea/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "cities": [
    {"code": "320500", "name": "苏州", "level": "city", "longitude": 120.5853, "latitude": 31.2989, "isHot": true, "pinyin": "suzhou", "pinyinAbbr": "SZ"}
  ],
  "businessAreas": [
    {
      "name": "观前街", "cityId": "320500", "type": "shopping", "level": "A",
      "longitude": 120.6269, "latitude": 31.3120, "hotValue": 86, "rating": 4.5,
      "stores": [
        {"name": "松鹤楼", "category": "restaurant", "rating": 4.6, "avgPrice": 160},
        {"name": "采芝斋", "category": "retail", "rating": 4.4, "avgPrice": 80}
      ]
    }
  ]
}`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suzhou.json"), []byte(seedJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r := repo.NewMemoryRepository()
	ctx := context.Background()
	stats, err := NewLoader(r).LoadFromDirectory(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Stats{Cities: 1, BusinessAreas: 1, Stores: 2}, stats)

	city, err := r.GetCity(ctx, "320500")
	require.NoError(t, err)
	assert.Equal(t, "苏州", city.Name)

	areas, total, err := r.ListBusinessAreas(ctx, repo.BusinessAreaFilter{CityID: "320500"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, 2, areas[0].StoreCount)
	assert.Len(t, areas[0].ID, 36)

	stores, total, err := r.ListStores(ctx, repo.StoreFilter{BusinessAreaID: areas[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, st := range stores {
		assert.NotEmpty(t, st.ID)
		assert.NotNil(t, st.Tags)
	}
}

func TestLoad_IsIdempotent(t *testing.T) {
	r := repo.NewMemoryRepository()
	ctx := context.Background()
	l := NewLoader(r)

	first := l.LoadSampleData(ctx)
	second := l.LoadSampleData(ctx)
	assert.Equal(t, first, second)
	assert.Zero(t, first.Failed)

	_, total, err := r.ListBusinessAreas(ctx, repo.BusinessAreaFilter{})
	require.NoError(t, err)
	assert.Equal(t, len(SampleData().BusinessAreas), total)

	hot, err := r.HotCities(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hot, 6)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"articles": []}`))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{"cities": [`))
	assert.Error(t, err)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := NewLoader(repo.NewMemoryRepository()).LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type failingRepo struct {
	repo.Repository
}

func (failingRepo) UpsertCity(ctx context.Context, c repo.City) error { return nil }

func (failingRepo) UpsertBusinessArea(ctx context.Context, a repo.BusinessArea) error {
	return errors.New("write failed")
}

func TestLoad_AreaFailureSkipsStores(t *testing.T) {
	ds, err := Decode(strings.NewReader(seedJSON))
	require.NoError(t, err)

	stats := NewLoader(failingRepo{}).Load(context.Background(), ds)
	assert.Equal(t, Stats{Cities: 1, Failed: 3}, stats)
}
