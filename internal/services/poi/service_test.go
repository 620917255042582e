package poi

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bizarea/internal/amap"
	"bizarea/internal/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	aroundCalls atomic.Int32
	textCalls   atomic.Int32
	areaCalls   atomic.Int32
	poiCalls    atomic.Int32

	err     error
	areas   []amap.Place
	release chan struct{}
}

func (f *fakeSearcher) SearchAround(ctx context.Context, q amap.SearchQuery) (*amap.SearchResult, error) {
	f.aroundCalls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &amap.SearchResult{
		Places: []amap.RawPlace{{ID: "B1", Name: amap.FlexString(q.Keywords), BizExt: amap.BizExt{Rating: "4.5"}}},
		Count:  1,
		Info:   "OK",
	}, nil
}

func (f *fakeSearcher) SearchText(ctx context.Context, q amap.SearchQuery) (*amap.SearchResult, error) {
	f.textCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &amap.SearchResult{Places: []amap.RawPlace{}, Info: "OK"}, nil
}

func (f *fakeSearcher) SearchBusinessAreas(ctx context.Context, center amap.Location, radius int) []amap.Place {
	f.areaCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if ctx.Err() != nil || f.areas == nil {
		return []amap.Place{}
	}
	return f.areas
}

func (f *fakeSearcher) SearchNearbyPois(ctx context.Context, center amap.Location, radius int) []amap.Place {
	f.poiCalls.Add(1)
	return []amap.Place{{ID: "poi_0", Name: "小馆", Category: amap.CategoryDining, Photos: []amap.Photo{}, Tags: []string{}}}
}

func setupService(t *testing.T, f *fakeSearcher) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(f, cache.NewFromClient(client)), mr
}

var center = amap.Location{Lng: 116.397428, Lat: 39.90923}

func TestSearchAround_CachesResults(t *testing.T) {
	f := &fakeSearcher{}
	svc, mr := setupService(t, f)
	ctx := context.Background()
	q := amap.SearchQuery{Location: center, Keywords: "咖啡"}

	first, err := svc.SearchAround(ctx, q)
	require.NoError(t, err)
	second, err := svc.SearchAround(ctx, q)
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.aroundCalls.Load())
	require.Len(t, second.Places, 1)
	assert.Equal(t, first.Places[0].ID, second.Places[0].ID)
	assert.Equal(t, amap.FlexString("4.5"), second.Places[0].BizExt.Rating)

	mr.FastForward(cache.AroundTTL + time.Second)
	_, err = svc.SearchAround(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.aroundCalls.Load())
}

func TestSearchAround_ErrorsAreNotCached(t *testing.T) {
	searchErr := &amap.SearchError{Message: "搜索附近POI失败"}
	f := &fakeSearcher{err: searchErr}
	svc, _ := setupService(t, f)
	q := amap.SearchQuery{Location: center}

	for i := 0; i < 2; i++ {
		_, err := svc.SearchAround(context.Background(), q)
		assert.ErrorIs(t, err, searchErr)
	}
	assert.EqualValues(t, 2, f.aroundCalls.Load())
}

func TestSearchText_CachesResults(t *testing.T) {
	f := &fakeSearcher{}
	svc, _ := setupService(t, f)
	q := amap.SearchQuery{Keywords: "星巴克", City: "北京"}

	for i := 0; i < 3; i++ {
		_, err := svc.SearchText(context.Background(), q)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.textCalls.Load())
}

func TestBusinessAreas_EmptyResultsAreNotCached(t *testing.T) {
	f := &fakeSearcher{}
	svc, _ := setupService(t, f)
	ctx := context.Background()

	areas := svc.BusinessAreas(ctx, center, 3000)
	assert.NotNil(t, areas)
	assert.Empty(t, areas)

	f.areas = []amap.Place{{ID: "A", Name: "万达广场", HotValue: 85, Photos: []amap.Photo{}, Tags: []string{}}}
	areas = svc.BusinessAreas(ctx, center, 3000)
	require.Len(t, areas, 1)

	areas = svc.BusinessAreas(ctx, center, 3000)
	require.Len(t, areas, 1)
	assert.Equal(t, 85, areas[0].HotValue)
	assert.EqualValues(t, 2, f.areaCalls.Load())
}

func TestNearbyPOIs_CachedPerRadius(t *testing.T) {
	f := &fakeSearcher{}
	svc, _ := setupService(t, f)
	ctx := context.Background()

	svc.NearbyPOIs(ctx, center, 1000)
	svc.NearbyPOIs(ctx, center, 1000)
	pois := svc.NearbyPOIs(ctx, center, 500)

	require.Len(t, pois, 1)
	assert.Equal(t, amap.CategoryDining, pois[0].Category)
	assert.EqualValues(t, 2, f.poiCalls.Load())
}

func TestSearchAround_ConcurrentCallsShareOneRequest(t *testing.T) {
	f := &fakeSearcher{release: make(chan struct{})}
	svc := NewService(f, nil)
	q := amap.SearchQuery{Location: center, Keywords: "火锅"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.SearchAround(context.Background(), q)
			assert.NoError(t, err)
			assert.Len(t, res.Places, 1)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.aroundCalls.Load())
}

func TestSearchAround_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeSearcher{release: make(chan struct{})}
	svc := NewService(f, nil)
	q := amap.SearchQuery{Location: center, Keywords: "烤鸭"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.SearchAround(firstCtx, q)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.aroundCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		res *amap.SearchResult
		err error
	}
	second := make(chan result, 1)
	go func() {
		res, err := svc.SearchAround(context.Background(), q)
		second <- result{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(f.release)
	got := <-second
	require.NoError(t, got.err)
	require.Len(t, got.res.Places, 1)
	assert.EqualValues(t, 1, f.aroundCalls.Load())
}

func TestBusinessAreas_CancelledCallerDoesNotEmptyOthers(t *testing.T) {
	f := &fakeSearcher{
		release: make(chan struct{}),
		areas:   []amap.Place{{ID: "A", Name: "大悦城", HotValue: 85, Photos: []amap.Photo{}, Tags: []string{}}},
	}
	svc, _ := setupService(t, f)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan []amap.Place, 1)
	go func() { first <- svc.BusinessAreas(firstCtx, center, 3000) }()
	require.Eventually(t, func() bool { return f.areaCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan []amap.Place, 1)
	go func() { second <- svc.BusinessAreas(context.Background(), center, 3000) }()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	got := <-first
	assert.NotNil(t, got)
	assert.Empty(t, got)

	close(f.release)
	areas := <-second
	require.Len(t, areas, 1)
	assert.Equal(t, "A", areas[0].ID)
	assert.EqualValues(t, 1, f.areaCalls.Load())

	// the shared lookup finished on its own context and was cached
	assert.Len(t, svc.BusinessAreas(context.Background(), center, 3000), 1)
	assert.EqualValues(t, 1, f.areaCalls.Load())
}

func TestSearchAround_SharedLookupBoundedByFlightTimeout(t *testing.T) {
	f := &fakeSearcher{release: make(chan struct{})}
	defer close(f.release)
	svc := NewService(f, nil, WithFlightTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := svc.SearchAround(context.Background(), amap.SearchQuery{Location: center, Keywords: "烤鸭"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewService_DefaultFlightTimeoutCoversAggregates(t *testing.T) {
	svc := NewService(&fakeSearcher{}, nil, WithFlightTimeout(0))
	assert.Equal(t, amap.AggregateTimeout(amap.DefaultTimeout), svc.flightTimeout)
}
