package amap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAmap is a place search endpoint that answers in JSONP and records every query.
type fakeAmap struct {
	mu      sync.Mutex
	queries []url.Values
	paths   []string
	respond func(path string, q url.Values) string
}

func newFakeAmap(t *testing.T, respond func(path string, q url.Values) string) (*fakeAmap, *Client) {
	t.Helper()
	f := &fakeAmap{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.mu.Lock()
		f.queries = append(f.queries, q)
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()
		fmt.Fprintf(w, "%s(%s);", q.Get("callback"), f.respond(r.URL.Path, q))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key",
		WithBaseURL(srv.URL+"/v3/"),
		WithHTTPClient(srv.Client()),
		WithTimeout(time.Second),
		WithRateLimit(1000),
	)
	return f, c
}

func (f *fakeAmap) calls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries...)
}

func okResponse(pois ...string) string {
	return fmt.Sprintf(`{"status":"1","info":"OK","count":"%d","pois":[%s]}`, len(pois), strings.Join(pois, ","))
}

func poiJSON(id, name, location string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"location":%q,"type":"060000|购物服务","address":"人民路1号"}`, id, name, location)
}

var center = Location{Lng: 116.397428, Lat: 39.90923}

func TestSearchAround_RequestParameters(t *testing.T) {
	f, c := newFakeAmap(t, func(string, url.Values) string {
		return okResponse(poiJSON("B1", "万达广场", "116.1,39.1"))
	})

	result, err := c.SearchAround(context.Background(), SearchQuery{Location: center, Keywords: "咖啡"})
	require.NoError(t, err)
	require.Len(t, result.Places, 1)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "OK", result.Info)

	calls := f.calls()
	require.Len(t, calls, 1)
	q := calls[0]
	assert.Equal(t, "/v3/place/around", f.paths[0])
	assert.Equal(t, "test-key", q.Get("key"))
	assert.Equal(t, "JSON", q.Get("output"))
	assert.Equal(t, "all", q.Get("extensions"))
	assert.Equal(t, "116.397428,39.909230", q.Get("location"))
	assert.Equal(t, "2000", q.Get("radius"))
	assert.Equal(t, "20", q.Get("offset"))
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "咖啡", q.Get("keywords"))
	assert.False(t, q.Has("types"))
	assert.NotEmpty(t, q.Get("callback"))
}

func TestSearchAround_MissingLocation(t *testing.T) {
	f, c := newFakeAmap(t, func(string, url.Values) string { return okResponse() })

	_, err := c.SearchAround(context.Background(), SearchQuery{Keywords: "咖啡"})

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrMissingLocation)
	assert.Empty(t, f.calls())
}

func TestSearchAround_ProviderError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantInfo string
	}{
		{"info is carried", `{"status":"0","info":"INVALID_USER_KEY"}`, "INVALID_USER_KEY"},
		{"missing info", `{"status":"0"}`, "搜索失败"},
		{"not an object", `[1,2]`, "搜索失败"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFakeAmap(t, func(string, url.Values) string { return tt.body })

			_, err := c.SearchAround(context.Background(), SearchQuery{Location: center})
			require.Error(t, err)

			var se *SearchError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "搜索附近POI失败", err.Error())

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantInfo, pe.Info)
		})
	}
}

func TestSearchAround_EmptyPOIs(t *testing.T) {
	_, c := newFakeAmap(t, func(string, url.Values) string {
		return `{"status":"1","count":"0"}`
	})

	result, err := c.SearchAround(context.Background(), SearchQuery{Location: center})
	require.NoError(t, err)
	assert.NotNil(t, result.Places)
	assert.Empty(t, result.Places)
	assert.Zero(t, result.Count)
}

func TestSearchText_Defaults(t *testing.T) {
	f, c := newFakeAmap(t, func(string, url.Values) string {
		return `{"status":"1","count":"0","pois":[],"suggestion":{"keywords":[],"cities":[{"name":"上海市","num":"12","citycode":"021","adcode":"310000"}]}}`
	})

	result, err := c.SearchText(context.Background(), SearchQuery{Keywords: "星巴克"})
	require.NoError(t, err)
	require.Len(t, result.Suggestion.Cities, 1)
	assert.Equal(t, FlexString("上海市"), result.Suggestion.Cities[0].Name)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/v3/place/text", f.paths[0])
	assert.Equal(t, "全国", calls[0].Get("city"))
	assert.Equal(t, "星巴克", calls[0].Get("keywords"))
	assert.False(t, calls[0].Has("location"))
}

func TestSearchText_Errors(t *testing.T) {
	_, c := newFakeAmap(t, func(string, url.Values) string {
		return `{"status":"0","info":"DAILY_QUERY_OVER_LIMIT"}`
	})

	_, err := c.SearchText(context.Background(), SearchQuery{})
	assert.ErrorIs(t, err, ErrMissingKeywords)

	_, err = c.SearchText(context.Background(), SearchQuery{Keywords: "星巴克", City: "北京"})
	require.Error(t, err)
	assert.Equal(t, "搜索POI失败", err.Error())
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "DAILY_QUERY_OVER_LIMIT", pe.Info)
}

func TestSearchBusinessAreas_SkipsFailedSubQueries(t *testing.T) {
	f, c := newFakeAmap(t, func(_ string, q url.Values) string {
		switch {
		case q.Get("keywords") == "商圈", q.Get("types") == "061000":
			return `{"status":"0","info":"SERVICE_NOT_AVAILABLE"}`
		case q.Get("keywords") == "商业区":
			return okResponse(poiJSON("A", "万达广场", "116.1,39.1"), poiJSON("B", "南京路步行街", "116.2,39.2"))
		case q.Get("keywords") == "购物中心":
			return okResponse(poiJSON("A2", "万达广场", "116.1,39.1"))
		case q.Get("types") == "060000":
			return okResponse(poiJSON("C", "中关村", "116.3,39.3"))
		default:
			return okResponse()
		}
	})

	areas := c.SearchBusinessAreas(context.Background(), center, 0)

	calls := f.calls()
	require.Len(t, calls, 6)
	for _, q := range calls {
		assert.Equal(t, "3000", q.Get("radius"))
		assert.Equal(t, "10", q.Get("offset"))
	}
	assert.Equal(t, "商圈", calls[0].Get("keywords"))
	assert.Equal(t, "商业区", calls[1].Get("keywords"))
	assert.Equal(t, "购物中心", calls[2].Get("keywords"))
	assert.Equal(t, "060000", calls[3].Get("types"))
	assert.Equal(t, "061000", calls[4].Get("types"))
	assert.Equal(t, "061200", calls[5].Get("types"))

	require.Len(t, areas, 3)
	assert.Equal(t, "A", areas[0].ID)
	assert.Equal(t, "B", areas[1].ID)
	assert.Equal(t, "C", areas[2].ID)
	assert.Equal(t, 85, areas[0].HotValue)
	assert.Equal(t, 70, areas[1].HotValue)
	for _, a := range areas {
		assert.GreaterOrEqual(t, a.HotValue, 0)
		assert.LessOrEqual(t, a.HotValue, 100)
	}
}

func TestSearchBusinessAreas_AllFail(t *testing.T) {
	_, c := newFakeAmap(t, func(string, url.Values) string {
		return `{"status":"0","info":"INVALID_USER_KEY"}`
	})

	areas := c.SearchBusinessAreas(context.Background(), center, 500)
	assert.NotNil(t, areas)
	assert.Empty(t, areas)
}

func TestSearchBusinessAreas_TimeoutYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient("k",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithTimeout(20*time.Millisecond),
		WithRateLimit(1000),
	)

	areas := c.SearchBusinessAreas(context.Background(), center, 0)
	assert.NotNil(t, areas)
	assert.Empty(t, areas)
}

func TestSearchNearbyPois(t *testing.T) {
	f, c := newFakeAmap(t, func(_ string, q url.Values) string {
		switch q.Get("types") {
		case "050000":
			return okResponse(`{"id":"R1","name":"小馆","location":"116.1,39.1","type":"050000|餐饮|中餐","business_area":"三里屯","biz_ext":{"rating":"4.6","cost":"80"}}`)
		case "080000":
			return `{"status":"0","info":"ENGINE_RESPONSE_DATA_ERROR"}`
		case "100000":
			return okResponse(`{"name":"如家","location":"116.5,39.5","type":"100000|住宿"}`)
		default:
			return okResponse()
		}
	})

	pois := c.SearchNearbyPois(context.Background(), center, 0)

	calls := f.calls()
	require.Len(t, calls, 5)
	for i, want := range []string{"050000", "060000", "070000", "080000", "100000"} {
		assert.Equal(t, want, calls[i].Get("types"))
		assert.Equal(t, "1000", calls[i].Get("radius"))
		assert.Equal(t, "15", calls[i].Get("offset"))
	}

	require.Len(t, pois, 2)
	assert.Equal(t, "R1", pois[0].ID)
	assert.Equal(t, CategoryDining, pois[0].Category)
	assert.Equal(t, "三里屯", pois[0].BusinessArea)
	assert.Equal(t, 4.6, pois[0].Rating)
	assert.Equal(t, "poi_1", pois[1].ID)
	assert.Equal(t, CategoryHotel, pois[1].Category)
}
