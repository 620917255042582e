package http

import (
	"net/http"
	"strings"

	"bizarea/internal/repo"
	"bizarea/internal/services/catalog"
	"bizarea/internal/services/ranking"

	"github.com/go-chi/chi/v5"
)

const (
	defaultAreaNearbyRadius  = 5000
	defaultStoreNearbyRadius = 1000
)

// CatalogHandler serves cities, business areas and stores.
type CatalogHandler struct {
	catalog *catalog.Service
	ranking *ranking.Worker
}

func NewCatalogHandler(c *catalog.Service, rk *ranking.Worker) *CatalogHandler {
	return &CatalogHandler{catalog: c, ranking: rk}
}

// RegisterRoutes registers city, business area and store routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cities", func(r chi.Router) {
		r.Get("/", h.ListCities)
		r.Get("/hot", h.HotCities)
		r.Get("/search", h.SearchCities)
		r.Get("/{id}", h.GetCity)
		r.Get("/{id}/business-areas", h.CityBusinessAreas)
	})

	r.Route("/api/v1/business-areas", func(r chi.Router) {
		r.Get("/", h.ListBusinessAreas)
		r.Get("/nearby", h.NearbyBusinessAreas)
		r.Get("/hot-ranking", h.HotRanking)
		r.Get("/{id}", h.GetBusinessArea)
		r.Get("/{id}/stores", h.AreaStores)
	})

	r.Route("/api/v1/stores", func(r chi.Router) {
		r.Get("/", h.ListStores)
		r.Get("/nearby", h.NearbyStores)
		r.Get("/{id}", h.GetStore)
	})
}

func (h *CatalogHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	level := r.URL.Query().Get("level")
	switch level {
	case "":
		level = repo.LevelCity
	case "all":
		level = ""
	case repo.LevelProvince, repo.LevelCity, repo.LevelDistrict:
	default:
		writeError(w, r, invalid("level 参数不正确"))
		return
	}

	cities, total, err := h.catalog.ListCities(r.Context(), repo.CityFilter{
		Level:   level,
		Keyword: strings.TrimSpace(r.URL.Query().Get("keyword")),
		Page:    page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "获取城市列表成功", cities, total, page)
}

func (h *CatalogHandler) HotCities(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0, 1, repo.MaxPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cities, err := h.catalog.HotCities(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取热门城市成功", cities)
}

func (h *CatalogHandler) SearchCities(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(w, r, invalid("搜索关键词不能为空"))
		return
	}
	limit, err := queryInt(r, "limit", 20, 1, repo.MaxPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cities, err := h.catalog.SearchCities(r.Context(), keyword, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "搜索城市成功", cities)
}

func (h *CatalogHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	city, err := h.catalog.GetCity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取城市详情成功", city)
}

func (h *CatalogHandler) CityBusinessAreas(w http.ResponseWriter, r *http.Request) {
	f, err := areaFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	areas, total, err := h.catalog.CityBusinessAreas(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "获取城市商圈成功", areas, total, f.Page)
}

func (h *CatalogHandler) ListBusinessAreas(w http.ResponseWriter, r *http.Request) {
	f, err := areaFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.CityID = r.URL.Query().Get("cityId")

	areas, total, err := h.catalog.ListBusinessAreas(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "获取商圈列表成功", areas, total, f.Page)
}

func (h *CatalogHandler) NearbyBusinessAreas(w http.ResponseWriter, r *http.Request) {
	p, err := nearbyParams(r, defaultAreaNearbyRadius)
	if err != nil {
		writeError(w, r, err)
		return
	}
	areas, err := h.catalog.NearbyBusinessAreas(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取附近商圈成功", areas)
}

func (h *CatalogHandler) HotRanking(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10, 1, repo.MaxPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ranked, err := h.ranking.Top(r.Context(), r.URL.Query().Get("cityId"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取热门商圈排行成功", ranked)
}

func (h *CatalogHandler) GetBusinessArea(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalog.BusinessAreaDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取商圈详情成功", detail)
}

func (h *CatalogHandler) AreaStores(w http.ResponseWriter, r *http.Request) {
	f, err := storeFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stores, total, err := h.catalog.AreaStores(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "获取商圈店铺成功", stores, total, f.Page)
}

func (h *CatalogHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	f, err := storeFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.BusinessAreaID = r.URL.Query().Get("businessAreaId")

	stores, total, err := h.catalog.ListStores(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, "获取店铺列表成功", stores, total, f.Page)
}

func (h *CatalogHandler) NearbyStores(w http.ResponseWriter, r *http.Request) {
	p, err := nearbyParams(r, defaultStoreNearbyRadius)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stores, err := h.catalog.NearbyStores(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取附近店铺成功", stores)
}

func (h *CatalogHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	store, err := h.catalog.GetStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "获取店铺详情成功", store)
}

func areaFilter(r *http.Request) (repo.BusinessAreaFilter, error) {
	page, err := queryPage(r)
	if err != nil {
		return repo.BusinessAreaFilter{}, err
	}
	q := r.URL.Query()

	sortBy := q.Get("sortBy")
	switch sortBy {
	case "", "hot_value", "rating", "customer_flow":
	default:
		return repo.BusinessAreaFilter{}, invalid("sortBy 参数不正确")
	}

	return repo.BusinessAreaFilter{
		Type:   q.Get("type"),
		Level:  q.Get("level"),
		SortBy: sortBy,
		Asc:    q.Get("sortOrder") == "asc",
		Page:   page,
	}, nil
}

func storeFilter(r *http.Request) (repo.StoreFilter, error) {
	page, err := queryPage(r)
	if err != nil {
		return repo.StoreFilter{}, err
	}
	q := r.URL.Query()

	sortBy := q.Get("sortBy")
	switch sortBy {
	case "", "rating", "price", "reviews":
	default:
		return repo.StoreFilter{}, invalid("sortBy 参数不正确")
	}

	return repo.StoreFilter{
		Category: q.Get("category"),
		SortBy:   sortBy,
		Page:     page,
	}, nil
}

func nearbyParams(r *http.Request, defaultRadius int) (repo.NearbyParams, error) {
	center, err := queryLocation(r)
	if err != nil {
		return repo.NearbyParams{}, err
	}
	radius, err := queryRadius(r, defaultRadius)
	if err != nil {
		return repo.NearbyParams{}, err
	}
	limit, err := queryInt(r, "limit", 20, 1, repo.MaxPageSize)
	if err != nil {
		return repo.NearbyParams{}, err
	}
	return repo.NearbyParams{
		Longitude: center.Lng,
		Latitude:  center.Lat,
		Radius:    float64(radius),
		Limit:     limit,
	}, nil
}
