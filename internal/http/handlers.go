package http

import (
	"net/http"
	"strings"

	"bizarea/internal/amap"
	"bizarea/internal/services/poi"

	"github.com/go-chi/chi/v5"
)

// AmapHandler exposes the Amap place searches.
type AmapHandler struct {
	poi *poi.Service
}

func NewAmapHandler(poiService *poi.Service) *AmapHandler {
	return &AmapHandler{poi: poiService}
}

// RegisterRoutes registers all Amap routes
func (h *AmapHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/amap", func(r chi.Router) {
		r.Get("/around", h.Around)
		r.Get("/text", h.Text)
		r.Get("/business-areas", h.BusinessAreas)
		r.Get("/nearby-pois", h.NearbyPOIs)
	})
}

// SearchResponse is a single search with its places normalized.
type SearchResponse struct {
	Count      int             `json:"count"`
	POIs       []amap.Place    `json:"pois"`
	Suggestion amap.Suggestion `json:"suggestion"`
}

func newSearchResponse(res *amap.SearchResult) SearchResponse {
	return SearchResponse{
		Count:      res.Count,
		POIs:       amap.FormatPOIs(res.Places),
		Suggestion: res.Suggestion,
	}
}

// Around handles GET /api/v1/amap/around
func (h *AmapHandler) Around(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if q.Location, err = queryLocation(r); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Radius, err = queryRadius(r, 0); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.poi.SearchAround(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "搜索成功", newSearchResponse(res))
}

// Text handles GET /api/v1/amap/text
func (h *AmapHandler) Text(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if q.Keywords == "" && q.Types == "" {
		writeError(w, r, invalid("搜索关键词不能为空"))
		return
	}
	q.City = strings.TrimSpace(r.URL.Query().Get("city"))

	res, err := h.poi.SearchText(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, "搜索成功", newSearchResponse(res))
}

// BusinessAreas handles GET /api/v1/amap/business-areas
func (h *AmapHandler) BusinessAreas(w http.ResponseWriter, r *http.Request) {
	center, err := queryLocation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	radius, err := queryRadius(r, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, "获取商圈成功", h.poi.BusinessAreas(r.Context(), center, radius))
}

// NearbyPOIs handles GET /api/v1/amap/nearby-pois
func (h *AmapHandler) NearbyPOIs(w http.ResponseWriter, r *http.Request) {
	center, err := queryLocation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	radius, err := queryRadius(r, 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, "获取周边POI成功", h.poi.NearbyPOIs(r.Context(), center, radius))
}

func searchQuery(r *http.Request) (amap.SearchQuery, error) {
	q := amap.SearchQuery{
		Keywords: strings.TrimSpace(r.URL.Query().Get("keywords")),
		Types:    strings.TrimSpace(r.URL.Query().Get("types")),
	}
	var err error
	if q.Offset, err = queryInt(r, "offset", 0, 1, 25); err != nil {
		return q, err
	}
	if q.Page, err = queryInt(r, "page", 0, 1, 100); err != nil {
		return q, err
	}
	return q, nil
}
