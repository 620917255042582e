package http

import (
	"net/http"
	"strconv"
	"strings"

	"bizarea/internal/amap"
	"bizarea/internal/repo"
)

const maxRadius = 50000

func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, invalid(name + " 参数不正确")
	}
	return v, nil
}

func queryPage(r *http.Request) (repo.Page, error) {
	page, err := queryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		return repo.Page{}, err
	}
	size, err := queryInt(r, "pageSize", repo.DefaultPageSize, 1, repo.MaxPageSize)
	if err != nil {
		return repo.Page{}, err
	}
	return repo.Page{Page: page, PageSize: size}, nil
}

// queryLocation reads either location=lng,lat or longitude= and latitude=.
func queryLocation(r *http.Request) (amap.Location, error) {
	q := r.URL.Query()
	if raw := q.Get("location"); raw != "" {
		loc, err := amap.ParseLocation(raw)
		if err != nil {
			return amap.Location{}, invalid("坐标格式不正确")
		}
		return loc, nil
	}

	lng, lat := q.Get("longitude"), q.Get("latitude")
	if lng == "" || lat == "" {
		return amap.Location{}, invalid("经纬度坐标不能为空")
	}
	loc, err := amap.ParseLocation(lng + "," + lat)
	if err != nil {
		return amap.Location{}, invalid("坐标格式不正确")
	}
	return loc, nil
}

func queryRadius(r *http.Request, def int) (int, error) {
	return queryInt(r, "radius", def, 1, maxRadius)
}
