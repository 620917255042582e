package amap

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Fixed search plans used by the aggregate operations.
var (
	businessAreaKeywords     = []string{"商圈", "商业区", "购物中心", "步行街", "商业广场", "商业街"}
	businessAreaKeywordLimit = 3
	businessAreaTypes        = []string{
		"060000", // 购物服务
		"061000", // 购物中心
		"061200", // 专业市场
	}
	nearbyPOITypes = []string{
		"050000", // 餐饮服务
		"060000", // 购物服务
		"070000", // 生活服务
		"080000", // 休闲娱乐
		"100000", // 住宿服务
	}
)

// poiCategories maps a top-level type code to its category.
var poiCategories = map[string]Category{
	"050000": CategoryDining,
	"060000": CategoryRetail,
	"070000": CategoryLifeService,
	"080000": CategoryEntertainment,
	"100000": CategoryHotel,
	"110000": CategoryAttraction,
	"120000": CategoryTransport,
	"130000": CategoryFinance,
	"140000": CategoryEducation,
	"150000": CategoryHealthcare,
}

// areaRule matches when the name contains any of nameTerms or the type contains any of typeTerms.
type areaRule struct {
	category  Category
	nameTerms []string
	typeTerms []string
}

// areaRules are checked in order; the first match wins.
var areaRules = []areaRule{
	{category: CategoryShoppingCenter, nameTerms: []string{"购物", "商场", "百货"}, typeTerms: []string{"购物"}},
	{category: CategoryFoodStreet, nameTerms: []string{"美食", "餐饮"}, typeTerms: []string{"餐饮"}},
	{category: CategoryEntertainment, nameTerms: []string{"娱乐", "休闲"}, typeTerms: []string{"娱乐"}},
}

const baseHotValue = 50

var (
	brandTerms       = []string{"万达", "银泰", "大悦城", "龙湖", "华润"}
	mallTerms        = []string{"购物中心", "广场", "商场"}
	pedestrianStreet = "步行街"
	coreAreaTerms    = []string{"市中心", "CBD", "核心区"}
)

const (
	brandBonus      = 35
	mallBonus       = 25
	pedestrianBonus = 20
	coreAreaBonus   = 15
)

// ClassifyPOI maps an Amap type string to a POI category.
func ClassifyPOI(typeString string) Category {
	code, _, _ := strings.Cut(typeString, "|")
	if r := []rune(code); len(r) > 6 {
		code = string(r[:6])
	}
	if c, ok := poiCategories[code]; ok {
		return c
	}
	return CategoryOther
}

// ClassifyBusinessArea picks the business-area category of a place from its name and type.
func ClassifyBusinessArea(p RawPlace) Category {
	name, typ := string(p.Name), string(p.Type)
	for _, rule := range areaRules {
		if containsAny(name, rule.nameTerms) || containsAny(typ, rule.typeTerms) {
			return rule.category
		}
	}
	return CategoryGeneralCommercial
}

// HotValue scores how popular a place is likely to be, in [0, 100].
func HotValue(p RawPlace) int {
	score := baseHotValue
	name := string(p.Name)

	switch {
	case containsAny(name, brandTerms):
		score += brandBonus
	case containsAny(name, mallTerms):
		score += mallBonus
	case strings.Contains(name, pedestrianStreet):
		score += pedestrianBonus
	}

	if containsAny(string(p.Address), coreAreaTerms) {
		score += coreAreaBonus
	}

	return clamp(score, 0, 100)
}

// ExtractTags returns the non-blank type segments plus the tag field, deduplicated in order.
func ExtractTags(p RawPlace) []string {
	var candidates []string
	if p.Type != "" {
		for _, part := range strings.Split(string(p.Type), "|") {
			if strings.TrimSpace(part) != "" {
				candidates = append(candidates, part)
			}
		}
	}
	if p.Tag != "" {
		candidates = append(candidates, string(p.Tag))
	}

	seen := make(map[string]struct{}, len(candidates))
	tags := make([]string, 0, len(candidates))
	for _, t := range candidates {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// ExtractRating reads biz_ext.rating; missing or malformed ratings are 0.
func ExtractRating(p RawPlace) float64 {
	r, err := strconv.ParseFloat(strings.TrimSpace(string(p.BizExt.Rating)), 64)
	if err != nil || r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Deduplicate drops places whose name and location were already seen, keeping the first.
func Deduplicate(places []RawPlace) []RawPlace {
	seen := make(map[string]struct{}, len(places))
	unique := make([]RawPlace, 0, len(places))
	for _, p := range places {
		key := string(p.Name) + "_" + string(p.Location)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}

// FormatBusinessAreas normalizes places as business areas.
func FormatBusinessAreas(places []RawPlace) []Place {
	out := make([]Place, 0, len(places))
	for i, p := range places {
		place := normalize(p, "area_", i)
		place.Category = ClassifyBusinessArea(p)
		place.HotValue = HotValue(p)
		out = append(out, place)
	}
	return out
}

// FormatPOIs normalizes places using the POI category table.
func FormatPOIs(places []RawPlace) []Place {
	out := make([]Place, 0, len(places))
	for i, p := range places {
		place := normalize(p, "poi_", i)
		place.Category = ClassifyPOI(string(p.Type))
		place.BusinessArea = string(p.BusinessArea)
		out = append(out, place)
	}
	return out
}

func normalize(p RawPlace, idPrefix string, index int) Place {
	id := string(p.ID)
	if id == "" {
		id = idPrefix + strconv.Itoa(index)
	}

	var lng, lat float64
	if loc, err := ParseLocation(string(p.Location)); err == nil {
		lng, lat = loc.Lng, loc.Lat
	}

	address := string(p.Address)
	if strings.TrimSpace(address) == "" {
		address = string(p.PName) + string(p.CityName) + string(p.AdName)
	}

	photos := p.Photos
	if photos == nil {
		photos = []Photo{}
	}

	return Place{
		ID:        id,
		Name:      string(p.Name),
		Longitude: lng,
		Latitude:  lat,
		Address:   address,
		Distance:  parseDistance(string(p.Distance)),
		Type:      string(p.Type),
		Tel:       string(p.Tel),
		Photos:    photos,
		Rating:    ExtractRating(p),
		Tags:      ExtractTags(p),
	}
}

func parseDistance(s string) int {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return int(math.Round(d))
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rateLimitSlack covers limiter waits across an aggregate's sub-queries.
const rateLimitSlack = 15 * time.Second

// AggregateTimeout is the worst case for the longest aggregate search when
// every sub-query runs to callTimeout. A non-positive callTimeout means
// DefaultTimeout.
func AggregateTimeout(callTimeout time.Duration) time.Duration {
	if callTimeout <= 0 {
		callTimeout = DefaultTimeout
	}
	subQueries := max(businessAreaKeywordLimit+len(businessAreaTypes), len(nearbyPOITypes))
	return time.Duration(subQueries)*callTimeout + rateLimitSlack
}
