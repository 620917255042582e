package amap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes Amap text fields, which come back as "" or as an empty
// array when the value is missing.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) > 0 {
			*f = FlexString(arr[0])
		} else {
			*f = ""
		}
		return nil
	}

	// numbers and anything else are kept verbatim
	*f = FlexString(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	if *f == "null" {
		*f = ""
	}
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Location is a longitude/latitude pair in GCJ-02, the system Amap uses.
type Location struct {
	Lng float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// ParseLocation parses the "lng,lat" form used by Amap.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("location %q: want \"lng,lat\"", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("location %q: bad longitude: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("location %q: bad latitude: %w", s, err)
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return Location{}, fmt.Errorf("location %q: out of range", s)
	}
	return Location{Lng: lng, Lat: lat}, nil
}

func (l Location) IsZero() bool {
	return l.Lng == 0 && l.Lat == 0
}

func (l Location) String() string {
	return strconv.FormatFloat(l.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(l.Lat, 'f', 6, 64)
}

// SearchQuery describes one place search. Zero values take the client defaults.
type SearchQuery struct {
	Location Location
	Keywords string
	Types    string
	City     string
	Radius   int
	Offset   int
	Page     int
}

// Photo is a picture attached to a place.
type Photo struct {
	Title FlexString `json:"title"`
	URL   FlexString `json:"url"`
}

// BizExt carries the extended business fields. Amap sends [] instead of an
// object when there is nothing to report.
type BizExt struct {
	Rating FlexString `json:"rating"`
	Cost   FlexString `json:"cost"`
}

func (b *BizExt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*b = BizExt{}
		return nil
	}
	type plain BizExt
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*b = BizExt{}
		return nil
	}
	*b = BizExt(p)
	return nil
}

// RawPlace is a single item from the place endpoints. Every field is optional.
type RawPlace struct {
	ID           FlexString `json:"id"`
	Name         FlexString `json:"name"`
	Location     FlexString `json:"location"`
	Address      FlexString `json:"address"`
	Type         FlexString `json:"type"`
	TypeCode     FlexString `json:"typecode"`
	Distance     FlexString `json:"distance"`
	Tel          FlexString `json:"tel"`
	Photos       []Photo    `json:"photos"`
	BizExt       BizExt     `json:"biz_ext"`
	Tag          FlexString `json:"tag"`
	PName        FlexString `json:"pname"`
	CityName     FlexString `json:"cityname"`
	AdName       FlexString `json:"adname"`
	BusinessArea FlexString `json:"business_area"`
}

type SuggestionCity struct {
	Name     FlexString `json:"name"`
	Num      FlexString `json:"num"`
	CityCode FlexString `json:"citycode"`
	AdCode   FlexString `json:"adcode"`
}

type Suggestion struct {
	Keywords []FlexString     `json:"keywords"`
	Cities   []SuggestionCity `json:"cities"`
}

// SearchResult is the processed outcome of a single search call.
type SearchResult struct {
	Places     []RawPlace `json:"pois"`
	Count      int        `json:"count"`
	Suggestion Suggestion `json:"suggestion"`
	Info       string     `json:"info"`
}

// providerResponse mirrors the place endpoint envelope.
type providerResponse struct {
	Status     FlexString  `json:"status"`
	Info       FlexString  `json:"info"`
	Count      FlexString  `json:"count"`
	POIs       []RawPlace  `json:"pois"`
	Suggestion *Suggestion `json:"suggestion"`
}

// Category is the coarse classification of a place, using the labels shown to users.
type Category string

const (
	CategoryShoppingCenter    Category = "购物中心"
	CategoryFoodStreet        Category = "美食街区"
	CategoryEntertainment     Category = "休闲娱乐"
	CategoryGeneralCommercial Category = "综合商圈"
	CategoryDining            Category = "餐饮美食"
	CategoryRetail            Category = "购物零售"
	CategoryLifeService       Category = "生活服务"
	CategoryHotel             Category = "酒店住宿"
	CategoryAttraction        Category = "旅游景点"
	CategoryTransport         Category = "交通设施"
	CategoryFinance           Category = "金融保险"
	CategoryEducation         Category = "教育文化"
	CategoryHealthcare        Category = "医疗保健"
	CategoryOther             Category = "其他"
)

// Place is a normalized place derived from a RawPlace.
type Place struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Longitude    float64  `json:"longitude"`
	Latitude     float64  `json:"latitude"`
	Address      string   `json:"address"`
	Category     Category `json:"category"`
	HotValue     int      `json:"hotValue,omitempty"`
	Distance     int      `json:"distance"`
	Type         string   `json:"type"`
	Tel          string   `json:"tel"`
	Photos       []Photo  `json:"photos"`
	Rating       float64  `json:"rating"`
	Tags         []string `json:"tags"`
	BusinessArea string   `json:"businessArea,omitempty"`
}
