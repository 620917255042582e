package repo

import "time"

// City is a province, city or district.
type City struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	Level         string    `json:"level"`
	ParentID      *string   `json:"parentId"`
	Longitude     float64   `json:"longitude"`
	Latitude      float64   `json:"latitude"`
	Population    int64     `json:"population"`
	Area          float64   `json:"area"`
	EconomicLevel string    `json:"economicLevel"`
	IsHot         bool      `json:"isHot"`
	Pinyin        string    `json:"pinyin"`
	PinyinAbbr    string    `json:"pinyinAbbr"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

const (
	LevelProvince = "province"
	LevelCity     = "city"
	LevelDistrict = "district"
)

// BusinessArea is a stored commercial district.
type BusinessArea struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CityID         string    `json:"cityId"`
	Type           string    `json:"type"`
	Level          string    `json:"level"`
	Longitude      float64   `json:"longitude"`
	Latitude       float64   `json:"latitude"`
	HotValue       int       `json:"hotValue"`
	AvgConsumption float64   `json:"avgConsumption"`
	CustomerFlow   int       `json:"customerFlow"`
	StoreCount     int       `json:"storeCount"`
	Rating         float64   `json:"rating"`
	Address        string    `json:"address"`
	Description    string    `json:"description"`
	Tags           []string  `json:"tags"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

const (
	AreaTypeShopping      = "shopping"
	AreaTypeDining        = "dining"
	AreaTypeEntertainment = "entertainment"
	AreaTypeMixed         = "mixed"
)

// Store is a shop inside a business area.
type Store struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	BusinessAreaID string    `json:"businessAreaId"`
	Category       string    `json:"category"`
	SubCategory    string    `json:"subCategory"`
	Longitude      float64   `json:"longitude"`
	Latitude       float64   `json:"latitude"`
	Rating         float64   `json:"rating"`
	ReviewCount    int       `json:"reviewCount"`
	AvgPrice       float64   `json:"avgPrice"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	Tags           []string  `json:"tags"`
	IsRecommended  bool      `json:"isRecommended"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NearbyBusinessArea is a business area with its distance from the query point.
type NearbyBusinessArea struct {
	BusinessArea
	Distance int `json:"distance"`
}

// NearbyStore is a store with its distance from the query point.
type NearbyStore struct {
	Store
	Distance int `json:"distance"`
}
