package cache

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

const (
	AroundTTL        = 90 * time.Second
	TextTTL          = 90 * time.Second
	BusinessAreasTTL = 5 * time.Minute
	NearbyPOIsTTL    = 5 * time.Minute
	RankingTTL       = 10 * time.Minute
	HotCitiesTTL     = 10 * time.Minute
)

// AroundKey generates Redis key for a single around search
func AroundKey(lng, lat float64, keywords, types string, radius, offset, page int) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("around:%.6f:%.6f:%s:%s:%d:%d:%d", lng, lat, keywords, types, radius, offset, page)))
	return fmt.Sprintf("cache:v1:around:%x", hash)
}

// TextKey generates Redis key for a single keyword search
func TextKey(keywords, types, city string, offset, page int) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("text:%s:%s:%s:%d:%d", keywords, types, city, offset, page)))
	return fmt.Sprintf("cache:v1:text:%x", hash)
}

// BusinessAreasKey generates Redis key for the aggregated business-area search
func BusinessAreasKey(lng, lat float64, radius int) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("areas:%.6f:%.6f:%d", lng, lat, radius)))
	return fmt.Sprintf("cache:v1:areas:%x", hash)
}

// NearbyPOIsKey generates Redis key for the aggregated nearby POI search
func NearbyPOIsKey(lng, lat float64, radius int) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("pois:%.6f:%.6f:%d", lng, lat, radius)))
	return fmt.Sprintf("cache:v1:pois:%x", hash)
}

// HotCitiesKey generates Redis key for the hot city list
func HotCitiesKey(limit int) string {
	return fmt.Sprintf("cache:v1:cities:hot:%d", limit)
}

// RankingKey is the ZSET holding business-area heat for a city
func RankingKey(cityID string) string {
	return fmt.Sprintf("ranking:city:%s", cityID)
}

// RankingMetaKey holds the last ranking computation summary
func RankingMetaKey() string {
	return "ranking:meta"
}

// GetTTL returns the appropriate TTL for a given key
func GetTTL(key string) time.Duration {
	switch {
	case strings.HasPrefix(key, "cache:v1:around:"):
		return AroundTTL
	case strings.HasPrefix(key, "cache:v1:text:"):
		return TextTTL
	case strings.HasPrefix(key, "cache:v1:areas:"):
		return BusinessAreasTTL
	case strings.HasPrefix(key, "cache:v1:pois:"):
		return NearbyPOIsTTL
	case strings.HasPrefix(key, "cache:v1:cities:hot:"):
		return HotCitiesTTL
	case strings.HasPrefix(key, "ranking:"):
		return RankingTTL
	default:
		return 5 * time.Minute
	}
}
