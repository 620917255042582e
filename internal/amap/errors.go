package amap

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a call's callback did not fire in time.
	ErrTimeout = errors.New("amap request timed out")
	// ErrLoadFailed is returned when the response could not be fetched or dispatched.
	ErrLoadFailed = errors.New("amap request failed to load")

	ErrMissingLocation = errors.New("location is required")
	ErrMissingKeywords = errors.New("keywords or types are required")
)

const (
	defaultProviderInfo = "搜索失败"
	msgSearchAround     = "搜索附近POI失败"
	msgSearchText       = "搜索POI失败"
)

// ProviderError is a non-success status reported by Amap.
type ProviderError struct {
	Info string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("amap provider error: %s", e.Info)
}

// TransportError means the call never produced a provider response.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("amap transport error (endpoint %s): %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SearchError is what single-query callers see. Its message is generic; the
// underlying ProviderError or TransportError stays reachable through Unwrap.
type SearchError struct {
	Message string
	cause   error
}

func (e *SearchError) Error() string {
	return e.Message
}

func (e *SearchError) Unwrap() error {
	return e.cause
}
