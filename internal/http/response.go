package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bizarea/internal/amap"
	"bizarea/internal/repo"

	"github.com/rs/zerolog/log"
)

// Envelope is the body of every API response.
type Envelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// PageData is the data of a paginated response.
type PageData struct {
	List       any  `json:"list"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func newPageData(list any, total int, p repo.Page) PageData {
	p = p.Normalize()
	totalPages := (total + p.PageSize - 1) / p.PageSize
	return PageData{
		List:       list,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

var errRouteNotFound = fmt.Errorf("route: %w", repo.ErrNotFound)

// validationError is a bad request parameter.
type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func invalid(msg string) error {
	return &validationError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Code:      http.StatusOK,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func writePage(w http.ResponseWriter, message string, list any, total int, p repo.Page) {
	writeSuccess(w, message, newPageData(list, total, p))
}

// writeError maps err to a status code and writes it in the envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "服务器内部错误"

	var ve *validationError
	var se *amap.SearchError
	switch {
	case errors.As(err, &ve):
		status, message = http.StatusBadRequest, ve.msg
	case errors.Is(err, repo.ErrNotFound):
		status, message = http.StatusNotFound, "资源不存在"
	case errors.As(err, &se):
		status, message = http.StatusBadGateway, se.Error()
	}

	if status >= 500 {
		log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	}

	writeJSON(w, status, Envelope{
		Code:      status,
		Message:   message,
		Data:      nil,
		Timestamp: time.Now().Unix(),
	})
}
