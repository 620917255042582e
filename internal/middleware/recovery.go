package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
)

// Recovery turns a panic into a 500 response in the API envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				log.Error().
					Interface("panic", err).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("Panic recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]any{
					"code":      http.StatusInternalServerError,
					"message":   "服务器内部错误",
					"data":      nil,
					"timestamp": time.Now().Unix(),
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
