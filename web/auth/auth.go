// Package auth provides bearer-token authentication for the API routes.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body sent on authentication failure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BearerTokenMiddleware validates `Authorization: Bearer <key>` against
// apiKey. An empty apiKey disables authentication entirely; that state is
// logged once at startup so an open deployment is never an accident.
func BearerTokenMiddleware(apiKey string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if apiKey == "" {
		logger.Warn("api authentication disabled, no api key configured")
	} else {
		logger.Info("api authentication enabled")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)

				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				logger.Debug("auth failed, missing token",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path))
				sendUnauthorized(w, "missing authentication token")

				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("auth failed, malformed header",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path))
				sendUnauthorized(w, "invalid authentication token format")

				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(apiKey)) != 1 {
				logger.Debug("auth failed, wrong token",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path))
				sendUnauthorized(w, "invalid authentication token")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func sendUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: message,
	})
}
