package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthPath = "/api/v1/health"

// NewRouter wires every route. An empty authToken disables authentication.
func NewRouter(h *RestHandler, authToken string, logger *zap.SugaredLogger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc(healthPath, h.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/stats", h.Stats).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/stats/daily", h.DailyStats).Methods(http.MethodGet)

	// IOC endpoints
	router.HandleFunc("/api/v1/iocs", h.ListIOCs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/iocs/unique", h.UniqueIOCs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/iocs/export", h.Export).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/tlds/{tld}", h.CheckTLD).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/messages", h.IngestMessage).Methods(http.MethodPost)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if authToken == "" {
		logger.Warn("REST_API_AUTH_TOKEN not set - auth disabled")
	}

	router.Use(loggingMiddleware(logger))
	router.Use(authMiddleware(authToken))

	return router
}

func loggingMiddleware(logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Infow("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", requestID,
			)
		})
	}
}

func authMiddleware(expectedToken string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check
			if expectedToken == "" || r.URL.Path == healthPath {
				next.ServeHTTP(w, r)
				return
			}

			// Validate Bearer token
			if r.Header.Get("Authorization") != "Bearer "+expectedToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
