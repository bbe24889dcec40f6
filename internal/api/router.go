package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roeimichael/VarProject/internal/api/handlers"
	"github.com/roeimichael/VarProject/pkg/logger"
)

// Handlers groups the endpoint handlers. Jobs and Alerts may be nil.
type Handlers struct {
	Risk   *handlers.RiskHandler
	Cache  *handlers.CacheHandler
	Jobs   *handlers.JobsHandler
	Alerts http.HandlerFunc
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are declared in this function only
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Risk endpoints
	api.HandleFunc("/risk/evaluate", h.Risk.Evaluate).Methods("POST")
	api.HandleFunc("/risk/limits", h.Risk.Limits).Methods("GET")
	api.HandleFunc("/runs", h.Risk.ListRuns).Methods("GET")
	api.HandleFunc("/runs/latest", h.Risk.LatestRun).Methods("GET")

	// Cache endpoints
	api.HandleFunc("/cache", h.Cache.List).Methods("GET")
	api.HandleFunc("/cache/{symbol}", h.Cache.Get).Methods("GET")

	if h.Jobs != nil {
		api.HandleFunc("/jobs", h.Jobs.Stats).Methods("GET")
	}

	// Live alerts
	if h.Alerts != nil {
		r.HandleFunc("/ws/alerts", h.Alerts).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "varwatch",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
