package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/tropicaldog17/nami-portfolio/internal/services"
)

// RouterDeps is everything the HTTP surface needs. Health and Metrics are
// optional.
type RouterDeps struct {
	Portfolio services.PortfolioService
	Health    func() error
	Metrics   http.Handler
	Logger    *zap.Logger
}

// NewRouter builds the service's HTTP handler
func NewRouter(d RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status, code := "healthy", http.StatusOK
		if d.Health != nil {
			if err := d.Health(); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": "nami-portfolio",
		})
	}).Methods(http.MethodGet)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	NewPortfolioHandler(d.Portfolio, d.Logger).Register(r)
	return corsHandler(r)
}

func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
