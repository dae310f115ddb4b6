package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segyhp/booking-settlement/pkg/response"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the health and settlement routes. Health probes bypass the
// rate limiter.
func NewRouter(settlement *SettlementHandler, health *HealthHandler, limit func(http.Handler) http.Handler, log *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log), response.CORSMiddleware)

	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	if limit != nil {
		api.Use(limit)
	}
	settlement.Register(api)

	return router
}
