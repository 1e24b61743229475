package api

import (
	"net/http"

	"github.com/flightwatch/flightwatch/internal/store"
)

// HealthResponse reports process and dependency health.
type HealthResponse struct {
	Status   string `json:"status"`
	Postgres bool   `json:"postgres"`
	Redis    bool   `json:"redis"`
}

// HealthHandler pings both backing stores. Redis being down degrades
// dedupe to database-only lookups, so it reports "degraded" rather
// than unhealthy.
func HealthHandler(pg *store.PostgresStore, rd *store.RedisStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "healthy",
			Postgres: pg.Healthy(r.Context()),
			Redis:    rd.Healthy(r.Context()),
		}

		status := http.StatusOK
		switch {
		case !resp.Postgres:
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		case !resp.Redis:
			resp.Status = "degraded"
		}

		respondJSON(w, status, resp)
	}
}
