package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a backing dependency, typically *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports UP when the database answers a ping within two seconds.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "DOWN"})
				return
			}
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "UP"})
	}
}
