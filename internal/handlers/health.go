package handlers

import (
	"net/http"

	"complaintdesk/internal/database"
)

// BreakerReporter reports the remote client's circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// HealthHandler reports on the database (when sessions live there) and the
// remote API breaker.
type HealthHandler struct {
	db     database.Service
	remote BreakerReporter
}

// NewHealthHandler creates a HealthHandler. db may be nil.
func NewHealthHandler(db database.Service, remote BreakerReporter) *HealthHandler {
	return &HealthHandler{db: db, remote: remote}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "up"}

	if h.db != nil {
		dbHealth := h.db.Health()
		body["database"] = dbHealth
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "down"
		}
	}

	breaker := h.remote.BreakerState()
	body["remote"] = map[string]string{"breaker": breaker}
	if breaker == "open" && status == http.StatusOK {
		body["status"] = "degraded"
	}

	JSON(w, status, body)
}
