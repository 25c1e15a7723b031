package handlers

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/engine/workspace"
)

type HealthHandler struct {
	db         *sql.DB
	workspaces *workspace.Cache
}

func NewHealthHandler(db *sql.DB, workspaces *workspace.Cache) *HealthHandler {
	return &HealthHandler{db: db, workspaces: workspaces}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := h.db.PingContext(r.Context()); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
	} else {
		checks["database"] = "healthy"
	}

	status := "healthy"
	for _, check := range checks {
		if strings.HasPrefix(check, "unhealthy") {
			status = "degraded"
			break
		}
	}

	response := struct {
		Status     string            `json:"status"`
		Timestamp  int64             `json:"timestamp"`
		Checks     map[string]string `json:"checks"`
		Workspaces int               `json:"workspaces"`
	}{
		Status:     status,
		Timestamp:  time.Now().Unix(),
		Checks:     checks,
		Workspaces: h.workspaces.Len(),
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}
