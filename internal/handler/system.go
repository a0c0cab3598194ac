package handler

import (
	"net/http"
	"time"

	"pld/internal/catalog"
	"pld/pkg/logger"

	"github.com/jmoiron/sqlx"
)

type SystemHandler struct {
	db      *sqlx.DB
	catalog *catalog.Catalog
	logger  logger.Logger
}

func NewSystemHandler(db *sqlx.DB, cat *catalog.Catalog, log logger.Logger) *SystemHandler {
	return &SystemHandler{db: db, catalog: cat, logger: log}
}

// Health handles GET /health. Liveness only; no dependency checks.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. The engine is ready once the database answers
// and a catalog is loaded.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		respondJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "database unreachable",
		})
		return
	}
	if h.catalog == nil {
		respondJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "catalog not loaded",
		})
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":          "ready",
		"catalog_version": h.catalog.Version,
	})
}
