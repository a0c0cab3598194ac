package handler

import (
	"net/http"

	"pld/internal/catalog"
	"pld/pkg/logger"

	"github.com/gorilla/mux"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
	logger  logger.Logger
}

func NewCatalogHandler(cat *catalog.Catalog, log logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cat, logger: log}
}

// ListActivities handles GET /api/v1/catalog/activities
func (h *CatalogHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"catalog_version": h.catalog.Version,
		"activities":      h.catalog.Activities(),
	})
}

// GetActivity handles GET /api/v1/catalog/activities/{type}
func (h *CatalogHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	activityType := mux.Vars(r)["type"]

	matrix, err := h.catalog.Matrix(activityType)
	if err != nil {
		respondError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}
	threshold, err := h.catalog.Config(activityType)
	if err != nil {
		respondError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}
	factors, err := h.catalog.MergedFactors(activityType)
	if err != nil {
		respondError(w, h.logger, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"catalog_version": h.catalog.Version,
		"activity_type":   activityType,
		"matrix":          matrix,
		"threshold":       threshold,
		"factors":         factors,
	})
}
