package handler

import (
	"net/http"
	"strings"
	"time"

	"pld/internal/operation"
	"pld/internal/scheduler"
	"pld/pkg/logger"
	"pld/pkg/validator"

	"github.com/gorilla/mux"
)

type AccumulationHandler struct {
	operations *operation.Service
	sweeper    *scheduler.Sweeper
	logger     logger.Logger
}

func NewAccumulationHandler(ops *operation.Service, sweeper *scheduler.Sweeper, log logger.Logger) *AccumulationHandler {
	return &AccumulationHandler{operations: ops, sweeper: sweeper, logger: log}
}

// ClientAccumulation handles GET /api/v1/clients/{rfc}/accumulation
func (h *AccumulationHandler) ClientAccumulation(w http.ResponseWriter, r *http.Request) {
	rfc := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["rfc"]))
	if !validator.ValidRFC(rfc) {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid RFC format")
		return
	}

	activityType := r.URL.Query().Get("activity_type")
	if activityType == "" {
		respondError(w, h.logger, http.StatusBadRequest, "activity_type query parameter required")
		return
	}

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "as_of must be RFC3339")
			return
		}
		asOf = parsed.UTC()
	}

	acc, err := h.operations.Accumulation(r.Context(), rfc, activityType, asOf)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, acc)
}

// ListAccumulations handles GET /api/v1/accumulations. It runs one sweep
// cycle over the active operation set and returns every client/activity
// group's current position.
func (h *AccumulationHandler) ListAccumulations(w http.ResponseWriter, r *http.Request) {
	accs, err := h.sweeper.Snapshot(r.Context())
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"accumulations": accs,
		"count":         len(accs),
	})
}

// Summary handles GET /api/v1/summary
func (h *AccumulationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.operations.Summary(r.Context(), operation.Filter{
		ClientRFC:    q.Get("client_rfc"),
		ActivityType: q.Get("activity_type"),
	})
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, summary)
}
