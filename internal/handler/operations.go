package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"pld/internal/domain"
	"pld/internal/middleware"
	"pld/internal/operation"
	"pld/internal/pipeline"
	"pld/pkg/logger"
	"pld/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AuditReader lists the transition history of one operation.
type AuditReader interface {
	ListByOperation(ctx context.Context, operationID uuid.UUID) ([]domain.StatusAudit, error)
}

type OperationHandler struct {
	operations *operation.Service
	pipeline   *pipeline.Service
	audit      AuditReader
	validator  *validator.Validator
	logger     logger.Logger
}

func NewOperationHandler(ops *operation.Service, pipe *pipeline.Service, audit AuditReader, v *validator.Validator, log logger.Logger) *OperationHandler {
	return &OperationHandler{
		operations: ops,
		pipeline:   pipe,
		audit:      audit,
		validator:  v,
		logger:     log,
	}
}

// Ingest handles POST /api/v1/operations
func (h *OperationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req operation.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.operations.Ingest(r.Context(), &req)
	if err != nil {
		h.logger.Error("Operation ingestion failed", map[string]interface{}{
			"client_rfc": req.ClientRFC,
			"error":      err.Error(),
		})
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, result)
}

// Get handles GET /api/v1/operations/{id}
func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid operation id")
		return
	}

	op, err := h.operations.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, op)
}

// List handles GET /api/v1/operations
func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := operation.Filter{
		ClientRFC:    q.Get("client_rfc"),
		ActivityType: q.Get("activity_type"),
		Status:       domain.OperationStatus(q.Get("status")),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset >= 0 {
		filter.Offset = offset
	}

	ops, err := h.operations.List(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
	})
}

// Audit handles GET /api/v1/operations/{id}/audit, returning the full
// transition history in chronological order.
func (h *OperationHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid operation id")
		return
	}

	// 404 for unknown operations rather than an empty trail.
	if _, err := h.operations.Get(r.Context(), id); err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	entries, err := h.audit.ListByOperation(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"operation_id": id,
		"entries":      entries,
		"count":        len(entries),
	})
}

// MarkReviewed handles POST /api/v1/operations/{id}/review
func (h *OperationHandler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid operation id")
		return
	}

	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Actor identity missing")
		return
	}

	op, err := h.pipeline.MarkReviewed(r.Context(), id, actorID)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, op)
}

// Escalate handles POST /api/v1/operations/{id}/escalate
func (h *OperationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid operation id")
		return
	}

	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, http.StatusUnauthorized, "Actor identity missing")
		return
	}

	op, err := h.pipeline.Escalate(r.Context(), id, actorID)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, op)
}

type markReportedRequest struct {
	ZeroDeclaration bool `json:"zero_declaration"`
}

// MarkReported handles POST /api/v1/operations/{id}/report
func (h *OperationHandler) MarkReported(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid operation id")
		return
	}

	var req markReportedRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	op, err := h.pipeline.MarkReported(r.Context(), id, req.ZeroDeclaration)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err.Error())
		return
	}

	respondJSON(w, h.logger, http.StatusOK, op)
}
