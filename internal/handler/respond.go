// Package handler exposes the compliance engine over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"pld/pkg/errors"
	"pld/pkg/logger"
)

func respondJSON(w http.ResponseWriter, log logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("json encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func respondError(w http.ResponseWriter, log logger.Logger, status int, message string) {
	respondJSON(w, log, status, map[string]string{"error": message})
}

// statusFor maps engine errors onto HTTP status codes. Catalog invariant
// violations are server-side faults; rejected transitions and concurrent
// writes are client-recoverable conflicts.
func statusFor(err error) int {
	var (
		unknownActivity *errors.UnknownActivityError
		tierConfig      *errors.TierConfigError
		invalidTrans    *errors.InvalidTransitionError
		conflict        *errors.ConflictError
	)

	switch {
	case errors.As(err, &unknownActivity):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tierConfig):
		return http.StatusInternalServerError
	case errors.As(err, &invalidTrans):
		return http.StatusConflict
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidRFC), errors.Is(err, errors.ErrActorRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
