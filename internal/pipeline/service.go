// Package pipeline drives an operation through the compliance status
// lifecycle: PENDING, PENDING_REVIEW, PENDING_REPORT, REPORTED. Every
// transition is validated against the legal transition table, stamped
// with its actor, and written to the audit trail. Concurrent writers are
// serialized through optimistic concurrency in the repository.
package pipeline

import (
	"context"
	"time"

	"pld/internal/domain"
	"pld/internal/metrics"
	"pld/pkg/errors"
	"pld/pkg/logger"

	"github.com/google/uuid"
)

// OperationRepository is the persistence contract the pipeline needs.
// Update must fail with ConflictError when expectedVersion no longer
// matches the stored row.
type OperationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	Update(ctx context.Context, op *domain.Operation, expectedVersion int) error
}

// AuditRepository records status transitions. History is never deleted.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.StatusAudit) error
}

type Service struct {
	repo   OperationRepository
	audit  AuditRepository
	logger logger.Logger
}

func NewService(repo OperationRepository, audit AuditRepository, log logger.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: log}
}

// MarkReviewed records a compliance officer's decision that an operation
// in PENDING_REVIEW needs no filing, returning it to PENDING.
func (s *Service) MarkReviewed(ctx context.Context, operationID, actorID uuid.UUID) (*domain.Operation, error) {
	if actorID == uuid.Nil {
		return nil, errors.ErrActorRequired
	}

	return s.transition(ctx, operationID, ActionMarkReviewed, false, func(op *domain.Operation, now time.Time) {
		op.ReviewedAt = &now
		op.ReviewedBy = &actorID
	}, &actorID)
}

// Escalate forces an operation into PENDING_REPORT. The action is
// irrevocable within this engine: a regulatory filing becomes mandatory
// and risk level is forced HIGH.
func (s *Service) Escalate(ctx context.Context, operationID, actorID uuid.UUID) (*domain.Operation, error) {
	if actorID == uuid.Nil {
		return nil, errors.ErrActorRequired
	}

	return s.transition(ctx, operationID, ActionEscalate, false, func(op *domain.Operation, now time.Time) {
		op.RiskLevel = domain.RiskLevelHigh
		op.EscalatedAt = &now
		op.EscalatedBy = &actorID
	}, &actorID)
}

// MarkReported is invoked by the external report-generation flow once a
// filing is confirmed. zeroDeclaration permits the PENDING path for
// period reports filed with no triggering operations.
func (s *Service) MarkReported(ctx context.Context, operationID uuid.UUID, zeroDeclaration bool) (*domain.Operation, error) {
	return s.transition(ctx, operationID, ActionMarkReported, zeroDeclaration, func(op *domain.Operation, now time.Time) {
		op.ReportedAt = &now
	}, nil)
}

func (s *Service) transition(
	ctx context.Context,
	operationID uuid.UUID,
	action Action,
	zeroDeclaration bool,
	apply func(op *domain.Operation, now time.Time),
	actorID *uuid.UUID,
) (*domain.Operation, error) {
	op, err := s.repo.FindByID(ctx, operationID)
	if err != nil {
		return nil, err
	}

	from := op.Status
	to, ok := targetFor(action, from, zeroDeclaration)
	if !ok {
		s.logger.Warn("Rejected status transition", map[string]interface{}{
			"operation_id": operationID,
			"action":       string(action),
			"from_status":  string(from),
		})
		metrics.TransitionsTotal.WithLabelValues(string(action), "rejected").Inc()
		return nil, &errors.InvalidTransitionError{From: string(from), Action: string(action)}
	}

	now := time.Now().UTC()
	op.Status = to
	op.UpdatedAt = now
	apply(op, now)

	expectedVersion := op.Version
	if err := s.repo.Update(ctx, op, expectedVersion); err != nil {
		return nil, err
	}
	op.Version = expectedVersion + 1

	entry := &domain.StatusAudit{
		ID:          uuid.New(),
		OperationID: operationID,
		FromStatus:  from,
		ToStatus:    to,
		Action:      string(action),
		ActorID:     actorID,
		CreatedAt:   now,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		// The transition itself is committed; a failed audit write is
		// surfaced loudly but does not roll the status back.
		s.logger.Error("Failed to write status audit entry", map[string]interface{}{
			"operation_id": operationID,
			"action":       string(action),
			"error":        err.Error(),
		})
	}

	metrics.TransitionsTotal.WithLabelValues(string(action), "completed").Inc()

	s.logger.Info("Status transition completed", map[string]interface{}{
		"operation_id": operationID,
		"action":       string(action),
		"from_status":  string(from),
		"to_status":    string(to),
	})

	return op, nil
}
