package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pld/internal/domain"
	"pld/internal/operation"
	"pld/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type OperationRepository struct {
	db *sqlx.DB
}

func NewOperationRepository(db *sqlx.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Create(ctx context.Context, op *domain.Operation) error {
	query := `
		INSERT INTO pld.operations (
			id, client_rfc, activity_type, amount, currency, operation_date,
			risk_level, risk_score, triggered_factors, status,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		op.ID, op.ClientRFC, op.ActivityType, op.Amount, op.Currency, op.OperationDate,
		op.RiskLevel, op.RiskScore, op.TriggeredFactors, op.Status,
		op.Version, op.CreatedAt, op.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create operation")
	}

	return nil
}

func (r *OperationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	query := `
		SELECT * FROM pld.operations
		WHERE id = $1
	`

	var op domain.Operation
	err := r.db.GetContext(ctx, &op, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOperationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get operation")
	}

	return &op, nil
}

// Update persists scoring and pipeline mutations with an optimistic
// concurrency check on version. A version mismatch returns ConflictError;
// the caller re-fetches and retries.
func (r *OperationRepository) Update(ctx context.Context, op *domain.Operation, expectedVersion int) error {
	query := `
		UPDATE pld.operations
		SET risk_level = $1, risk_score = $2, status = $3,
		    reviewed_at = $4, reviewed_by = $5,
		    escalated_at = $6, escalated_by = $7,
		    reported_at = $8,
		    version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11
	`

	result, err := r.db.ExecContext(ctx, query,
		op.RiskLevel, op.RiskScore, op.Status,
		op.ReviewedAt, op.ReviewedBy,
		op.EscalatedAt, op.EscalatedBy,
		op.ReportedAt,
		time.Now().UTC(),
		op.ID, expectedVersion,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update operation")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		// Either the row vanished or someone else bumped the version.
		if _, ferr := r.FindByID(ctx, op.ID); ferr != nil {
			return ferr
		}
		return &errors.ConflictError{ID: op.ID.String(), ExpectedVersion: expectedVersion}
	}

	return nil
}

func (r *OperationRepository) List(ctx context.Context, filter operation.Filter) ([]domain.Operation, error) {
	var (
		conditions []string
		args       []interface{}
	)

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ClientRFC != "" {
		add("client_rfc = $%d", filter.ClientRFC)
	}
	if filter.ActivityType != "" {
		add("activity_type = $%d", filter.ActivityType)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `SELECT * FROM pld.operations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY operation_date DESC, created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var ops []domain.Operation
	if err := r.db.SelectContext(ctx, &ops, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list operations")
	}

	return ops, nil
}

func (r *OperationRepository) ListByClientActivity(ctx context.Context, clientRFC, activityType string) ([]domain.Operation, error) {
	query := `
		SELECT * FROM pld.operations
		WHERE client_rfc = $1 AND activity_type = $2
		ORDER BY operation_date ASC
	`

	var ops []domain.Operation
	if err := r.db.SelectContext(ctx, &ops, query, clientRFC, activityType); err != nil {
		return nil, errors.Wrap(err, "failed to list client operations")
	}

	return ops, nil
}

// ListActive returns every operation that is not yet reported, the input
// of the accumulation sweep.
func (r *OperationRepository) ListActive(ctx context.Context) ([]domain.Operation, error) {
	query := `
		SELECT * FROM pld.operations
		WHERE status != $1
		ORDER BY client_rfc, activity_type, operation_date ASC
	`

	var ops []domain.Operation
	if err := r.db.SelectContext(ctx, &ops, query, domain.StatusReported); err != nil {
		return nil, errors.Wrap(err, "failed to list active operations")
	}

	return ops, nil
}
