package postgres

import (
	"context"

	"pld/internal/domain"
	"pld/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.StatusAudit) error {
	query := `
		INSERT INTO pld.status_audit (
			id, operation_id, from_status, to_status, action, actor_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OperationID, entry.FromStatus, entry.ToStatus,
		entry.Action, entry.ActorID, entry.CreatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create audit entry")
	}

	return nil
}

func (r *AuditRepository) ListByOperation(ctx context.Context, operationID uuid.UUID) ([]domain.StatusAudit, error) {
	query := `
		SELECT * FROM pld.status_audit
		WHERE operation_id = $1
		ORDER BY created_at ASC
	`

	var entries []domain.StatusAudit
	if err := r.db.SelectContext(ctx, &entries, query, operationID); err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}

	return entries, nil
}
