package postgres

import (
	"context"
	"database/sql"

	"pld/internal/domain"
	"pld/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type UnitValueRepository struct {
	db *sqlx.DB
}

func NewUnitValueRepository(db *sqlx.DB) *UnitValueRepository {
	return &UnitValueRepository{db: db}
}

func (r *UnitValueRepository) FindByYear(ctx context.Context, year int) (*domain.UnitValue, error) {
	query := `
		SELECT * FROM pld.unit_values
		WHERE year = $1
	`

	var uv domain.UnitValue
	err := r.db.GetContext(ctx, &uv, query, year)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUnitValueNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get unit value")
	}

	return &uv, nil
}

func (r *UnitValueRepository) Upsert(ctx context.Context, uv *domain.UnitValue) error {
	query := `
		INSERT INTO pld.unit_values (year, value, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (year) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := r.db.ExecContext(ctx, query, uv.Year, uv.Value, uv.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to upsert unit value")
	}

	return nil
}
