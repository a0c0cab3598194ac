package postgres

import (
	"context"
	"encoding/json"

	"pld/internal/catalog"
	"pld/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// CatalogRepository stores the versioned compliance catalogs. Each row is
// a complete catalog snapshot; loading always validates.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type catalogRow struct {
	Version string `db:"version"`
	Content []byte `db:"content"`
}

// Save upserts a catalog snapshot under its version.
func (r *CatalogRepository) Save(ctx context.Context, f *catalog.File) error {
	// Validate before persisting; a broken catalog must never land.
	if _, err := catalog.FromFile(f); err != nil {
		return err
	}

	content, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "failed to marshal catalog")
	}

	query := `
		INSERT INTO pld.catalogs (version, content, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (version) DO UPDATE SET content = EXCLUDED.content
	`

	if _, err := r.db.ExecContext(ctx, query, f.Version, content); err != nil {
		return errors.Wrap(err, "failed to save catalog")
	}

	return nil
}

// LoadLatest returns the most recently created catalog snapshot,
// validated.
func (r *CatalogRepository) LoadLatest(ctx context.Context) (*catalog.Catalog, error) {
	query := `
		SELECT version, content FROM pld.catalogs
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row catalogRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, errors.Wrap(errors.ErrCatalogNotLoaded, err.Error())
	}

	return catalog.Parse(row.Content)
}

// LoadVersion returns one specific catalog snapshot, validated. Used for
// reproducible re-scoring of historical operations.
func (r *CatalogRepository) LoadVersion(ctx context.Context, version string) (*catalog.Catalog, error) {
	query := `
		SELECT version, content FROM pld.catalogs
		WHERE version = $1
	`

	var row catalogRow
	if err := r.db.GetContext(ctx, &row, query, version); err != nil {
		return nil, errors.Wrap(errors.ErrCatalogNotLoaded, err.Error())
	}

	return catalog.Parse(row.Content)
}
