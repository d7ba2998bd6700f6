package repository

import (
	"context"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/database"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

// CatalogRepository reads the cost accounting catalogs used to validate
// distribution lines.
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// LoadOperationCenters loads the operation center to cost center mapping.
// The result implements engine.Catalog for distribution validation.
func (r *CatalogRepository) LoadOperationCenters(ctx context.Context) (engine.MapCatalog, error) {
	query := `
		SELECT id, cost_center_id
		FROM operation_centers
		WHERE active = true
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to load operation centers")
	}
	defer rows.Close()

	catalog := engine.MapCatalog{}
	for rows.Next() {
		var opCenterID, costCenterID string
		if err := rows.Scan(&opCenterID, &costCenterID); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan operation center")
		}
		catalog[opCenterID] = costCenterID
	}
	return catalog, nil
}
