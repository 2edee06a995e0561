package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

var catalogTables = map[entity.Domain]string{
	entity.DomainResource:    "resource_status_catalog",
	entity.DomainLoan:        "loan_status_catalog",
	entity.DomainMaintenance: "maintenance_outcome_catalog",
}

// CatalogRepository implements port.CatalogRepository
type CatalogRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// ListDomain returns every entry of one catalog ordered by ID
func (r *CatalogRepository) ListDomain(ctx context.Context, domain entity.Domain) ([]entity.StatusEntry, error) {
	table, ok := catalogTables[domain]
	if !ok {
		return nil, fmt.Errorf("unknown catalog domain %q", domain)
	}

	ex := getExecutor(ctx, r.db)
	var entries []entity.StatusEntry
	query := `SELECT status_id, status_name, description FROM ` + table + ` ORDER BY status_id`
	if err := sqlx.SelectContext(ctx, ex, &entries, query); err != nil {
		r.logger.Error("Failed to load status catalog", zap.String("domain", string(domain)), zap.Error(err))
		return nil, fmt.Errorf("failed to load %s catalog: %w", domain, err)
	}

	for i := range entries {
		entries[i].Domain = domain
	}
	return entries, nil
}

var _ port.CatalogRepository = (*CatalogRepository)(nil)
