package repo

import (
	"context"

	"lureingest/internal/domain"
	"lureingest/internal/infra"
	"lureingest/internal/sqlinline"
)

// CatalogRepositoryPG implements domain.Catalog using PostgreSQL.
type CatalogRepositoryPG struct {
	db infra.SQLExecutor
}

// NewCatalogRepository constructs a new catalog repository instance.
func NewCatalogRepository(db infra.SQLExecutor) *CatalogRepositoryPG {
	return &CatalogRepositoryPG{db: db}
}

// Exists reports whether a row with key is already stored. A nil weight
// matches only rows without a weight.
func (r *CatalogRepositoryPG) Exists(ctx context.Context, key domain.DedupKey) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, sqlinline.QCatalogExists, key.Source, key.Slug, key.ColorName, key.Weight).Scan(&exists)
	if err != nil {
		return false, classify("catalog exists", err)
	}
	return exists, nil
}

// Insert stores row unless its key exists, in which case it returns
// domain.ErrDuplicateRow.
func (r *CatalogRepositoryPG) Insert(ctx context.Context, row domain.CanonicalRow) error {
	fish := row.TargetFish
	if fish == nil {
		fish = []string{}
	}
	tag, err := r.db.Exec(ctx, sqlinline.QCatalogInsert,
		row.Source,
		row.Slug,
		row.Name,
		row.NameKana,
		row.LureType,
		fish,
		row.Description,
		row.Price,
		row.ColorName,
		row.Weight,
		row.Length,
		row.ImageURL,
		row.SourceURL,
	)
	if err != nil {
		return classify("catalog insert", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateRow
	}
	return nil
}

var _ domain.Catalog = (*CatalogRepositoryPG)(nil)
