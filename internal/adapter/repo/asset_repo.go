package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"lorekeep/internal/domain"
)

// AssetRepositoryPG implements domain.AssetRepository.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new asset repository backed by PostgreSQL.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

func (r *AssetRepositoryPG) Create(ctx context.Context, a *domain.Asset) error {
	query := `
INSERT INTO assets (id, parent_kind, parent_id, owner_id, kind, name, description, portrait_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query, a.ID, a.ParentKind, a.ParentID, a.OwnerID, a.Kind, a.Name, a.Description, a.PortraitURL)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *AssetRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	query := `
SELECT id, parent_kind, parent_id, owner_id, kind, name, description, portrait_url, created_at, updated_at
FROM assets
WHERE id = $1;
`
	var a domain.Asset
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.ParentKind, &a.ParentID, &a.OwnerID, &a.Kind, &a.Name, &a.Description, &a.PortraitURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, scanErr(err, "asset", id)
	}
	return &a, nil
}

// GetByIDs fetches multiple assets preserving the order of ids. Unknown ids
// are simply absent from the result; callers decide whether that is an error.
func (r *AssetRepositoryPG) GetByIDs(ctx context.Context, ids []string) ([]domain.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
SELECT id, parent_kind, parent_id, owner_id, kind, name, description, portrait_url, created_at, updated_at
FROM assets
WHERE id = ANY($1);
`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Asset, len(ids))
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.ParentKind, &a.ParentID, &a.OwnerID, &a.Kind, &a.Name, &a.Description, &a.PortraitURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, storeErr(err)
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	out := make([]domain.Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AssetRepositoryPG) Update(ctx context.Context, a *domain.Asset) error {
	query := `
UPDATE assets SET kind = $2, name = $3, description = $4, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "asset", a.ID, a.Kind, a.Name, a.Description)
}

func (r *AssetRepositoryPG) Delete(ctx context.Context, id string) error {
	return execExpectingRow(ctx, r.pool, `DELETE FROM assets WHERE id = $1;`, "asset", id)
}

func (r *AssetRepositoryPG) List(ctx context.Context, f domain.ContentFilter, skip, take int) ([]domain.Asset, int, error) {
	query := `
SELECT id, parent_kind, parent_id, owner_id, kind, name, description, portrait_url, created_at, updated_at,
       COUNT(*) OVER () AS total_count
FROM assets
WHERE ($1 = '' OR parent_id = $1)
  AND ($2 = '' OR owner_id = $2)
  AND ($3 = '' OR name ILIKE '%' || $3 || '%')
ORDER BY created_at DESC
OFFSET $4 LIMIT $5;
`
	rows, err := r.pool.Query(ctx, query, f.ParentID, f.OwnerID, f.Search, skip, take)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	defer rows.Close()

	var out []domain.Asset
	total := 0
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.ParentKind, &a.ParentID, &a.OwnerID, &a.Kind, &a.Name, &a.Description, &a.PortraitURL, &a.CreatedAt, &a.UpdatedAt, &total); err != nil {
			return nil, 0, storeErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err)
	}
	return out, total, nil
}

// SetPortraitURL records the artifact produced by a generation job item.
func (r *AssetRepositoryPG) SetPortraitURL(ctx context.Context, id, url string) error {
	query := `
UPDATE assets SET portrait_url = $2, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "asset", id, url)
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
