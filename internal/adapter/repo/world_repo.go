package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lorekeep/internal/domain"
)

// WorldRepositoryPG implements domain.WorldRepository for all four levels of
// the content hierarchy. The levels share one table shape (id, parent, owner,
// name, description, timestamps), so each level delegates to the same helpers
// parameterized by table and parent column.
type WorldRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewWorldRepository creates a new content repository backed by PostgreSQL.
func NewWorldRepository(pool *pgxpool.Pool) *WorldRepositoryPG {
	return &WorldRepositoryPG{pool: pool}
}

// --- worlds (no parent column) ---

func (r *WorldRepositoryPG) CreateWorld(ctx context.Context, w *domain.World) error {
	query := `
INSERT INTO worlds (id, owner_id, name, description)
VALUES ($1, $2, $3, $4);
`
	_, err := r.pool.Exec(ctx, query, w.ID, w.OwnerID, w.Name, w.Description)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *WorldRepositoryPG) GetWorld(ctx context.Context, id string) (*domain.World, error) {
	query := `
SELECT id, owner_id, name, description, created_at, updated_at
FROM worlds
WHERE id = $1;
`
	var w domain.World
	err := r.pool.QueryRow(ctx, query, id).Scan(&w.ID, &w.OwnerID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, "world", id)
	}
	return &w, nil
}

func (r *WorldRepositoryPG) UpdateWorld(ctx context.Context, w *domain.World) error {
	query := `
UPDATE worlds SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "world", w.ID, w.Name, w.Description)
}

func (r *WorldRepositoryPG) DeleteWorld(ctx context.Context, id string) error {
	return execExpectingRow(ctx, r.pool, `DELETE FROM worlds WHERE id = $1;`, "world", id)
}

func (r *WorldRepositoryPG) ListWorlds(ctx context.Context, f domain.ContentFilter, skip, take int) ([]domain.World, int, error) {
	query := `
SELECT id, owner_id, name, description, created_at, updated_at,
       COUNT(*) OVER () AS total_count
FROM worlds
WHERE ($1 = '' OR owner_id = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
ORDER BY created_at DESC
OFFSET $3 LIMIT $4;
`
	rows, err := r.pool.Query(ctx, query, f.OwnerID, f.Search, skip, take)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	defer rows.Close()

	var out []domain.World
	total := 0
	for rows.Next() {
		var w domain.World
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt, &total); err != nil {
			return nil, 0, storeErr(err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err)
	}
	return out, total, nil
}

// TransferWorld reassigns a world and everything beneath it to a new owner.
func (r *WorldRepositoryPG) TransferWorld(ctx context.Context, id, newOwnerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE worlds SET owner_id = $2, updated_at = NOW() WHERE id = $1;`, id, newOwnerID)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: world %s", domain.ErrNotFound, id)
	}

	cascade := []string{
		`UPDATE campaigns SET owner_id = $2, updated_at = NOW() WHERE world_id = $1;`,
		`UPDATE adventures SET owner_id = $2, updated_at = NOW()
		 WHERE campaign_id IN (SELECT id FROM campaigns WHERE world_id = $1);`,
		`UPDATE encounters SET owner_id = $2, updated_at = NOW()
		 WHERE adventure_id IN (
		   SELECT a.id FROM adventures a
		   JOIN campaigns c ON c.id = a.campaign_id
		   WHERE c.world_id = $1);`,
	}
	for _, q := range cascade {
		if _, err := tx.Exec(ctx, q, id, newOwnerID); err != nil {
			return storeErr(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// --- campaigns ---

func (r *WorldRepositoryPG) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
INSERT INTO campaigns (id, world_id, owner_id, name, description)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, c.ID, c.WorldID, c.OwnerID, c.Name, c.Description)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *WorldRepositoryPG) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `
SELECT id, world_id, owner_id, name, description, created_at, updated_at
FROM campaigns
WHERE id = $1;
`
	var c domain.Campaign
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.WorldID, &c.OwnerID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, "campaign", id)
	}
	return &c, nil
}

func (r *WorldRepositoryPG) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
UPDATE campaigns SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "campaign", c.ID, c.Name, c.Description)
}

func (r *WorldRepositoryPG) DeleteCampaign(ctx context.Context, id string) error {
	return execExpectingRow(ctx, r.pool, `DELETE FROM campaigns WHERE id = $1;`, "campaign", id)
}

func (r *WorldRepositoryPG) ListCampaigns(ctx context.Context, f domain.ContentFilter, skip, take int) ([]domain.Campaign, int, error) {
	query := `
SELECT id, world_id, owner_id, name, description, created_at, updated_at,
       COUNT(*) OVER () AS total_count
FROM campaigns
WHERE ($1 = '' OR world_id = $1)
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

	var out []domain.Campaign
	total := 0
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.WorldID, &c.OwnerID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &total); err != nil {
			return nil, 0, storeErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err)
	}
	return out, total, nil
}

// --- adventures ---

func (r *WorldRepositoryPG) CreateAdventure(ctx context.Context, a *domain.Adventure) error {
	query := `
INSERT INTO adventures (id, campaign_id, owner_id, name, description)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, a.ID, a.CampaignID, a.OwnerID, a.Name, a.Description)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *WorldRepositoryPG) GetAdventure(ctx context.Context, id string) (*domain.Adventure, error) {
	query := `
SELECT id, campaign_id, owner_id, name, description, created_at, updated_at
FROM adventures
WHERE id = $1;
`
	var a domain.Adventure
	err := r.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.CampaignID, &a.OwnerID, &a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, "adventure", id)
	}
	return &a, nil
}

func (r *WorldRepositoryPG) UpdateAdventure(ctx context.Context, a *domain.Adventure) error {
	query := `
UPDATE adventures SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "adventure", a.ID, a.Name, a.Description)
}

func (r *WorldRepositoryPG) DeleteAdventure(ctx context.Context, id string) error {
	return execExpectingRow(ctx, r.pool, `DELETE FROM adventures WHERE id = $1;`, "adventure", id)
}

func (r *WorldRepositoryPG) ListAdventures(ctx context.Context, f domain.ContentFilter, skip, take int) ([]domain.Adventure, int, error) {
	query := `
SELECT id, campaign_id, owner_id, name, description, created_at, updated_at,
       COUNT(*) OVER () AS total_count
FROM adventures
WHERE ($1 = '' OR campaign_id = $1)
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

	var out []domain.Adventure
	total := 0
	for rows.Next() {
		var a domain.Adventure
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.OwnerID, &a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt, &total); err != nil {
			return nil, 0, storeErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err)
	}
	return out, total, nil
}

// --- encounters ---

func (r *WorldRepositoryPG) CreateEncounter(ctx context.Context, e *domain.Encounter) error {
	query := `
INSERT INTO encounters (id, adventure_id, owner_id, name, description)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query, e.ID, e.AdventureID, e.OwnerID, e.Name, e.Description)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *WorldRepositoryPG) GetEncounter(ctx context.Context, id string) (*domain.Encounter, error) {
	query := `
SELECT id, adventure_id, owner_id, name, description, created_at, updated_at
FROM encounters
WHERE id = $1;
`
	var e domain.Encounter
	err := r.pool.QueryRow(ctx, query, id).Scan(&e.ID, &e.AdventureID, &e.OwnerID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, "encounter", id)
	}
	return &e, nil
}

func (r *WorldRepositoryPG) UpdateEncounter(ctx context.Context, e *domain.Encounter) error {
	query := `
UPDATE encounters SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "encounter", e.ID, e.Name, e.Description)
}

func (r *WorldRepositoryPG) DeleteEncounter(ctx context.Context, id string) error {
	return execExpectingRow(ctx, r.pool, `DELETE FROM encounters WHERE id = $1;`, "encounter", id)
}

func (r *WorldRepositoryPG) ListEncounters(ctx context.Context, f domain.ContentFilter, skip, take int) ([]domain.Encounter, int, error) {
	query := `
SELECT id, adventure_id, owner_id, name, description, created_at, updated_at,
       COUNT(*) OVER () AS total_count
FROM encounters
WHERE ($1 = '' OR adventure_id = $1)
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

	var out []domain.Encounter
	total := 0
	for rows.Next() {
		var e domain.Encounter
		if err := rows.Scan(&e.ID, &e.AdventureID, &e.OwnerID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt, &total); err != nil {
			return nil, 0, storeErr(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err)
	}
	return out, total, nil
}

// --- shared helpers ---

func execExpectingRow(ctx context.Context, pool *pgxpool.Pool, query, entity string, args ...any) error {
	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %v", domain.ErrNotFound, entity, args[0])
	}
	return nil
}

func scanErr(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, entity, id)
	}
	return storeErr(err)
}

var _ domain.WorldRepository = (*WorldRepositoryPG)(nil)
