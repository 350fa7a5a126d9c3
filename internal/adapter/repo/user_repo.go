package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"lorekeep/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository backed by PostgreSQL.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

func (r *UserRepositoryPG) Create(ctx context.Context, u *domain.User) error {
	query := `
INSERT INTO users (id, email, name, role)
VALUES ($1, $2, $3, $4);
`
	_, err := r.pool.Exec(ctx, query, u.ID, u.Email, u.Name, u.Role)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
SELECT id, email, name, role, created_at, updated_at
FROM users
WHERE id = $1;
`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, "user", id)
	}
	return &u, nil
}

func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
SELECT id, email, name, role, created_at, updated_at
FROM users
WHERE email = $1;
`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, scanErr(err, "user", email)
	}
	return &u, nil
}

func (r *UserRepositoryPG) UpdateRole(ctx context.Context, id string, role domain.UserRole) error {
	query := `
UPDATE users SET role = $2, updated_at = NOW()
WHERE id = $1;
`
	return execExpectingRow(ctx, r.pool, query, "user", id, role)
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
