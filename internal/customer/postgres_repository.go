package customer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores customer links in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByProviderRef(ctx context.Context, ref string) (Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, provider_ref, email, created_at
        FROM customers WHERE provider_ref = $1`, ref)
	var c Customer
	var id uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &c.UserID, &c.ProviderRef, &c.Email, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	c.ID = id.String()
	c.CreatedAt = createdAt.UTC()
	return c, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, c Customer) error {
	_, err := r.db.Exec(ctx, `INSERT INTO customers (id, user_id, provider_ref, email)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (provider_ref) DO UPDATE SET user_id = EXCLUDED.user_id, email = EXCLUDED.email`,
		uuid.New(), c.UserID, c.ProviderRef, c.Email)
	return err
}
