package collection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores collection instruments in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, ins Instrument) error {
	id := ins.ID
	if id == "" {
		id = uuid.NewString()
	}
	var expiresAt *time.Time
	if !ins.ExpiresAt.IsZero() {
		t := ins.ExpiresAt.UTC()
		expiresAt = &t
	}
	_, err := r.db.Exec(ctx, `INSERT INTO collection_instruments
        (id, external_ref, user_id, method, currency, amount, invoice_id, customer_ref,
         account_number, account_name, bank_name, address, asset, network, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (external_ref) DO NOTHING`,
		id, ins.ExternalRef, ins.UserID, ins.Method, ins.Currency, ins.Amount, ins.InvoiceID,
		ins.CustomerRef, ins.AccountNumber, ins.AccountName, ins.BankName, ins.Address,
		ins.Asset, ins.Network, expiresAt)
	return err
}

func (r *PostgresRepository) FindByExternalRef(ctx context.Context, ref string) (Instrument, error) {
	row := r.db.QueryRow(ctx, `SELECT id, external_ref, user_id, method, currency, amount,
        COALESCE(invoice_id::text, ''), customer_ref, account_number, account_name, bank_name,
        address, asset, network, COALESCE(expires_at, 'epoch'::timestamptz), created_at
        FROM collection_instruments WHERE external_ref = $1`, ref)

	var ins Instrument
	var id uuid.UUID
	var expiresAt, createdAt time.Time
	err := row.Scan(&id, &ins.ExternalRef, &ins.UserID, &ins.Method, &ins.Currency, &ins.Amount,
		&ins.InvoiceID, &ins.CustomerRef, &ins.AccountNumber, &ins.AccountName, &ins.BankName,
		&ins.Address, &ins.Asset, &ins.Network, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instrument{}, ErrInstrumentNotFound
		}
		return Instrument{}, err
	}
	ins.ID = id.String()
	if expiresAt.Unix() > 0 {
		ins.ExpiresAt = expiresAt.UTC()
	}
	ins.CreatedAt = createdAt.UTC()
	return ins, nil
}
