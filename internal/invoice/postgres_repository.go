package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores invoices in PostgreSQL. Payment application is
// idempotent through the unique index on invoice_payments.reference.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, inv Invoice) error {
	status := inv.Status
	if status == "" {
		status = StatusDraft
	}
	_, err := r.db.Exec(ctx, `INSERT INTO invoices (id, user_id, currency, total_amount, amount_paid, status, payment_ref)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		inv.ID, inv.UserID, inv.Currency, inv.TotalAmount, inv.AmountPaid, status, inv.PaymentRef)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Invoice, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectInvoice+` WHERE id = $1`, id))
}

func (r *PostgresRepository) FindByPaymentRef(ctx context.Context, ref string) (Invoice, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectInvoice+` WHERE payment_ref = $1`, ref))
}

func (r *PostgresRepository) AttachInstrument(ctx context.Context, id string, details InstrumentDetails) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET
        payment_ref = COALESCE(NULLIF($2, ''), payment_ref),
        account_number = $3,
        bank_name = $4,
        crypto_address = $5,
        status = CASE WHEN status = $6 THEN $7 ELSE status END,
        updated_at = now()
        WHERE id = $1`, id, details.PaymentRef, details.AccountNumber, details.BankName, details.CryptoAddress, StatusDraft, StatusSent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ApplyPayment(ctx context.Context, id, eventRef string, amount int64) (Invoice, bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Invoice{}, false, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	inv, err := r.scanOne(tx.QueryRow(ctx, selectInvoice+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, false, err
	}

	tag, err := tx.Exec(ctx, `INSERT INTO invoice_payments (id, invoice_id, reference, amount)
        VALUES ($1, $2, $3, $4) ON CONFLICT (reference) DO NOTHING`,
		uuid.New(), id, eventRef, amount)
	if err != nil {
		return Invoice{}, false, fmt.Errorf("record invoice payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Duplicate delivery of the same event.
		return inv, false, nil
	}

	inv.AmountPaid += amount
	inv.Status = statusFor(inv.AmountPaid, inv.TotalAmount)
	if _, err := tx.Exec(ctx, `UPDATE invoices SET amount_paid = $2, status = $3, updated_at = now()
        WHERE id = $1`, id, inv.AmountPaid, inv.Status); err != nil {
		return Invoice{}, false, fmt.Errorf("apply invoice payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

const selectInvoice = `SELECT id, user_id, currency, total_amount, amount_paid, status,
    COALESCE(payment_ref, ''), COALESCE(account_number, ''), COALESCE(bank_name, ''),
    COALESCE(crypto_address, ''), created_at, updated_at FROM invoices`

func (r *PostgresRepository) scanOne(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var createdAt, updatedAt time.Time
	err := row.Scan(&inv.ID, &inv.UserID, &inv.Currency, &inv.TotalAmount, &inv.AmountPaid, &inv.Status,
		&inv.PaymentRef, &inv.AccountNumber, &inv.BankName, &inv.CryptoAddress, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	inv.CreatedAt = createdAt.UTC()
	inv.UpdatedAt = updatedAt.UTC()
	return inv, nil
}
