package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresLedger persists wallets, balances and transactions in PostgreSQL.
// Idempotency is guaranteed by the unique index on transactions.reference; the
// application-level existence check is only a fast path.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed ledger implementation.
func NewPostgres(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// GetOrCreateWallet provisions the wallet row and one balance row per
// supported currency. ON CONFLICT DO NOTHING keeps concurrent first access
// safe without a retry loop.
func (l *PostgresLedger) GetOrCreateWallet(ctx context.Context, userID string) (Wallet, error) {
	if _, err := l.db.Exec(ctx, `INSERT INTO wallets (id, user_id) VALUES ($1, $2)
        ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID); err != nil {
		return Wallet{}, fmt.Errorf("create wallet: %w", err)
	}

	var w Wallet
	var walletID uuid.UUID
	row := l.db.QueryRow(ctx, `SELECT id, created_at FROM wallets WHERE user_id = $1`, userID)
	if err := row.Scan(&walletID, &w.CreatedAt); err != nil {
		return Wallet{}, fmt.Errorf("load wallet: %w", err)
	}
	w.ID = walletID.String()
	w.UserID = userID

	for _, c := range Currencies {
		if _, err := l.db.Exec(ctx, `INSERT INTO wallet_balances (id, wallet_id, currency) VALUES ($1, $2, $3)
            ON CONFLICT (wallet_id, currency) DO NOTHING`, uuid.New(), walletID, c); err != nil {
			return Wallet{}, fmt.Errorf("create balance %s: %w", c, err)
		}
	}

	balances, err := l.balancesForWallet(ctx, walletID)
	if err != nil {
		return Wallet{}, err
	}
	w.Balances = balances
	return w, nil
}

func (l *PostgresLedger) Credit(ctx context.Context, userID, currency string, amount int64, reference, description string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	if !supportedCurrency(currency) {
		return CreditResult{}, ErrUnsupportedCurrency
	}

	w, err := l.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return CreditResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CreditResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var available int64
	if err := tx.QueryRow(ctx, `SELECT available FROM wallet_balances
        WHERE wallet_id = $1 AND currency = $2 FOR UPDATE`, w.ID, currency).Scan(&available); err != nil {
		return CreditResult{}, fmt.Errorf("lock balance: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1)`, reference).Scan(&exists); err != nil {
		return CreditResult{}, err
	}
	if exists {
		return CreditResult{Applied: false, Available: available}, nil
	}

	_, err = tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, user_id, currency, amount, kind, status, reference, description)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), w.ID, userID, currency, amount, KindIncome, StatusCompleted, reference, description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost the race to a concurrent delivery of the same event.
			return CreditResult{Applied: false, Available: available}, nil
		}
		return CreditResult{}, fmt.Errorf("record transaction: %w", err)
	}

	if err := tx.QueryRow(ctx, `UPDATE wallet_balances SET available = available + $1
        WHERE wallet_id = $2 AND currency = $3 RETURNING available`, amount, w.ID, currency).Scan(&available); err != nil {
		return CreditResult{}, fmt.Errorf("apply credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CreditResult{}, err
	}
	return CreditResult{Applied: true, Available: available}, nil
}

func (l *PostgresLedger) Debit(ctx context.Context, userID, currency string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if !supportedCurrency(currency) {
		return 0, ErrUnsupportedCurrency
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var available int64
	err = tx.QueryRow(ctx, `SELECT b.available FROM wallet_balances b
        INNER JOIN wallets w ON w.id = b.wallet_id
        WHERE w.user_id = $1 AND b.currency = $2 FOR UPDATE OF b`, userID, currency).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	if available < amount {
		return available, ErrInsufficientFunds
	}

	if err := tx.QueryRow(ctx, `UPDATE wallet_balances b SET available = b.available - $1
        FROM wallets w
        WHERE w.id = b.wallet_id AND w.user_id = $2 AND b.currency = $3
        RETURNING b.available`, amount, userID, currency).Scan(&available); err != nil {
		return 0, fmt.Errorf("apply debit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return available, nil
}

func (l *PostgresLedger) Balances(ctx context.Context, userID string) ([]Balance, error) {
	var walletID uuid.UUID
	err := l.db.QueryRow(ctx, `SELECT id FROM wallets WHERE user_id = $1`, userID).Scan(&walletID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return l.balancesForWallet(ctx, walletID)
}

func (l *PostgresLedger) RecordPending(ctx context.Context, tx Transaction) error {
	w, err := l.GetOrCreateWallet(ctx, tx.UserID)
	if err != nil {
		return err
	}
	status := tx.Status
	if status == "" {
		status = StatusPending
	}
	_, err = l.db.Exec(ctx, `INSERT INTO transactions (id, wallet_id, user_id, currency, amount, kind, status, reference, description)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (reference) DO NOTHING`,
		uuid.New(), w.ID, tx.UserID, tx.Currency, tx.Amount, tx.Kind, status, tx.Reference, tx.Description)
	if err != nil {
		return fmt.Errorf("record pending transaction: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByReference(ctx context.Context, reference string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT id, user_id, currency, amount, kind, status, reference, description, created_at
        FROM transactions WHERE reference = $1`, reference)
	return scanTransaction(row)
}

func (l *PostgresLedger) UpdateStatus(ctx context.Context, reference, status string) error {
	tag, err := l.db.Exec(ctx, `UPDATE transactions SET status = $2 WHERE reference = $1`, reference, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (l *PostgresLedger) ListPending(ctx context.Context, before time.Time) ([]Transaction, error) {
	rows, err := l.db.Query(ctx, `SELECT id, user_id, currency, amount, kind, status, reference, description, created_at
        FROM transactions WHERE status = $1 AND created_at < $2 ORDER BY created_at`, StatusPending, before.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (l *PostgresLedger) balancesForWallet(ctx context.Context, walletID uuid.UUID) ([]Balance, error) {
	rows, err := l.db.Query(ctx, `SELECT currency, available, pending FROM wallet_balances
        WHERE wallet_id = $1 ORDER BY currency`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.Currency, &b.Available, &b.Pending); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var id uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &tx.UserID, &tx.Currency, &tx.Amount, &tx.Kind, &tx.Status, &tx.Reference, &tx.Description, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}
