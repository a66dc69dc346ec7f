package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when a wallet's available balance cannot
	// cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrInvalidAmount indicates a credit or debit with a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnsupportedCurrency indicates a currency outside the wallet's fixed set.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrWalletNotFound indicates no wallet exists for the user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates no transaction carries the given reference.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Currencies is the fixed set of balances provisioned for every wallet.
var Currencies = []string{"NGN", "USD", "GHS"}

const (
	KindIncome  = "INCOME"
	KindExpense = "EXPENSE"

	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusReversed  = "REVERSED"
)

// Wallet is the per-user container of balances across currencies.
type Wallet struct {
	ID        string
	UserID    string
	Balances  []Balance
	CreatedAt time.Time
}

// Balance holds the settled (available) and reserved (pending) amounts for one
// currency, in minor units.
type Balance struct {
	Currency  string
	Available int64
	Pending   int64
}

// Transaction is the append-style record of a balance-affecting event. The
// Reference field is the idempotency key: at most one committed transaction
// ever carries a given reference.
type Transaction struct {
	ID          string
	UserID      string
	Currency    string
	Amount      int64
	Kind        string
	Status      string
	Reference   string
	Description string
	CreatedAt   time.Time
}

// CreditResult reports the outcome of a credit. Applied is false when the
// reference was already recorded and the call was an idempotent no-op.
type CreditResult struct {
	Applied   bool
	Available int64
}

// Ledger is the authoritative balance store. All balance mutation in the
// system goes through this interface.
type Ledger interface {
	// GetOrCreateWallet returns the user's wallet, provisioning it with the
	// fixed currency set on first access. Safe under concurrent first access.
	GetOrCreateWallet(ctx context.Context, userID string) (Wallet, error)

	// Credit atomically increments available and appends the transaction
	// record, or does nothing if the reference already exists.
	Credit(ctx context.Context, userID, currency string, amount int64, reference, description string) (CreditResult, error)

	// Debit atomically decrements available, rejecting the call if it would
	// drive the balance negative. Debit carries no idempotency key; payout
	// idempotency lives at the orchestrator.
	Debit(ctx context.Context, userID, currency string, amount int64) (int64, error)

	// Balances returns every currency for the wallet, zero amounts included.
	Balances(ctx context.Context, userID string) ([]Balance, error)

	// RecordPending appends a non-balance-affecting transaction record, used
	// by the payout orchestrator to persist the reference before the provider
	// call. A duplicate reference is a no-op.
	RecordPending(ctx context.Context, tx Transaction) error

	// FindByReference resolves a transaction by its unique reference.
	FindByReference(ctx context.Context, reference string) (Transaction, error)

	// UpdateStatus transitions a transaction's status by reference.
	UpdateStatus(ctx context.Context, reference, status string) error

	// ListPending returns PENDING transactions created before the cutoff,
	// candidates for reconciliation against the provider.
	ListPending(ctx context.Context, before time.Time) ([]Transaction, error)
}

func supportedCurrency(currency string) bool {
	for _, c := range Currencies {
		if c == currency {
			return true
		}
	}
	return false
}
