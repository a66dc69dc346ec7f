package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	wallets map[string]*memWallet          // keyed by user ID
	txs     map[string]Transaction         // keyed by reference
	order   []string                       // references in insertion order
}

type memWallet struct {
	id        string
	createdAt time.Time
	balances  map[string]*Balance // keyed by currency
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and dev mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		wallets: make(map[string]*memWallet),
		txs:     make(map[string]Transaction),
	}
}

func (l *inMemoryLedger) walletFor(userID string) *memWallet {
	w, ok := l.wallets[userID]
	if !ok {
		w = &memWallet{
			id:        uuid.NewString(),
			createdAt: time.Now().UTC(),
			balances:  make(map[string]*Balance, len(Currencies)),
		}
		for _, c := range Currencies {
			w.balances[c] = &Balance{Currency: c}
		}
		l.wallets[userID] = w
	}
	return w
}

func (l *inMemoryLedger) GetOrCreateWallet(_ context.Context, userID string) (Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot(userID, l.walletFor(userID)), nil
}

func (l *inMemoryLedger) snapshot(userID string, w *memWallet) Wallet {
	out := Wallet{ID: w.id, UserID: userID, CreatedAt: w.createdAt}
	for _, c := range Currencies {
		out.Balances = append(out.Balances, *w.balances[c])
	}
	return out
}

func (l *inMemoryLedger) Credit(_ context.Context, userID, currency string, amount int64, reference, description string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	if !supportedCurrency(currency) {
		return CreditResult{}, ErrUnsupportedCurrency
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletFor(userID)
	bal := w.balances[currency]

	if _, exists := l.txs[reference]; exists {
		return CreditResult{Applied: false, Available: bal.Available}, nil
	}

	bal.Available += amount
	l.append(Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Currency:    currency,
		Amount:      amount,
		Kind:        KindIncome,
		Status:      StatusCompleted,
		Reference:   reference,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	})
	return CreditResult{Applied: true, Available: bal.Available}, nil
}

func (l *inMemoryLedger) Debit(_ context.Context, userID, currency string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if !supportedCurrency(currency) {
		return 0, ErrUnsupportedCurrency
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[userID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	bal := w.balances[currency]
	if bal.Available < amount {
		return bal.Available, ErrInsufficientFunds
	}
	bal.Available -= amount
	return bal.Available, nil
}

func (l *inMemoryLedger) Balances(_ context.Context, userID string) ([]Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	w, ok := l.wallets[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	out := make([]Balance, 0, len(Currencies))
	for _, c := range Currencies {
		out = append(out, *w.balances[c])
	}
	return out, nil
}

func (l *inMemoryLedger) RecordPending(_ context.Context, tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.txs[tx.Reference]; exists {
		return nil
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	l.append(tx)
	return nil
}

func (l *inMemoryLedger) FindByReference(_ context.Context, reference string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, ok := l.txs[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (l *inMemoryLedger) UpdateStatus(_ context.Context, reference, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[reference]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.Status = status
	l.txs[reference] = tx
	return nil
}

func (l *inMemoryLedger) ListPending(_ context.Context, before time.Time) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Transaction
	for _, ref := range l.order {
		tx := l.txs[ref]
		if tx.Status == StatusPending && tx.CreatedAt.Before(before) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// append assumes the caller holds the write lock and the reference is new.
func (l *inMemoryLedger) append(tx Transaction) {
	l.txs[tx.Reference] = tx
	l.order = append(l.order, tx.Reference)
}
