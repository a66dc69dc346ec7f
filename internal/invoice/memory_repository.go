package invoice

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	invoices map[string]Invoice
	byRef    map[string]string          // payment ref -> invoice id
	payments map[string]struct{}        // applied event references
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		invoices: make(map[string]Invoice),
		byRef:    make(map[string]string),
		payments: make(map[string]struct{}),
	}
}

func (r *memoryRepository) Create(_ context.Context, inv Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.invoices[inv.ID]; exists {
		return errors.New("invoice exists")
	}
	if inv.Status == "" {
		inv.Status = StatusDraft
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	r.invoices[inv.ID] = inv
	if inv.PaymentRef != "" {
		r.byRef[inv.PaymentRef] = inv.ID
	}
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (r *memoryRepository) FindByPaymentRef(_ context.Context, ref string) (Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[ref]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return r.invoices[id], nil
}

func (r *memoryRepository) AttachInstrument(_ context.Context, id string, details InstrumentDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return ErrNotFound
	}
	if details.PaymentRef != "" {
		inv.PaymentRef = details.PaymentRef
		r.byRef[details.PaymentRef] = id
	}
	inv.AccountNumber = details.AccountNumber
	inv.BankName = details.BankName
	inv.CryptoAddress = details.CryptoAddress
	if inv.Status == StatusDraft {
		inv.Status = StatusSent
	}
	inv.UpdatedAt = time.Now().UTC()
	r.invoices[id] = inv
	return nil
}

func (r *memoryRepository) ApplyPayment(_ context.Context, id, eventRef string, amount int64) (Invoice, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, false, ErrNotFound
	}
	if _, applied := r.payments[eventRef]; applied {
		return inv, false, nil
	}
	r.payments[eventRef] = struct{}{}
	inv.AmountPaid += amount
	inv.Status = statusFor(inv.AmountPaid, inv.TotalAmount)
	inv.UpdatedAt = time.Now().UTC()
	r.invoices[id] = inv
	return inv, true, nil
}
