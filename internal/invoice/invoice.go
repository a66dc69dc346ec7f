package invoice

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no invoice matches the given id or payment reference.
var ErrNotFound = errors.New("invoice not found")

const (
	StatusDraft   = "DRAFT"
	StatusSent    = "SENT"
	StatusPartial = "PARTIAL"
	StatusPaid    = "PAID"
)

// Invoice is the billing record mutated by the money-movement core. AmountPaid
// only ever grows from this subsystem's writes; the status is PAID exactly
// when AmountPaid covers TotalAmount.
type Invoice struct {
	ID          string
	UserID      string
	Currency    string
	TotalAmount int64
	AmountPaid  int64
	Status      string
	PaymentRef  string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Payment instrument attached by a collection.
	AccountNumber string
	BankName      string
	CryptoAddress string
}

// InstrumentDetails are the provider-issued fields attached to an invoice when
// a collection is created for it.
type InstrumentDetails struct {
	PaymentRef    string
	AccountNumber string
	BankName      string
	CryptoAddress string
}

// Repository is the invoice collaborator interface consumed by the core.
type Repository interface {
	Create(ctx context.Context, inv Invoice) error
	Get(ctx context.Context, id string) (Invoice, error)
	FindByPaymentRef(ctx context.Context, ref string) (Invoice, error)

	// AttachInstrument stores the collection instrument on the invoice and
	// moves a DRAFT invoice to SENT. It never sets PAID.
	AttachInstrument(ctx context.Context, id string, details InstrumentDetails) error

	// ApplyPayment increments AmountPaid and recomputes the status, keyed by
	// the event reference: re-applying the same reference changes nothing and
	// reports applied=false.
	ApplyPayment(ctx context.Context, id, eventRef string, amount int64) (Invoice, bool, error)
}

func statusFor(amountPaid, totalAmount int64) string {
	if amountPaid >= totalAmount {
		return StatusPaid
	}
	return StatusPartial
}
