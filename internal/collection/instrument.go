package collection

import (
	"context"
	"errors"
	"time"
)

// ErrInstrumentNotFound indicates no instrument carries the given external
// reference.
var ErrInstrumentNotFound = errors.New("collection instrument not found")

const (
	MethodVirtualAccount = "virtual_account"
	MethodCrypto         = "crypto"
)

// Instrument is a provider-issued inbound payment endpoint (virtual account
// or crypto address), used to correlate a later webhook to a wallet and/or
// invoice.
type Instrument struct {
	ID          string
	ExternalRef string
	UserID      string
	Method      string
	Currency    string
	Amount      int64
	InvoiceID   string
	CustomerRef string

	// Virtual account fields.
	AccountNumber string
	AccountName   string
	BankName      string

	// Crypto fields.
	Address string
	Asset   string
	Network string

	ExpiresAt time.Time
	CreatedAt time.Time
}

// Repository persists collection instruments.
type Repository interface {
	Save(ctx context.Context, ins Instrument) error
	FindByExternalRef(ctx context.Context, ref string) (Instrument, error)
}
