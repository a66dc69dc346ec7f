package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/customer"
	"github.com/kobopay/kobopay/internal/invoice"
	"github.com/kobopay/kobopay/internal/provider"
)

// ErrInvalidRequest indicates a collection request missing required fields.
var ErrInvalidRequest = errors.New("invalid collection request")

// Gateway is the slice of the provider client the orchestrator needs.
type Gateway interface {
	CreateVirtualAccount(ctx context.Context, req provider.VirtualAccountRequest) (provider.VirtualAccount, error)
	CreateCryptoAddress(ctx context.Context, req provider.CryptoAddressRequest) (provider.CryptoAddress, error)
	FindOrCreateCustomer(ctx context.Context, req provider.CustomerRequest) (provider.Customer, error)
	GetPaymentStatus(ctx context.Context, reference string) (provider.PaymentStatus, error)
}

// Service mints inbound payment instruments and links them to invoices. It
// never mutates the ledger: only the webhook path credits wallets, keeping a
// single write path.
type Service struct {
	gateway     Gateway
	instruments Repository
	invoices    invoice.Repository
	customers   customer.Repository
	logger      *slog.Logger
}

// NewService constructs a collection orchestrator.
func NewService(gateway Gateway, instruments Repository, invoices invoice.Repository, customers customer.Repository, logger *slog.Logger) *Service {
	return &Service{gateway: gateway, instruments: instruments, invoices: invoices, customers: customers, logger: logger}
}

// Input captures one collection request.
type Input struct {
	UserID        string
	Amount        int64
	Currency      string
	Method        string
	ExternalRef   string
	InvoiceID     string
	CustomerEmail string
	Asset         string
	Network       string
	ExpiresIn     time.Duration
}

// Create mints the instrument on the provider, persists it, and moves a
// referenced invoice to SENT (never to PAID; only a webhook settles). The
// provider's account/address details are returned verbatim for display to
// the payer.
func (s *Service) Create(ctx context.Context, input Input) (Instrument, error) {
	if input.Amount <= 0 || input.Currency == "" || input.CustomerEmail == "" {
		return Instrument{}, ErrInvalidRequest
	}
	if input.Method != MethodVirtualAccount && input.Method != MethodCrypto {
		return Instrument{}, ErrInvalidRequest
	}
	externalRef := input.ExternalRef
	if externalRef == "" {
		externalRef = uuid.NewString()
	}

	cust, err := s.gateway.FindOrCreateCustomer(ctx, provider.CustomerRequest{
		Email:     input.CustomerEmail,
		Reference: input.UserID,
	})
	if err != nil {
		return Instrument{}, err
	}

	// The webhook processor resolves payins by the provider customer
	// reference; without this link every payment would arrive orphaned.
	if err := s.customers.Upsert(ctx, customer.Customer{
		UserID:      input.UserID,
		ProviderRef: cust.Reference,
		Email:       input.CustomerEmail,
	}); err != nil {
		return Instrument{}, fmt.Errorf("link provider customer: %w", err)
	}

	ins := Instrument{
		ExternalRef: externalRef,
		UserID:      input.UserID,
		Method:      input.Method,
		Currency:    input.Currency,
		Amount:      input.Amount,
		InvoiceID:   input.InvoiceID,
		CustomerRef: cust.Reference,
	}

	switch input.Method {
	case MethodVirtualAccount:
		var expiresIn int64
		if input.ExpiresIn > 0 {
			expiresIn = int64(input.ExpiresIn.Seconds())
		}
		va, err := s.gateway.CreateVirtualAccount(ctx, provider.VirtualAccountRequest{
			Amount:            input.Amount,
			Currency:          input.Currency,
			CustomerReference: cust.Reference,
			ExpiresIn:         expiresIn,
		})
		if err != nil {
			return Instrument{}, err
		}
		ins.AccountNumber = va.AccountNumber
		ins.AccountName = va.AccountName
		ins.BankName = va.BankName
		if va.ExpiresAt != "" {
			if t, err := time.Parse(time.RFC3339, va.ExpiresAt); err == nil {
				ins.ExpiresAt = t.UTC()
			}
		}
	case MethodCrypto:
		addr, err := s.gateway.CreateCryptoAddress(ctx, provider.CryptoAddressRequest{
			Amount:            input.Amount,
			Currency:          input.Currency,
			Asset:             input.Asset,
			Network:           input.Network,
			CustomerReference: cust.Reference,
		})
		if err != nil {
			return Instrument{}, err
		}
		ins.Address = addr.Address
		ins.Asset = addr.Asset
		ins.Network = addr.Network
	}

	if err := s.instruments.Save(ctx, ins); err != nil {
		return Instrument{}, fmt.Errorf("save instrument: %w", err)
	}

	if input.InvoiceID != "" {
		err := s.invoices.AttachInstrument(ctx, input.InvoiceID, invoice.InstrumentDetails{
			PaymentRef:    externalRef,
			AccountNumber: ins.AccountNumber,
			BankName:      ins.BankName,
			CryptoAddress: ins.Address,
		})
		if err != nil {
			if errors.Is(err, invoice.ErrNotFound) {
				s.logger.Warn("collection references unknown invoice",
					slog.String("invoice_id", input.InvoiceID), slog.String("external_ref", externalRef))
			} else {
				return Instrument{}, fmt.Errorf("attach instrument to invoice: %w", err)
			}
		}
	}

	return ins, nil
}

// CheckStatus is the synchronous poll fallback. It reads provider state only
// and never touches the ledger.
func (s *Service) CheckStatus(ctx context.Context, ref string) (provider.PaymentStatus, error) {
	return s.gateway.GetPaymentStatus(ctx, ref)
}
