package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/customer"
	"github.com/kobopay/kobopay/internal/invoice"
	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/logging"
	"github.com/kobopay/kobopay/internal/provider"
	"github.com/kobopay/kobopay/internal/webhook"
)

type fakeGateway struct {
	vaCalls     int
	cryptoCalls int
	status      provider.PaymentStatus
}

func (g *fakeGateway) CreateVirtualAccount(_ context.Context, req provider.VirtualAccountRequest) (provider.VirtualAccount, error) {
	g.vaCalls++
	return provider.VirtualAccount{
		ID:            "va_1",
		AccountNumber: "9876543210",
		AccountName:   "KOBOPAY CHECKOUT",
		BankName:      "Wema Bank",
	}, nil
}

func (g *fakeGateway) CreateCryptoAddress(_ context.Context, req provider.CryptoAddressRequest) (provider.CryptoAddress, error) {
	g.cryptoCalls++
	return provider.CryptoAddress{ID: "ca_1", Address: "0xabc123", Asset: req.Asset, Network: req.Network}, nil
}

func (g *fakeGateway) FindOrCreateCustomer(_ context.Context, req provider.CustomerRequest) (provider.Customer, error) {
	return provider.Customer{ID: "cus_1", Reference: "cus-ref-1", Email: req.Email}, nil
}

func (g *fakeGateway) GetPaymentStatus(_ context.Context, reference string) (provider.PaymentStatus, error) {
	g.status.Reference = reference
	return g.status, nil
}

func TestCreateVirtualAccountLinksInvoice(t *testing.T) {
	gw := &fakeGateway{}
	instruments := NewMemoryRepository()
	invoices := invoice.NewMemoryRepository()
	svc := NewService(gw, instruments, invoices, customer.NewMemoryRepository(), logging.Discard())

	ctx := context.Background()
	invoiceID := uuid.NewString()
	if err := invoices.Create(ctx, invoice.Invoice{
		ID:          invoiceID,
		UserID:      uuid.NewString(),
		Currency:    "NGN",
		TotalAmount: 10_000,
		Status:      invoice.StatusDraft,
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	ins, err := svc.Create(ctx, Input{
		UserID:        uuid.NewString(),
		Amount:        10_000,
		Currency:      "NGN",
		Method:        MethodVirtualAccount,
		ExternalRef:   "col-1",
		InvoiceID:     invoiceID,
		CustomerEmail: "payer@example.com",
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if ins.AccountNumber != "9876543210" || ins.BankName != "Wema Bank" {
		t.Fatalf("provider details not returned verbatim: %+v", ins)
	}

	saved, err := instruments.FindByExternalRef(ctx, "col-1")
	if err != nil {
		t.Fatalf("instrument not persisted: %v", err)
	}
	if saved.InvoiceID != invoiceID {
		t.Fatalf("instrument not linked to invoice: %+v", saved)
	}

	inv, err := invoices.Get(ctx, invoiceID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if inv.Status != invoice.StatusSent {
		t.Fatalf("expected SENT, got %s", inv.Status)
	}
	if inv.PaymentRef != "col-1" {
		t.Fatalf("payment ref not attached: %+v", inv)
	}
	if inv.AmountPaid != 0 {
		t.Fatal("creating a collection must never pay an invoice")
	}
}

func TestCreateCryptoAddress(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, NewMemoryRepository(), invoice.NewMemoryRepository(), customer.NewMemoryRepository(), logging.Discard())

	ins, err := svc.Create(context.Background(), Input{
		UserID:        uuid.NewString(),
		Amount:        50_000,
		Currency:      "USD",
		Method:        MethodCrypto,
		CustomerEmail: "payer@example.com",
		Asset:         "USDT",
		Network:       "TRON",
	})
	if err != nil {
		t.Fatalf("create crypto collection: %v", err)
	}
	if ins.Address != "0xabc123" || ins.Asset != "USDT" {
		t.Fatalf("unexpected instrument: %+v", ins)
	}
	if ins.ExternalRef == "" {
		t.Fatal("expected a generated external reference")
	}
	if gw.cryptoCalls != 1 || gw.vaCalls != 0 {
		t.Fatalf("wrong provider operation: va=%d crypto=%d", gw.vaCalls, gw.cryptoCalls)
	}
}

func TestCreateUnknownInvoiceIsNotFatal(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, NewMemoryRepository(), invoice.NewMemoryRepository(), customer.NewMemoryRepository(), logging.Discard())

	_, err := svc.Create(context.Background(), Input{
		UserID:        uuid.NewString(),
		Amount:        1_000,
		Currency:      "NGN",
		Method:        MethodVirtualAccount,
		InvoiceID:     uuid.NewString(),
		CustomerEmail: "payer@example.com",
	})
	if err != nil {
		t.Fatalf("unknown invoice should be logged, not fatal: %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(&fakeGateway{}, NewMemoryRepository(), invoice.NewMemoryRepository(), customer.NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	cases := []Input{
		{Amount: 0, Currency: "NGN", Method: MethodVirtualAccount, CustomerEmail: "a@b.c"},
		{Amount: 100, Currency: "", Method: MethodVirtualAccount, CustomerEmail: "a@b.c"},
		{Amount: 100, Currency: "NGN", Method: "card", CustomerEmail: "a@b.c"},
		{Amount: 100, Currency: "NGN", Method: MethodCrypto},
	}
	for _, input := range cases {
		if _, err := svc.Create(ctx, input); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("input %+v: expected invalid request, got %v", input, err)
		}
	}
}

func TestPayinAfterCollectionCreditsWallet(t *testing.T) {
	gw := &fakeGateway{}
	customers := customer.NewMemoryRepository()
	invoices := invoice.NewMemoryRepository()
	svc := NewService(gw, NewMemoryRepository(), invoices, customers, logging.Discard())

	ctx := context.Background()
	userID := uuid.NewString()
	if _, err := svc.Create(ctx, Input{
		UserID:        userID,
		Amount:        5_000,
		Currency:      "NGN",
		Method:        MethodVirtualAccount,
		ExternalRef:   "col-e2e",
		CustomerEmail: "payer@example.com",
	}); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	// The provider customer reference must now resolve back to the user.
	linked, err := customers.FindByProviderRef(ctx, "cus-ref-1")
	if err != nil {
		t.Fatalf("provider customer link not persisted: %v", err)
	}
	if linked.UserID != userID {
		t.Fatalf("link resolves to %s, want %s", linked.UserID, userID)
	}

	// A terminal payin carrying that reference credits the payer's wallet.
	l := ledger.NewInMemory()
	processor := webhook.NewProcessor(l, customers, invoices, nil, logging.Discard())
	err = processor.Process(ctx, webhook.Event{
		Event: webhook.EventPayinBankTransfer,
		Data: webhook.EventData{
			Reference:   "pay-e2e",
			CustomerRef: "cus-ref-1",
			Status:      "paid",
			Amount:      5_000,
			Currency:    "NGN",
		},
	})
	if err != nil {
		t.Fatalf("process payin: %v", err)
	}

	balances, err := l.Balances(ctx, userID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	for _, b := range balances {
		if b.Currency == "NGN" && b.Available != 5_000 {
			t.Fatalf("payin after collection did not credit wallet: NGN available = %d, want 5000", b.Available)
		}
	}
}

func TestCheckStatusDoesNotTouchLedger(t *testing.T) {
	gw := &fakeGateway{status: provider.PaymentStatus{Status: "pending", Amount: 500, Currency: "NGN"}}
	svc := NewService(gw, NewMemoryRepository(), invoice.NewMemoryRepository(), customer.NewMemoryRepository(), logging.Discard())

	status, err := svc.CheckStatus(context.Background(), "col-9")
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if status.Reference != "col-9" || status.Status != "pending" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
