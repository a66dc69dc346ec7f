package webhook

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/customer"
	"github.com/kobopay/kobopay/internal/invoice"
	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/logging"
)

type fixture struct {
	ledger    ledger.Ledger
	customers customer.Repository
	invoices  invoice.Repository
	processor *Processor
	userID    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:    ledger.NewInMemory(),
		customers: customer.NewMemoryRepository(),
		invoices:  invoice.NewMemoryRepository(),
		userID:    uuid.NewString(),
	}
	f.processor = NewProcessor(f.ledger, f.customers, f.invoices, nil, logging.Discard())

	ctx := context.Background()
	if _, err := f.ledger.GetOrCreateWallet(ctx, f.userID); err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if err := f.customers.Upsert(ctx, customer.Customer{UserID: f.userID, ProviderRef: "cus-1", Email: "payer@example.com"}); err != nil {
		t.Fatalf("customer: %v", err)
	}
	return f
}

func (f *fixture) availableNGN(t *testing.T) int64 {
	t.Helper()
	balances, err := f.ledger.Balances(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	for _, b := range balances {
		if b.Currency == "NGN" {
			return b.Available
		}
	}
	return 0
}

func payinEvent(reference string, amount int64) Event {
	return Event{
		Event: EventPayinBankTransfer,
		Data: EventData{
			Reference:   reference,
			CustomerRef: "cus-1",
			Status:      "paid",
			Amount:      amount,
			Currency:    "NGN",
		},
	}
}

func TestPayinCreditsWalletOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := payinEvent("pay-1", 4_000)
	for i := 0; i < 3; i++ {
		if err := f.processor.Process(ctx, event); err != nil {
			t.Fatalf("process delivery %d: %v", i, err)
		}
	}

	if got := f.availableNGN(t); got != 4_000 {
		t.Fatalf("expected 4000 after duplicate deliveries, got %d", got)
	}
}

func TestPayinNonTerminalStatusIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := payinEvent("pay-2", 4_000)
	event.Data.Status = "processing"
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := f.availableNGN(t); got != 0 {
		t.Fatalf("non-terminal status must not credit, got %d", got)
	}
}

func TestPayinUnknownCustomerAcknowledged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := payinEvent("pay-3", 1_000)
	event.Data.CustomerRef = "cus-unknown"
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("unknown customer must be acknowledged, got %v", err)
	}
	if got := f.availableNGN(t); got != 0 {
		t.Fatalf("unknown customer must not credit, got %d", got)
	}
}

func TestPayinUnsupportedCurrencyAcknowledged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := payinEvent("pay-eur", 1_000)
	event.Data.Currency = "EUR"
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("unprocessable payin must be acknowledged, not NACKed: %v", err)
	}
	if got := f.availableNGN(t); got != 0 {
		t.Fatalf("unsupported currency must not credit, got %d", got)
	}

	zero := payinEvent("pay-zero", 0)
	if err := f.processor.Process(ctx, zero); err != nil {
		t.Fatalf("zero-amount payin must be acknowledged: %v", err)
	}
}

func TestPartialThenFullInvoicePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	invoiceID := uuid.NewString()
	if err := f.invoices.Create(ctx, invoice.Invoice{
		ID:          invoiceID,
		UserID:      f.userID,
		Currency:    "NGN",
		TotalAmount: 10_000,
		Status:      invoice.StatusSent,
		PaymentRef:  "col-1",
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	first := payinEvent("pay-a", 4_000)
	first.Data.PaymentRef = "col-1"
	if err := f.processor.Process(ctx, first); err != nil {
		t.Fatalf("first payment: %v", err)
	}

	inv, _ := f.invoices.Get(ctx, invoiceID)
	if inv.AmountPaid != 4_000 || inv.Status != invoice.StatusPartial {
		t.Fatalf("expected PARTIAL at 4000, got %s at %d", inv.Status, inv.AmountPaid)
	}

	second := payinEvent("pay-b", 6_000)
	second.Data.PaymentRef = "col-1"
	if err := f.processor.Process(ctx, second); err != nil {
		t.Fatalf("second payment: %v", err)
	}

	inv, _ = f.invoices.Get(ctx, invoiceID)
	if inv.AmountPaid != 10_000 || inv.Status != invoice.StatusPaid {
		t.Fatalf("expected PAID at 10000, got %s at %d", inv.Status, inv.AmountPaid)
	}

	// Redelivery of the second payment changes neither wallet nor invoice.
	before := f.availableNGN(t)
	if err := f.processor.Process(ctx, second); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	inv, _ = f.invoices.Get(ctx, invoiceID)
	if inv.AmountPaid != 10_000 {
		t.Fatalf("redelivery bumped invoice to %d", inv.AmountPaid)
	}
	if got := f.availableNGN(t); got != before {
		t.Fatalf("redelivery changed balance from %d to %d", before, got)
	}
}

func TestPayoutEventUpdatesStatusWithoutBalanceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger.Seed(f.ledger, f.userID, "NGN", 5_000)
	f.ledger.Debit(ctx, f.userID, "NGN", 2_000)
	f.ledger.RecordPending(ctx, ledger.Transaction{
		UserID: f.userID, Currency: "NGN", Amount: 2_000,
		Kind: ledger.KindExpense, Reference: "po-1",
	})

	event := Event{Event: EventPayout, Data: EventData{Reference: "po-1", Status: "successful"}}
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("process payout: %v", err)
	}

	tx, err := f.ledger.FindByReference(ctx, "po-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if tx.Status != ledger.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", tx.Status)
	}
	if got := f.availableNGN(t); got != 3_000 {
		t.Fatalf("payout event must not change balance, got %d", got)
	}

	failed := Event{Event: EventPayout, Data: EventData{Reference: "po-1", Status: "failed"}}
	if err := f.processor.Process(ctx, failed); err != nil {
		t.Fatalf("process failed payout: %v", err)
	}
	tx, _ = f.ledger.FindByReference(ctx, "po-1")
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("expected FAILED, got %s", tx.Status)
	}
}

func TestPayoutEventUnknownReferenceAcknowledged(t *testing.T) {
	f := newFixture(t)
	event := Event{Event: EventPayout, Data: EventData{Reference: "missing", Status: "successful"}}
	if err := f.processor.Process(context.Background(), event); err != nil {
		t.Fatalf("unknown reference must be acknowledged, got %v", err)
	}
}

func TestReversalCreditsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger.Seed(f.ledger, f.userID, "NGN", 5_000)
	f.ledger.Debit(ctx, f.userID, "NGN", 2_000)
	f.ledger.RecordPending(ctx, ledger.Transaction{
		UserID: f.userID, Currency: "NGN", Amount: 2_000,
		Kind: ledger.KindExpense, Reference: "po-rev", Status: ledger.StatusCompleted,
	})

	event := Event{Event: EventPayoutReversal, Data: EventData{Reference: "po-rev", Status: "reversed"}}
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("process reversal: %v", err)
	}
	// Delivered twice: the amount comes back exactly once.
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("process duplicate reversal: %v", err)
	}

	if got := f.availableNGN(t); got != 5_000 {
		t.Fatalf("expected 5000 after single reversal credit, got %d", got)
	}
	tx, _ := f.ledger.FindByReference(ctx, "po-rev")
	if tx.Status != ledger.StatusReversed {
		t.Fatalf("expected REVERSED, got %s", tx.Status)
	}
}

func TestReversalOfNonPayoutReferenceDoesNotCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A completed payin credit shares the reference namespace with payouts.
	if err := f.processor.Process(ctx, payinEvent("pay-x", 2_000)); err != nil {
		t.Fatalf("payin: %v", err)
	}

	event := Event{Event: EventPayoutReversal, Data: EventData{Reference: "pay-x", Status: "reversed"}}
	if err := f.processor.Process(ctx, event); err != nil {
		t.Fatalf("mismatched reversal must be acknowledged: %v", err)
	}

	if got := f.availableNGN(t); got != 2_000 {
		t.Fatalf("reversal of an income record must not credit again, got %d", got)
	}
	tx, _ := f.ledger.FindByReference(ctx, "pay-x")
	if tx.Status != ledger.StatusCompleted {
		t.Fatalf("income record must keep its status, got %s", tx.Status)
	}
}

func TestUnrecognizedEventIsNoOp(t *testing.T) {
	f := newFixture(t)
	event := Event{Event: "card_dispute_opened", Data: EventData{Reference: "x"}}
	if err := f.processor.Process(context.Background(), event); err != nil {
		t.Fatalf("unknown events are not errors, got %v", err)
	}
	if got := f.availableNGN(t); got != 0 {
		t.Fatalf("unknown event must not touch the ledger, got %d", got)
	}
}
