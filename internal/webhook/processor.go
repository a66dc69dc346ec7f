package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kobopay/kobopay/internal/customer"
	"github.com/kobopay/kobopay/internal/invoice"
	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/notification"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kobopay_webhook_events_total",
	Help: "Processed webhook events by type and outcome",
}, []string{"event", "outcome"})

// Processor owns the transition from "provider-side event observed" to
// "ledger updated". Delivery is at-least-once and may be concurrent; every
// mutation is keyed so a duplicate delivery changes nothing.
type Processor struct {
	ledger    ledger.Ledger
	customers customer.Repository
	invoices  invoice.Repository
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewProcessor constructs the webhook processor.
func NewProcessor(l ledger.Ledger, customers customer.Repository, invoices invoice.Repository, notifier notification.Notifier, logger *slog.Logger) *Processor {
	return &Processor{ledger: l, customers: customers, invoices: invoices, notifier: notifier, logger: logger}
}

// Process dispatches a verified event. Expected anomalies (unknown customer,
// unknown invoice, non-terminal status, unrecognized event) are logged and the
// event is considered handled; persistence failures propagate so the caller
// can NACK for redelivery.
func (p *Processor) Process(ctx context.Context, event Event) error {
	switch event.Event {
	case EventPayinBankTransfer, EventPayinMobileMoney, EventPayinEwallet:
		return p.handlePayin(ctx, event)
	case EventPayout:
		return p.handlePayout(ctx, event)
	case EventPayoutReversal:
		return p.handleReversal(ctx, event)
	default:
		eventsTotal.WithLabelValues(event.Event, "ignored").Inc()
		p.logger.Info("ignoring unrecognized webhook event", slog.String("event", event.Event))
		return nil
	}
}

func (p *Processor) handlePayin(ctx context.Context, event Event) error {
	data := event.Data
	if !terminalSuccess(data.Status) {
		eventsTotal.WithLabelValues(event.Event, "non_terminal").Inc()
		p.logger.Info("ignoring non-terminal payin status",
			slog.String("event", event.Event), slog.String("reference", data.Reference), slog.String("status", data.Status))
		return nil
	}

	// Two independent effects, both idempotent: wallet credit keyed by the
	// provider transaction reference, invoice payment keyed by the same.
	if err := p.creditCustomer(ctx, event); err != nil {
		return err
	}
	if err := p.applyToInvoice(ctx, event); err != nil {
		return err
	}

	eventsTotal.WithLabelValues(event.Event, "handled").Inc()
	return nil
}

func (p *Processor) creditCustomer(ctx context.Context, event Event) error {
	data := event.Data
	cust, err := p.customers.FindByProviderRef(ctx, data.CustomerRef)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			p.logger.Warn("payin for unknown customer",
				slog.String("customer_reference", data.CustomerRef), slog.String("reference", data.Reference))
			return nil
		}
		return fmt.Errorf("resolve customer: %w", err)
	}

	res, err := p.ledger.Credit(ctx, cust.UserID, data.Currency, data.Amount, data.Reference,
		fmt.Sprintf("%s %s", event.Event, data.Reference))
	if err != nil {
		// A bad currency or amount is wrong forever; redelivery cannot fix
		// it, so acknowledge instead of forcing the provider to retry.
		if errors.Is(err, ledger.ErrUnsupportedCurrency) || errors.Is(err, ledger.ErrInvalidAmount) {
			eventsTotal.WithLabelValues(event.Event, "invalid").Inc()
			p.logger.Warn("discarding unprocessable payin",
				slog.String("reference", data.Reference), slog.String("currency", data.Currency),
				slog.Int64("amount", data.Amount), slog.Any("error", err))
			return nil
		}
		return fmt.Errorf("credit payin: %w", err)
	}
	if !res.Applied {
		p.logger.Info("duplicate payin delivery", slog.String("reference", data.Reference))
		return nil
	}

	if p.notifier != nil {
		_ = p.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPayinReceived,
			Destination: cust.UserID,
			Body:        fmt.Sprintf("You received %d %s", data.Amount, data.Currency),
		})
	}
	return nil
}

func (p *Processor) applyToInvoice(ctx context.Context, event Event) error {
	data := event.Data
	if data.PaymentRef == "" {
		return nil
	}
	inv, err := p.invoices.FindByPaymentRef(ctx, data.PaymentRef)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			p.logger.Warn("payin for unknown invoice",
				slog.String("payment_reference", data.PaymentRef), slog.String("reference", data.Reference))
			return nil
		}
		return fmt.Errorf("resolve invoice: %w", err)
	}

	updated, applied, err := p.invoices.ApplyPayment(ctx, inv.ID, data.Reference, data.Amount)
	if err != nil {
		return fmt.Errorf("apply invoice payment: %w", err)
	}
	if applied {
		p.logger.Info("invoice payment applied",
			slog.String("invoice_id", updated.ID), slog.Int64("amount_paid", updated.AmountPaid),
			slog.String("status", updated.Status))
	}
	return nil
}

func (p *Processor) handlePayout(ctx context.Context, event Event) error {
	data := event.Data
	tx, err := p.ledger.FindByReference(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			eventsTotal.WithLabelValues(event.Event, "unknown_reference").Inc()
			p.logger.Warn("payout event for unknown reference", slog.String("reference", data.Reference))
			return nil
		}
		return fmt.Errorf("resolve payout: %w", err)
	}

	var status string
	switch data.Status {
	case "successful", "completed", "paid":
		status = ledger.StatusCompleted
	case "failed":
		status = ledger.StatusFailed
	default:
		eventsTotal.WithLabelValues(event.Event, "non_terminal").Inc()
		p.logger.Info("ignoring non-terminal payout status",
			slog.String("reference", data.Reference), slog.String("status", data.Status))
		return nil
	}

	// Status only; the debit already happened at initiation and a failed
	// payout is made whole by a payout_reversal event.
	if err := p.ledger.UpdateStatus(ctx, tx.Reference, status); err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	eventsTotal.WithLabelValues(event.Event, "handled").Inc()
	return nil
}

func (p *Processor) handleReversal(ctx context.Context, event Event) error {
	data := event.Data
	tx, err := p.ledger.FindByReference(ctx, data.Reference)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			eventsTotal.WithLabelValues(event.Event, "unknown_reference").Inc()
			p.logger.Warn("reversal for unknown reference", slog.String("reference", data.Reference))
			return nil
		}
		return fmt.Errorf("resolve reversal: %w", err)
	}
	if tx.Kind != ledger.KindExpense {
		// Only a payout debit can be reversed. Re-crediting an INCOME record
		// would pay the same money twice.
		eventsTotal.WithLabelValues(event.Event, "mismatched_kind").Inc()
		p.logger.Warn("reversal references a non-payout transaction",
			slog.String("reference", data.Reference), slog.String("kind", tx.Kind))
		return nil
	}

	res, err := p.ledger.Credit(ctx, tx.UserID, tx.Currency, tx.Amount, "reversal_"+tx.Reference,
		fmt.Sprintf("reversal of payout %s", tx.Reference))
	if err != nil {
		return fmt.Errorf("credit reversal: %w", err)
	}
	if !res.Applied {
		p.logger.Info("duplicate reversal delivery", slog.String("reference", data.Reference))
	}

	if err := p.ledger.UpdateStatus(ctx, tx.Reference, ledger.StatusReversed); err != nil {
		return fmt.Errorf("mark payout reversed: %w", err)
	}
	eventsTotal.WithLabelValues(event.Event, "handled").Inc()
	return nil
}
