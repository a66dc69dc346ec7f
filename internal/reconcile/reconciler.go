package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/provider"
)

var sweepOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kobopay_reconcile_outcomes_total",
	Help: "Pending payout resolutions by outcome.",
}, []string{"outcome"})

// StatusGateway polls the provider for the terminal state of a payment.
type StatusGateway interface {
	GetPaymentStatus(ctx context.Context, reference string) (provider.PaymentStatus, error)
}

// Reconciler resolves payouts stuck in PENDING: those debited before a
// provider call that never confirmed. It only moves transaction status; any
// money movement for a failed payout arrives as a reversal event through the
// webhook pipeline, so the two paths cannot double-apply.
type Reconciler struct {
	ledger   ledger.Ledger
	gateway  StatusGateway
	interval time.Duration
	minAge   time.Duration
	logger   *slog.Logger
}

func New(l ledger.Ledger, gateway StatusGateway, interval, minAge time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if minAge <= 0 {
		minAge = 10 * time.Minute
	}
	return &Reconciler{
		ledger:   l,
		gateway:  gateway,
		interval: interval,
		minAge:   minAge,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started",
		slog.Duration("interval", r.interval),
		slog.Duration("min_age", r.minAge),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconcile sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep resolves every PENDING transaction older than the minimum age.
// Individual failures are logged and skipped so one bad reference cannot
// stall the rest of the batch.
func (r *Reconciler) Sweep(ctx context.Context) error {
	pending, err := r.ledger.ListPending(ctx, time.Now().Add(-r.minAge))
	if err != nil {
		return err
	}

	for _, tx := range pending {
		if err := r.resolve(ctx, tx); err != nil {
			sweepOutcomes.WithLabelValues("error").Inc()
			r.logger.Warn("could not resolve pending payout",
				slog.String("reference", tx.Reference),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (r *Reconciler) resolve(ctx context.Context, tx ledger.Transaction) error {
	status, err := r.poll(ctx, tx.Reference)
	if err != nil {
		return err
	}

	switch status.Status {
	case "successful", "completed", "paid":
		if err := r.ledger.UpdateStatus(ctx, tx.Reference, ledger.StatusCompleted); err != nil {
			return err
		}
		sweepOutcomes.WithLabelValues("completed").Inc()
		r.logger.Info("pending payout confirmed", slog.String("reference", tx.Reference))
	case "failed", "rejected", "cancelled":
		if err := r.ledger.UpdateStatus(ctx, tx.Reference, ledger.StatusFailed); err != nil {
			return err
		}
		sweepOutcomes.WithLabelValues("failed").Inc()
		r.logger.Info("pending payout failed at provider",
			slog.String("reference", tx.Reference),
			slog.String("reason", status.Reason),
		)
	default:
		// Still in flight at the provider. Leave it for the next sweep.
		sweepOutcomes.WithLabelValues("still_pending").Inc()
	}
	return nil
}

// poll retries transient provider failures with exponential backoff. A
// definitive provider answer, success or business rejection, stops the
// retry loop immediately.
func (r *Reconciler) poll(ctx context.Context, reference string) (provider.PaymentStatus, error) {
	var status provider.PaymentStatus

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		status, err = r.gateway.GetPaymentStatus(ctx, reference)
		if err == nil {
			return nil
		}

		var provErr *provider.Error
		if errors.As(err, &provErr) && provErr.Transport {
			return retry.RetryableError(err)
		}
		return err
	})
	return status, err
}
