package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/provider"
)

var payoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kobopay_payouts_total",
	Help: "Payout initiations by outcome",
}, []string{"outcome"})

// ErrInvalidDestination indicates missing or malformed destination fields.
var ErrInvalidDestination = errors.New("invalid payout destination")

const (
	DestinationBank        = "bank"
	DestinationMobileMoney = "mobile_money"
)

// Gateway is the slice of the provider client the orchestrator needs.
type Gateway interface {
	CreatePayout(ctx context.Context, req provider.PayoutRequest) (provider.PayoutResponse, error)
}

// Service drives outbound transfers: debit the wallet, persist the pending
// reference, call the rail, compensate on rejection.
type Service struct {
	ledger  ledger.Ledger
	gateway Gateway
	logger  *slog.Logger
}

// NewService constructs a payout orchestrator.
func NewService(l ledger.Ledger, gateway Gateway, logger *slog.Logger) *Service {
	return &Service{ledger: l, gateway: gateway, logger: logger}
}

// Destination identifies where the money goes. Type selects which field group
// applies.
type Destination struct {
	Type          string
	BankCode      string
	AccountNumber string
	AccountName   string
	Operator      string
	PhoneNumber   string
}

// Input captures one payout attempt.
type Input struct {
	UserID      string
	Amount      int64
	Currency    string
	Reference   string
	Narration   string
	Destination Destination
}

// Result reports the accepted payout.
type Result struct {
	Reference  string
	ProviderID string
	Status     string
	Available  int64
}

// Initiate runs the payout to the point of provider acceptance. The debit
// happens before any external call and is compensated with an idempotent
// refund credit if the provider rejects the transfer. The COMPLETED/FAILED
// outcome arrives later via webhook or reconciliation.
func (s *Service) Initiate(ctx context.Context, input Input) (Result, error) {
	if err := validateDestination(input.Destination); err != nil {
		return Result{}, err
	}
	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	if _, err := s.ledger.GetOrCreateWallet(ctx, input.UserID); err != nil {
		return Result{}, err
	}

	available, err := s.ledger.Debit(ctx, input.UserID, input.Currency, input.Amount)
	if err != nil {
		payoutsTotal.WithLabelValues("debit_rejected").Inc()
		return Result{}, err
	}

	// Persist the reference before the provider call so a crash or timeout
	// leaves a reconcilable record instead of a silent gap.
	if err := s.ledger.RecordPending(ctx, ledger.Transaction{
		UserID:      input.UserID,
		Currency:    input.Currency,
		Amount:      input.Amount,
		Kind:        ledger.KindExpense,
		Status:      ledger.StatusPending,
		Reference:   reference,
		Description: describeDestination(input.Destination),
	}); err != nil {
		// The wallet is debited but no durable intent exists; refund rather
		// than leave an unreconcilable hole.
		s.compensate(ctx, input, reference)
		return Result{}, err
	}

	resp, err := s.gateway.CreatePayout(ctx, buildRequest(input, reference))
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) && perr.Transport {
			// No definitive provider answer: the transfer may still have gone
			// through. Leave the PENDING record for the reconciler.
			payoutsTotal.WithLabelValues("unconfirmed").Inc()
			s.logger.Warn("payout unconfirmed, awaiting reconciliation",
				slog.String("reference", reference), slog.Any("error", err))
			return Result{}, err
		}
		payoutsTotal.WithLabelValues("rejected").Inc()
		if uerr := s.ledger.UpdateStatus(ctx, reference, ledger.StatusFailed); uerr != nil {
			s.logger.Error("mark rejected payout failed", slog.String("reference", reference), slog.Any("error", uerr))
		}
		s.compensate(ctx, input, reference)
		return Result{}, err
	}

	payoutsTotal.WithLabelValues("accepted").Inc()
	return Result{
		Reference:  reference,
		ProviderID: resp.ID,
		Status:     ledger.StatusPending,
		Available:  available,
	}, nil
}

// compensate re-credits the debited amount. The refund reference reuses the
// ledger's idempotency, so a retried compensation cannot double-refund.
func (s *Service) compensate(ctx context.Context, input Input, reference string) {
	res, err := s.ledger.Credit(ctx, input.UserID, input.Currency, input.Amount,
		"refund_"+reference, fmt.Sprintf("refund for rejected payout %s", reference))
	if err != nil {
		s.logger.Error("payout compensation failed",
			slog.String("reference", reference), slog.Any("error", err))
		return
	}
	if !res.Applied {
		s.logger.Info("payout compensation already applied", slog.String("reference", reference))
	}
}

func buildRequest(input Input, reference string) provider.PayoutRequest {
	req := provider.PayoutRequest{
		Amount:    input.Amount,
		Currency:  input.Currency,
		Reference: reference,
		Narration: input.Narration,
	}
	switch input.Destination.Type {
	case DestinationBank:
		req.BankCode = input.Destination.BankCode
		req.AccountNumber = input.Destination.AccountNumber
		req.AccountName = input.Destination.AccountName
	case DestinationMobileMoney:
		req.Operator = input.Destination.Operator
		req.PhoneNumber = input.Destination.PhoneNumber
	}
	return req
}

func validateDestination(d Destination) error {
	switch d.Type {
	case DestinationBank:
		if d.BankCode == "" || !tenDigits(d.AccountNumber) {
			return ErrInvalidDestination
		}
	case DestinationMobileMoney:
		if d.Operator == "" || d.PhoneNumber == "" {
			return ErrInvalidDestination
		}
	default:
		return ErrInvalidDestination
	}
	return nil
}

func describeDestination(d Destination) string {
	if d.Type == DestinationBank {
		return fmt.Sprintf("payout to bank %s account %s", d.BankCode, d.AccountNumber)
	}
	return fmt.Sprintf("payout to %s %s", d.Operator, d.PhoneNumber)
}

func tenDigits(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
