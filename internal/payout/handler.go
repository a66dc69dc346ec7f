package payout

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/provider"
)

// BankDirectory is the slice of the provider client used for destination
// discovery and verification.
type BankDirectory interface {
	ListBanks(ctx context.Context) ([]provider.Bank, error)
	VerifyAccount(ctx context.Context, bankCode, accountNumber string) (provider.AccountDetail, error)
}

// Handler exposes payout HTTP endpoints.
type Handler struct {
	service *Service
	banks   BankDirectory
}

// NewHandler constructs a payout handler.
func NewHandler(service *Service, banks BankDirectory) *Handler {
	return &Handler{service: service, banks: banks}
}

// Initiate starts an outbound transfer.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Initiate(c.UserContext(), Input{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
		Narration: req.Narration,
		Destination: Destination{
			Type:          req.Dest.Type,
			BankCode:      req.Dest.BankCode,
			AccountNumber: req.Dest.AccountNumber,
			AccountName:   req.Dest.AccountName,
			Operator:      req.Dest.Operator,
			PhoneNumber:   req.Dest.PhoneNumber,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDestination),
			errors.Is(err, ledger.ErrInvalidAmount),
			errors.Is(err, ledger.ErrUnsupportedCurrency):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			var perr *provider.Error
			if errors.As(err, &perr) {
				return fiber.NewError(http.StatusBadGateway, perr.Message)
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(InitiateResponse{
		Reference:  result.Reference,
		ProviderID: result.ProviderID,
		Status:     result.Status,
		Available:  result.Available,
	})
}

// ListBanks returns the payout destination institutions.
func (h *Handler) ListBanks(c *fiber.Ctx) error {
	banks, err := h.banks.ListBanks(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"banks": banks})
}

// VerifyAccount resolves a destination account name before a payout.
func (h *Handler) VerifyAccount(c *fiber.Ctx) error {
	var req VerifyAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	detail, err := h.banks.VerifyAccount(c.UserContext(), req.BankCode, req.AccountNumber)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidAccountNumber) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	return c.Status(http.StatusOK).JSON(detail)
}
