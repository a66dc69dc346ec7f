package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet balance HTTP endpoints.
type Handler struct {
	ledger Ledger
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(l Ledger) *Handler {
	return &Handler{ledger: l}
}

type balanceResponse struct {
	Currency  string `json:"currency"`
	Available int64  `json:"available"`
}

// Balances returns every per-currency balance for a user's wallet.
func (h *Handler) Balances(c *fiber.Ctx) error {
	userID := c.Params("userId")

	balances, err := h.ledger.Balances(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "could not load balances")
	}

	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceResponse{Currency: b.Currency, Available: b.Available})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":  userID,
		"balances": out,
	})
}
