package collection

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobopay/kobopay/internal/provider"
)

// Handler exposes collection HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a collection handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateRequest is the API payload for minting a payment instrument.
type CreateRequest struct {
	UserID         string `json:"user_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	ExternalRef    string `json:"external_ref"`
	InvoiceID      string `json:"invoice_id"`
	CustomerEmail  string `json:"customer_email"`
	Asset          string `json:"asset"`
	Network        string `json:"network"`
	ExpiresSeconds int64  `json:"expires_seconds"`
}

// CreateResponse returns the provider-issued details verbatim.
type CreateResponse struct {
	ExternalRef   string `json:"external_ref"`
	Method        string `json:"method"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	Address       string `json:"address,omitempty"`
	Asset         string `json:"asset,omitempty"`
	Network       string `json:"network,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Create mints a virtual account or crypto address.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	ins, err := h.service.Create(c.UserContext(), Input{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        req.Method,
		ExternalRef:   req.ExternalRef,
		InvoiceID:     req.InvoiceID,
		CustomerEmail: req.CustomerEmail,
		Asset:         req.Asset,
		Network:       req.Network,
		ExpiresIn:     time.Duration(req.ExpiresSeconds) * time.Second,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		var perr *provider.Error
		if errors.As(err, &perr) {
			return fiber.NewError(http.StatusBadGateway, perr.Message)
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	resp := CreateResponse{
		ExternalRef:   ins.ExternalRef,
		Method:        ins.Method,
		Currency:      ins.Currency,
		Amount:        ins.Amount,
		AccountNumber: ins.AccountNumber,
		AccountName:   ins.AccountName,
		BankName:      ins.BankName,
		Address:       ins.Address,
		Asset:         ins.Asset,
		Network:       ins.Network,
	}
	if !ins.ExpiresAt.IsZero() {
		resp.ExpiresAt = ins.ExpiresAt.Format(time.RFC3339)
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

// Status polls the provider for a collection's payment state.
func (h *Handler) Status(c *fiber.Ctx) error {
	status, err := h.service.CheckStatus(c.UserContext(), c.Params("ref"))
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) {
			return fiber.NewError(http.StatusBadGateway, perr.Message)
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(status)
}
