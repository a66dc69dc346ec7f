package webhook

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	// SignatureHeader carries the hex HMAC-SHA-256 of the raw request body.
	SignatureHeader = "X-Kobo-Signature"
	// SharedKeyHeader carries the static shared key alternative.
	SharedKeyHeader = "X-Kobo-Key"
)

// Handler terminates the provider's webhook HTTP callbacks.
type Handler struct {
	verifier  *Verifier
	processor *Processor
}

// NewHandler constructs the webhook handler.
func NewHandler(verifier *Verifier, processor *Processor) *Handler {
	return &Handler{verifier: verifier, processor: processor}
}

// Receive verifies and dispatches one provider event. A processing failure
// returns 5xx so the provider redelivers; redelivery is safe because every
// effect is idempotent.
func (h *Handler) Receive(c *fiber.Ctx) error {
	raw := c.Body()

	if err := h.verifier.Verify(raw, c.Get(SignatureHeader), c.Get(SharedKeyHeader)); err != nil {
		if errors.Is(err, ErrNotAuthentic) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed webhook body")
	}

	if err := h.processor.Process(c.UserContext(), event); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
}
