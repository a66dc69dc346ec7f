package webhook

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/kobopay/kobopay/internal/customer"
	"github.com/kobopay/kobopay/internal/invoice"
	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/logging"
)

func setupWebhookApp(t *testing.T) (*fiber.App, ledger.Ledger, string) {
	t.Helper()
	l := ledger.NewInMemory()
	customers := customer.NewMemoryRepository()
	userID := uuid.NewString()

	ctx := context.Background()
	l.GetOrCreateWallet(ctx, userID)
	customers.Upsert(ctx, customer.Customer{UserID: userID, ProviderRef: "cus-1"})

	processor := NewProcessor(l, customers, invoice.NewMemoryRepository(), nil, logging.Discard())
	handler := NewHandler(NewVerifier("hook-secret", "shared-key"), processor)

	app := fiber.New()
	app.Post("/webhooks/provider", handler.Receive)
	return app, l, userID
}

func TestReceiveRejectsTamperedSignatureWithoutStateChange(t *testing.T) {
	app, l, userID := setupWebhookApp(t)

	body := `{"event":"payin_bank_transfer","data":{"reference":"pay-1","customer_reference":"cus-1","status":"paid","amount":1000,"currency":"NGN"}}`
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/provider", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(SignatureHeader, "deadbeef")

	before, _ := l.Balances(context.Background(), userID)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	after, _ := l.Balances(context.Background(), userID)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("balance mutated by unverified webhook: %+v -> %+v", before[i], after[i])
		}
	}
}

func TestReceiveAcceptsSharedKeyAndCredits(t *testing.T) {
	app, l, userID := setupWebhookApp(t)

	body := `{"event":"payin_mobile_money","data":{"reference":"pay-2","customer_reference":"cus-1","status":"completed","amount":2500,"currency":"NGN"}}`
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/provider", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(SharedKeyHeader, "shared-key")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	balances, _ := l.Balances(context.Background(), userID)
	for _, b := range balances {
		if b.Currency == "NGN" && b.Available != 2_500 {
			t.Fatalf("expected credit of 2500, got %d", b.Available)
		}
	}
}

func TestReceiveRejectsMalformedBody(t *testing.T) {
	app, _, _ := setupWebhookApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/provider", strings.NewReader("not-json"))
	req.Header.Set(SharedKeyHeader, "shared-key")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
