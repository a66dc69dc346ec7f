package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	signatureHeader = "X-Kobo-Signature"
	defaultTimeout  = 30 * time.Second
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kobopay_provider_requests_total",
	Help: "Outbound provider API calls by operation and result",
}, []string{"operation", "status"})

// Error is the uniform error for provider failures. Business rejections and
// transport failures surface as the same kind; Transport distinguishes "no
// definitive provider answer" so callers can choose between compensation and
// reconciliation.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Transport  bool
}

func (e *Error) Error() string {
	if e.Transport {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("provider %s: %s (http %d)", e.Op, e.Message, e.StatusCode)
}

// Config carries provider credentials and transport policy.
type Config struct {
	BaseURL    string
	Token      string
	SigningKey string
	Timeout    time.Duration
}

// Client is a stateless signed HTTP client for the payment rail API. It is
// constructed once with injected configuration and shared by reference.
type Client struct {
	baseURL    string
	token      string
	signingKey []byte
	http       *http.Client
}

// New builds a provider client. A zero timeout falls back to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		signingKey: []byte(cfg.SigningKey),
		http:       &http.Client{Timeout: timeout},
	}
}

// Sign computes the hex HMAC-SHA-256 of the exact request body bytes.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, c.signingKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// envelope is the provider's response wrapper. A false status is a business
// rejection regardless of the HTTP code.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if len(body) > 0 {
		req.Header.Set(signatureHeader, c.Sign(body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &Error{Op: op, Message: err.Error(), Transport: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &Error{Op: op, Message: err.Error(), Transport: true}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		requestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "unparseable provider response"}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Status {
		requestsTotal.WithLabelValues(op, "rejected").Inc()
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	requestsTotal.WithLabelValues(op, "ok").Inc()
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return nil
}
