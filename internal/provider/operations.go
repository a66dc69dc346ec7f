package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrInvalidAccountNumber indicates a bank account number that is not 10
// numeric digits.
var ErrInvalidAccountNumber = errors.New("account number must be 10 digits")

// Bank is a payout destination institution.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// AccountDetail is the result of a bank account verification.
type AccountDetail struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankCode      string `json:"bank_code"`
}

// PayoutRequest carries rail-specific payout fields. Field names are the
// provider's and must be preserved byte-for-byte for signing.
type PayoutRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
	Narration     string `json:"narration,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Operator      string `json:"operator,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// PayoutResponse is the provider's acceptance of a payout.
type PayoutResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// VirtualAccountRequest mints a virtual account to receive a bank transfer.
type VirtualAccountRequest struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	CustomerReference string `json:"customer_reference"`
	ExpiresIn         int64  `json:"expires_in,omitempty"`
}

// VirtualAccount is the provider-issued collection instrument, returned
// verbatim for display to the payer.
type VirtualAccount struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankName      string `json:"bank_name"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// CryptoAddressRequest mints a deposit address for a crypto collection.
type CryptoAddressRequest struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Asset             string `json:"asset"`
	Network           string `json:"network"`
	CustomerReference string `json:"customer_reference"`
}

// CryptoAddress is the provider-issued deposit address.
type CryptoAddress struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Network string `json:"network"`
}

// CustomerRequest looks up or registers a payer on the provider side.
type CustomerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Customer is the provider-side payer record.
type Customer struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Email     string `json:"email"`
}

// PaymentStatus is the poll result for a previously created payment.
type PaymentStatus struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
}

// ListBanks fetches the payout destination institutions.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	var banks []Bank
	if err := c.do(ctx, "list_banks", http.MethodGet, "/banks", nil, &banks); err != nil {
		return nil, err
	}
	return banks, nil
}

// VerifyAccount resolves an account name for a bank code and 10-digit account
// number. Validation happens before any network call.
func (c *Client) VerifyAccount(ctx context.Context, bankCode, accountNumber string) (AccountDetail, error) {
	if !validAccountNumber(accountNumber) {
		return AccountDetail{}, ErrInvalidAccountNumber
	}
	payload := map[string]string{"bank_code": bankCode, "account_number": accountNumber}
	var detail AccountDetail
	if err := c.do(ctx, "verify_account", http.MethodPost, "/banks/verify", payload, &detail); err != nil {
		return AccountDetail{}, err
	}
	return detail, nil
}

// CreatePayout initiates an outbound transfer on the rail.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (PayoutResponse, error) {
	var resp PayoutResponse
	if err := c.do(ctx, "create_payout", http.MethodPost, "/payouts", req, &resp); err != nil {
		return PayoutResponse{}, err
	}
	return resp, nil
}

// CreateVirtualAccount mints a virtual account for an inbound bank transfer.
func (c *Client) CreateVirtualAccount(ctx context.Context, req VirtualAccountRequest) (VirtualAccount, error) {
	var resp VirtualAccount
	if err := c.do(ctx, "create_virtual_account", http.MethodPost, "/collections/virtual-accounts", req, &resp); err != nil {
		return VirtualAccount{}, err
	}
	return resp, nil
}

// CreateCryptoAddress mints a deposit address for an inbound crypto payment.
func (c *Client) CreateCryptoAddress(ctx context.Context, req CryptoAddressRequest) (CryptoAddress, error) {
	var resp CryptoAddress
	if err := c.do(ctx, "create_crypto_address", http.MethodPost, "/collections/crypto-addresses", req, &resp); err != nil {
		return CryptoAddress{}, err
	}
	return resp, nil
}

// FindOrCreateCustomer resolves a provider-side customer, registering one if
// the email is unknown.
func (c *Client) FindOrCreateCustomer(ctx context.Context, req CustomerRequest) (Customer, error) {
	var resp Customer
	if err := c.do(ctx, "find_or_create_customer", http.MethodPost, "/customers", req, &resp); err != nil {
		return Customer{}, err
	}
	return resp, nil
}

// GetPaymentStatus polls the provider for the state of a payment by its
// external reference. Used as the synchronous fallback to webhooks.
func (c *Client) GetPaymentStatus(ctx context.Context, reference string) (PaymentStatus, error) {
	var resp PaymentStatus
	path := "/payments/" + url.PathEscape(reference)
	if err := c.do(ctx, "payment_status", http.MethodGet, path, nil, &resp); err != nil {
		return PaymentStatus{}, err
	}
	return resp, nil
}

func validAccountNumber(s string) bool {
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
