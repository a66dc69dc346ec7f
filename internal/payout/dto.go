package payout

// InitiateRequest is the API payload for an outbound transfer.
type InitiateRequest struct {
	UserID    string             `json:"user_id"`
	Amount    int64              `json:"amount"`
	Currency  string             `json:"currency"`
	Reference string             `json:"reference"`
	Narration string             `json:"narration"`
	Dest      DestinationRequest `json:"destination"`
}

// DestinationRequest mirrors Destination for the API layer.
type DestinationRequest struct {
	Type          string `json:"type"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Operator      string `json:"operator"`
	PhoneNumber   string `json:"phone_number"`
}

// InitiateResponse is the API response for an accepted payout.
type InitiateResponse struct {
	Reference  string `json:"reference"`
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
	Available  int64  `json:"available"`
}

// VerifyAccountRequest asks the provider to resolve an account name.
type VerifyAccountRequest struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
}
