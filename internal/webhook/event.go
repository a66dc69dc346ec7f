package webhook

// Recognized event types. Anything else is acknowledged and ignored.
const (
	EventPayinBankTransfer = "payin_bank_transfer"
	EventPayinMobileMoney  = "payin_mobile_money"
	EventPayinEwallet      = "payin_ewallet"
	EventPayout            = "payout"
	EventPayoutReversal    = "payout_reversal"
	EventCollectionStatus  = "collection_service_status"
)

// Event is the provider's webhook envelope.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the provider's payload fields.
type EventData struct {
	Reference   string `json:"reference"`
	PaymentRef  string `json:"payment_reference"`
	CustomerRef string `json:"customer_reference"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reason      string `json:"reason,omitempty"`
}

// terminalSuccess reports whether a payin status means the money has settled
// on the provider side.
func terminalSuccess(status string) bool {
	return status == "paid" || status == "completed"
}
