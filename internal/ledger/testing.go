package ledger

// Seed is a test helper that sets the available balance for a user's currency
// when using the in-memory ledger.
func Seed(l Ledger, userID, currency string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.walletFor(userID).balances[currency].Available = amount
	}
}
