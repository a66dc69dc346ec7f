package customer

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no customer carries the given provider reference.
var ErrNotFound = errors.New("customer not found")

// Customer links a provider-side payer reference to a local user.
type Customer struct {
	ID          string
	UserID      string
	ProviderRef string
	Email       string
	CreatedAt   time.Time
}

// Repository resolves and records customer links. The webhook processor uses
// FindByProviderRef to route inbound payments to a wallet.
type Repository interface {
	FindByProviderRef(ctx context.Context, ref string) (Customer, error)
	Upsert(ctx context.Context, c Customer) error
}
