package customer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Customer // keyed by provider reference
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Customer)}
}

func (r *memoryRepository) FindByProviderRef(_ context.Context, ref string) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.storage[ref]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepository) Upsert(_ context.Context, c Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.storage[c.ProviderRef] = c
	return nil
}
