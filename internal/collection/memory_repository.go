package collection

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Instrument // keyed by external reference
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Instrument)}
}

func (r *memoryRepository) Save(_ context.Context, ins Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ins.ID == "" {
		ins.ID = uuid.NewString()
	}
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now().UTC()
	}
	r.storage[ins.ExternalRef] = ins
	return nil
}

func (r *memoryRepository) FindByExternalRef(_ context.Context, ref string) (Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ins, ok := r.storage[ref]
	if !ok {
		return Instrument{}, ErrInstrumentNotFound
	}
	return ins, nil
}
