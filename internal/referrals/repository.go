package referrals

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository appends accepted referrals. There is no update or delete path:
// Insert either stores the whole record and returns it with its id and
// timestamp, or stores nothing and returns an error.
type Repository interface {
	Insert(ctx context.Context, ref *Referral) (*Referral, error)
}

// InMemoryRepository keeps referrals in process memory. Used when no database
// is configured and in tests.
type InMemoryRepository struct {
	mu        sync.RWMutex
	referrals []*Referral
	now       func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

// Insert appends a copy of ref with a generated id.
func (r *InMemoryRepository) Insert(ctx context.Context, ref *Referral) (*Referral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored := *ref
	stored.ID = uuid.New().String()
	stored.CreatedAt = r.now().UTC()

	r.mu.Lock()
	r.referrals = append(r.referrals, &stored)
	r.mu.Unlock()

	out := stored
	return &out, nil
}

// Count returns the number of stored referrals.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.referrals)
}

// All returns copies of the stored referrals in insertion order.
func (r *InMemoryRepository) All() []Referral {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Referral, 0, len(r.referrals))
	for _, ref := range r.referrals {
		out = append(out, *ref)
	}
	return out
}
