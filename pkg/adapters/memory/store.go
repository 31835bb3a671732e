package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
)

// Store implements ports.PlanStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.StoredPlan
	mu   sync.RWMutex
	now  func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.StoredPlan),
		now:  time.Now,
	}
}

// Save stores a copy of plan under a new ID.
func (s *Store) Save(ctx context.Context, plan domain.ActionPlan) (domain.StoredPlan, error) {
	stored := domain.StoredPlan{
		ID:        uuid.NewString(),
		Plan:      plan,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[stored.ID] = stored
	return stored, nil
}

// Load retrieves a plan from memory.
func (s *Store) Load(ctx context.Context, id string) (domain.StoredPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.data[id]
	if !ok {
		return domain.StoredPlan{}, domain.ErrPlanNotFound
	}
	return stored, nil
}

// Delete removes the plan.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns stored plan IDs, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]domain.StoredPlan, 0, len(s.data))
	for _, p := range s.data {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})

	ids := make([]string, len(plans))
	for i, p := range plans {
		ids[i] = p.ID
	}
	return ids, nil
}
