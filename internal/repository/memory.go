package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/inspection-audit/internal/domain"
)

// In-memory repositories back the service when no POSTGRES_DSN is set and
// serve as fakes in tests. Misses return pgx.ErrNoRows like the Postgres
// implementations.

// MemoryUsers is an in-memory UserRepository.
type MemoryUsers struct {
	mu   sync.RWMutex
	byID map[string]domain.User
	now  func() time.Time
}

// NewMemoryUsers creates an empty user store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: make(map[string]domain.User), now: time.Now}
}

func (r *MemoryUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	ts := r.now()
	user.CreatedAt, user.UpdatedAt = ts, ts
	r.byID[user.ID] = *user
	return nil
}

func (r *MemoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *MemoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.byID {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryUsers) name(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	return user.Name, ok
}

// MemoryInspections is an in-memory InspectionRepository.
type MemoryInspections struct {
	mu   sync.RWMutex
	byID map[string]domain.Inspection
	now  func() time.Time
}

// NewMemoryInspections creates an empty inspection store.
func NewMemoryInspections() *MemoryInspections {
	return &MemoryInspections{byID: make(map[string]domain.Inspection), now: time.Now}
}

func (r *MemoryInspections) Create(_ context.Context, insp *domain.Inspection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	if insp.OverallStatus == "" {
		insp.OverallStatus = domain.InspectionStatusNotStarted
	}
	if insp.CreatedAt.IsZero() {
		insp.CreatedAt = r.now()
	}
	if insp.UpdatedAt.IsZero() {
		insp.UpdatedAt = insp.CreatedAt
	}
	r.byID[insp.ID] = *insp
	return nil
}

func (r *MemoryInspections) GetByID(_ context.Context, id string) (*domain.Inspection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	insp, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &insp, nil
}

func (r *MemoryInspections) UpdateStatus(_ context.Context, id string, status domain.InspectionStatus) (*domain.Inspection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	insp, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	insp.OverallStatus = status
	insp.UpdatedAt = r.now()
	r.byID[id] = insp
	return &insp, nil
}

// MemoryChangeHistory is an in-memory ChangeHistoryRepository. Author names
// are resolved against users the way the Postgres query joins them.
type MemoryChangeHistory struct {
	mu      sync.RWMutex
	entries map[string][]domain.ChangeRecord
	users   *MemoryUsers
	now     func() time.Time
}

// NewMemoryChangeHistory creates an empty history store.
func NewMemoryChangeHistory(users *MemoryUsers) *MemoryChangeHistory {
	return &MemoryChangeHistory{
		entries: make(map[string][]domain.ChangeRecord),
		users:   users,
		now:     time.Now,
	}
}

func (r *MemoryChangeHistory) Create(_ context.Context, change domain.ChangeInput) (*domain.ChangeRecord, error) {
	rec := domain.ChangeRecord{
		ID:              uuid.NewString(),
		EntityID:        change.EntityID,
		ItemID:          change.ItemID,
		ItemDescription: change.ItemDescription,
		FieldName:       change.FieldName,
		OldValue:        change.OldValue,
		NewValue:        change.NewValue,
		ChangeType:      change.ChangeType,
		UserID:          change.UserID,
		CreatedAt:       r.now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[change.EntityID] = append(r.entries[change.EntityID], rec)
	return &rec, nil
}

func (r *MemoryChangeHistory) ListByEntity(_ context.Context, entityID string) ([]domain.ChangeRecord, error) {
	r.mu.RLock()
	result := make([]domain.ChangeRecord, len(r.entries[entityID]))
	copy(result, r.entries[entityID])
	r.mu.RUnlock()

	// Newest first; insertion order breaks ties so equal timestamps still
	// list the latest write on top.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	for i := range result {
		if r.users == nil {
			break
		}
		if name, ok := r.users.name(result[i].UserID); ok {
			n := name
			result[i].UserName = &n
		}
	}
	return result, nil
}

var (
	_ UserRepository          = (*MemoryUsers)(nil)
	_ InspectionRepository    = (*MemoryInspections)(nil)
	_ ChangeHistoryRepository = (*MemoryChangeHistory)(nil)
)
