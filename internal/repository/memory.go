package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"moneycase/internal/model"

	"github.com/google/uuid"
)

// MemorySessionRepository is an in-process SessionRepository with the same
// atomicity contract as the postgres one: a single mutex serialises the
// check-and-insert of CreateOpen and the compare-and-swap of Close.
// Used by unit tests and local tooling; it is not durable.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.CashSession
	open     map[int64]uuid.UUID
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[uuid.UUID]*model.CashSession),
		open:     make(map[int64]uuid.UUID),
	}
}

var _ SessionRepository = (*MemorySessionRepository)(nil)

func (r *MemorySessionRepository) CreateOpen(_ context.Context, s *model.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, taken := r.open[s.BranchID]; taken {
		return &OpenConflictError{Existing: r.sessions[id].Clone()}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.OpenedAt = s.OpenedAt.UTC().Truncate(time.Microsecond)
	s.ClosedAt = nil
	r.sessions[s.ID] = s.Clone()
	r.open[s.BranchID] = s.ID
	return nil
}

func (r *MemorySessionRepository) Close(_ context.Context, id uuid.UUID, p CloseParams) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.IsOpen() {
		return nil, ErrAlreadyClosed
	}
	if s.Revision != p.ExpectedRevision {
		return nil, ErrStaleRevision
	}

	closedAt := p.ClosedAt.UTC().Truncate(time.Microsecond)
	closedBy := p.ClosedBy
	actual := p.ActualCash
	diff := p.Discrepancy
	s.ClosedAt = &closedAt
	s.ClosedBy = &closedBy
	s.ActualCash = &actual
	s.ExpectedSubtotal = p.ExpectedSubtotal
	s.ExpectedServiceFee = p.ExpectedServiceFee
	s.ExpectedTotal = p.ExpectedTotal
	s.Discrepancy = &diff
	s.TransactionCount = p.TransactionCount
	s.OrderCount = p.OrderCount
	s.Grade = p.Grade
	s.BranchName = p.BranchName
	s.RestaurantName = p.RestaurantName
	s.Currency = p.Currency
	s.Timezone = p.Timezone
	if p.Notes != nil {
		n := *p.Notes
		s.Notes = &n
	}
	s.Revision++
	delete(r.open, s.BranchID)
	return s.Clone(), nil
}

func (r *MemorySessionRepository) FindOpenByBranch(_ context.Context, branchID int64) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.open[branchID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.sessions[id].Clone(), nil
}

func (r *MemorySessionRepository) FindByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemorySessionRepository) List(_ context.Context, filter SessionFilter, page PageRequest) (*SessionPage, error) {
	size := page.normalizedSize()
	cursor, err := decodePageToken(page.Token)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	matched := make([]*model.CashSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if !matches(s, filter) {
			continue
		}
		if cursor != nil && !cursor.afterCursor(s) {
			continue
		}
		matched = append(matched, s.Clone())
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return sessionLess(matched[i], matched[j]) })

	limit := size + 1
	if len(matched) < limit {
		limit = len(matched)
	}
	rows := make([]model.CashSession, 0, limit)
	for _, s := range matched[:limit] {
		rows = append(rows, *s)
	}
	return newSessionPage(rows, size), nil
}

func matches(s *model.CashSession, f SessionFilter) bool {
	if f.BranchID != nil && s.BranchID != *f.BranchID {
		return false
	}
	if f.RestaurantID != nil && s.RestaurantID != *f.RestaurantID {
		return false
	}
	if f.From != nil && s.OpenedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && s.OpenedAt.After(*f.To) {
		return false
	}
	return true
}
