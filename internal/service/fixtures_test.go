package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moneycase/internal/dto"
	"moneycase/internal/model"
	"moneycase/internal/repository"
	"moneycase/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ── Clock ─────────────────────────────────────────────────────────────────────

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// ── Sales source ──────────────────────────────────────────────────────────────

type stubSales struct {
	mu     sync.Mutex
	totals repository.SalesTotals
	err    error
	calls  int
}

func fixedSales(subtotal, fee string, tx, orders int) *stubSales {
	return &stubSales{totals: repository.SalesTotals{
		Subtotal:         decimal.RequireFromString(subtotal),
		ServiceFee:       decimal.RequireFromString(fee),
		TransactionCount: tx,
		OrderCount:       orders,
	}}
}

func (s *stubSales) Totals(_ context.Context, _ int64, _, _ time.Time) (repository.SalesTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return repository.SalesTotals{}, s.err
	}
	return s.totals, nil
}

func (s *stubSales) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// ── Directory ────────────────────────────────────────────────────────────────

type stubDirectory struct {
	branches map[int64]*model.Branch
}

func newDirectory(branches ...*model.Branch) *stubDirectory {
	d := &stubDirectory{branches: map[int64]*model.Branch{}}
	for _, b := range branches {
		d.branches[b.ID] = b
	}
	return d
}

func (d *stubDirectory) Branch(_ context.Context, id int64) (*service.BranchInfo, error) {
	b, ok := d.branches[id]
	if !ok {
		return nil, service.ErrBranchNotFound
	}
	return &service.BranchInfo{Branch: b, Location: b.Location(time.UTC)}, nil
}

func (d *stubDirectory) RestaurantLocation(_ context.Context, restaurantID int64) (*time.Location, error) {
	var first *model.Branch
	for _, b := range d.branches {
		if b.RestaurantID == restaurantID && (first == nil || b.ID < first.ID) {
			first = b
		}
	}
	if first == nil {
		return nil, service.ErrBranchNotFound
	}
	return first.Location(time.UTC), nil
}

func branch(id, restaurantID int64, tz string) *model.Branch {
	return &model.Branch{
		ID:             id,
		RestaurantID:   restaurantID,
		Name:           "Branch",
		RestaurantName: "Deniz Lokantası",
		Timezone:       tz,
		Currency:       "TRY",
	}
}

// ── Dispatcher and cache ─────────────────────────────────────────────────────

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (d *recordingDispatcher) EnqueueZReport(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	return d.err
}

type mapCache struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]dto.ZReportSnapshot
	gets  int
	hits  int
}

func newMapCache() *mapCache { return &mapCache{snaps: map[uuid.UUID]dto.ZReportSnapshot{}} }

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*dto.ZReportSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	s, ok := c.snaps[id]
	if !ok {
		return nil, false
	}
	c.hits++
	return &s, true
}

func (c *mapCache) Put(_ context.Context, snap *dto.ZReportSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := uuid.Parse(snap.SessionID)
	if err != nil {
		return err
	}
	c.snaps[id] = *snap
	return nil
}

// ── Harness ──────────────────────────────────────────────────────────────────

type harness struct {
	repo       *repository.MemorySessionRepository
	sales      *stubSales
	directory  *stubDirectory
	dispatcher *recordingDispatcher
	cache      *mapCache
	clock      *testClock
	sessions   service.SessionService
	summaries  service.SummaryService
	reports    service.ReportService
}

// Monday 2 March 2026, 09:00 UTC.
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, cfg service.SessionConfig, branches ...*model.Branch) *harness {
	t.Helper()
	if len(branches) == 0 {
		branches = []*model.Branch{branch(7, 1, "UTC")}
	}
	h := &harness{
		repo:       repository.NewMemorySessionRepository(),
		sales:      fixedSales("300.00", "30.00", 12, 9),
		directory:  newDirectory(branches...),
		dispatcher: &recordingDispatcher{},
		cache:      newMapCache(),
		clock:      newClock(monday),
	}
	h.sessions = service.NewSessionService(h.repo, h.sales, h.directory, h.dispatcher, cfg, h.clock.Now)
	h.summaries = service.NewSummaryService(h.repo, h.sales, h.directory, h.clock.Now)
	h.reports = service.NewReportService(h.repo, h.cache)
	return h
}

func (h *harness) open(t *testing.T, branchID int64, opening string) *dto.SessionResponse {
	t.Helper()
	resp, err := h.sessions.Open(context.Background(), service.OpenCommand{
		BranchID:       branchID,
		OpeningBalance: decimal.RequireFromString(opening),
		Operator:       "ayse",
	})
	if err != nil {
		t.Fatalf("open branch %d: %v", branchID, err)
	}
	return resp
}

func (h *harness) close(t *testing.T, branchID int64, actual string) *dto.SessionResponse {
	t.Helper()
	resp, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID:   branchID,
		ActualCash: decimal.RequireFromString(actual),
		Operator:   "mehmet",
	})
	if err != nil {
		t.Fatalf("close branch %d: %v", branchID, err)
	}
	return resp
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func asPrecondition(t *testing.T, err error) *service.PreconditionError {
	t.Helper()
	var pe *service.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PreconditionError, got %T: %v", err, err)
	}
	return pe
}

func asValidation(t *testing.T, err error) *service.ValidationError {
	t.Helper()
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return ve
}

func fields(ve *service.ValidationError) []string {
	out := make([]string, 0, len(ve.Violations))
	for _, v := range ve.Violations {
		out = append(out, v.Field)
	}
	return out
}
