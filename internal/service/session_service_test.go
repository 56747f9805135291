package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moneycase/internal/model"
	"moneycase/internal/reconcile"
	"moneycase/internal/repository"
	"moneycase/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesOpenSession(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})

	resp := h.open(t, 7, "200.00")

	assert.Equal(t, model.StatusOpen, resp.Status)
	assert.Equal(t, int64(7), resp.BranchID)
	assert.Equal(t, int64(1), resp.RestaurantID)
	assert.Equal(t, "ayse", resp.OpenedBy)
	assert.Equal(t, monday, resp.OpenedAt)
	assertMoney(t, "200.00", resp.OpeningBalance)
	assert.Nil(t, resp.ClosedAt)
	assert.Nil(t, resp.ActualCash)
	assert.Nil(t, resp.Discrepancy)

	active, err := h.sessions.Active(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, resp.SessionID, active.SessionID)
}

func TestOpen_SecondOpenReportsExistingSession(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	first := h.open(t, 7, "200.00")

	h.clock.Set(monday.Add(time.Minute))
	_, err := h.sessions.Open(context.Background(), service.OpenCommand{
		BranchID: 7, OpeningBalance: decimal.NewFromInt(50), Operator: "mehmet",
	})

	require.ErrorIs(t, err, service.ErrSessionAlreadyOpen)
	pe := asPrecondition(t, err)
	assert.Equal(t, first.SessionID, pe.SessionID.String())
	assert.Equal(t, "ayse", pe.OpenedBy)
	assert.Contains(t, err.Error(), "already open since 2026-03-02T09:00:00Z by ayse")
}

func TestOpen_ConcurrentOpensHaveSingleWinner(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	const n = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
		ids       = map[uuid.UUID]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sessions.Open(context.Background(), service.OpenCommand{
				BranchID: 7, OpeningBalance: decimal.NewFromInt(100), Operator: "ayse",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, service.ErrSessionAlreadyOpen):
				conflicts++
				ids[asPrecondition(t, err).SessionID] = true
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, ids, 1, "every loser must name the same winning session")
}

func TestOpen_Validation(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})

	_, err := h.sessions.Open(context.Background(), service.OpenCommand{
		BranchID: 0, OpeningBalance: decimal.RequireFromString("-1"), Operator: " ",
	})

	ve := asValidation(t, err)
	assert.ElementsMatch(t, []string{"branch_id", "opening_balance", "operator"}, fields(ve))

	page, err := h.repo.List(context.Background(), repository.SessionFilter{}, repository.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Sessions, "validation must reject before touching the store")
}

func TestAmountsBeyondStorableRange(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	ctx := context.Background()

	_, err := h.sessions.Open(ctx, service.OpenCommand{
		BranchID: 7, OpeningBalance: decimal.RequireFromString("10000000000.00"), Operator: "ayse",
	})
	assert.Equal(t, []string{"opening_balance"}, fields(asValidation(t, err)))

	h.open(t, 7, "9999999999.99")
	_, err = h.sessions.Close(ctx, service.CloseCommand{
		BranchID: 7, ActualCash: decimal.RequireFromString("12345678901.00"), Operator: "mehmet",
	})
	assert.Equal(t, []string{"actual_cash"}, fields(asValidation(t, err)))
	assert.Zero(t, h.sales.calls)
}

func TestOpen_UnknownBranch(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})

	_, err := h.sessions.Open(context.Background(), service.OpenCommand{
		BranchID: 99, OpeningBalance: decimal.Zero, Operator: "ayse",
	})
	assert.ErrorIs(t, err, service.ErrBranchNotFound)
}

func TestOpen_ZeroOpeningBalanceAllowed(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	resp := h.open(t, 7, "0")
	assertMoney(t, "0.00", resp.OpeningBalance)
}

func TestClose_ReconcilesSurplus(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	opened := h.open(t, 7, "200.00")

	h.clock.Set(monday.Add(8 * time.Hour))
	closed := h.close(t, 7, "530.00")

	assert.Equal(t, opened.SessionID, closed.SessionID)
	assert.Equal(t, model.StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, monday.Add(8*time.Hour), *closed.ClosedAt)
	assert.Equal(t, "mehmet", *closed.ClosedBy)
	assertMoney(t, "300.00", closed.ExpectedSubtotal)
	assertMoney(t, "30.00", closed.ExpectedServiceFee)
	assertMoney(t, "330.00", closed.ExpectedTotal)
	assertMoney(t, "530.00", *closed.ActualCash)
	assertMoney(t, "200.00", closed.OpeningBalance, "opening balance is not part of expected")
	assert.Equal(t, 12, closed.TransactionCount)
	assert.Equal(t, 9, closed.OrderCount)

	require.NotNil(t, closed.Discrepancy)
	assertMoney(t, "200.00", closed.Discrepancy.Amount)
	assert.Equal(t, string(reconcile.Surplus), closed.Discrepancy.Classification)
	assert.Equal(t, string(reconcile.GradeCritical), closed.Discrepancy.Grade)

	assert.Equal(t, []uuid.UUID{uuid.MustParse(closed.SessionID)}, h.dispatcher.ids)

	active, err := h.sessions.Active(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestClose_ShortageAndBalanced(t *testing.T) {
	cases := []struct {
		actual string
		want   reconcile.Classification
		diff   string
	}{
		{"300.00", reconcile.Shortage, "-30.00"},
		{"330.00", reconcile.Balanced, "0.00"},
		{"330.004", reconcile.Balanced, "0.00"},
	}
	for _, tc := range cases {
		t.Run(tc.actual, func(t *testing.T) {
			h := newHarness(t, service.SessionConfig{})
			h.open(t, 7, "100.00")
			h.clock.Set(monday.Add(time.Hour))
			closed := h.close(t, 7, tc.actual)

			assertMoney(t, tc.diff, closed.Discrepancy.Amount)
			assert.Equal(t, string(tc.want), closed.Discrepancy.Classification)
		})
	}
}

func TestClose_SecondCloseFails(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	h.open(t, 7, "200.00")
	h.clock.Set(monday.Add(time.Hour))
	closed := h.close(t, 7, "530.00")
	id := uuid.MustParse(closed.SessionID)

	// Without a session id there is nothing left to close.
	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, ActualCash: decimal.NewFromInt(1), Operator: "mehmet",
	})
	assert.ErrorIs(t, err, service.ErrNoActiveSession)

	// Targeting the closed session names it.
	_, err = h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, SessionID: &id, ActualCash: decimal.NewFromInt(1), Operator: "mehmet",
	})
	require.ErrorIs(t, err, service.ErrAlreadyClosed)
	pe := asPrecondition(t, err)
	assert.Equal(t, id, pe.SessionID)
	require.NotNil(t, pe.ClosedAt)

	// The first close's figures are untouched.
	got, err := h.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	assertMoney(t, "530.00", *got.ActualCash)
	assertMoney(t, "200.00", got.Discrepancy.Amount)
}

func TestClose_NoActiveSession(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})

	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, ActualCash: decimal.NewFromInt(10), Operator: "mehmet",
	})
	require.ErrorIs(t, err, service.ErrNoActiveSession)
	assert.Equal(t, int64(7), asPrecondition(t, err).BranchID)
}

func TestClose_SessionOfAnotherBranch(t *testing.T) {
	h := newHarness(t, service.SessionConfig{}, branch(7, 1, "UTC"), branch(8, 1, "UTC"))
	other := h.open(t, 8, "10.00")
	id := uuid.MustParse(other.SessionID)

	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, SessionID: &id, ActualCash: decimal.NewFromInt(10), Operator: "mehmet",
	})
	assert.Equal(t, []string{"session_id"}, fields(asValidation(t, err)))
}

func TestClose_UnknownSessionID(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	id := uuid.New()

	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, SessionID: &id, ActualCash: decimal.NewFromInt(10), Operator: "mehmet",
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestClose_ClockDidNotAdvance(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	opened := h.open(t, 7, "0")

	closed := h.close(t, 7, "330.00")

	require.NotNil(t, closed.ClosedAt)
	assert.True(t, closed.ClosedAt.After(opened.OpenedAt))
	assert.Equal(t, opened.OpenedAt.Add(time.Microsecond), *closed.ClosedAt)
}

func TestClose_SalesUnavailableLeavesSessionOpen(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	opened := h.open(t, 7, "200.00")
	h.sales.fail(errors.New("connection refused"))

	h.clock.Set(monday.Add(time.Hour))
	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, ActualCash: decimal.NewFromInt(530), Operator: "mehmet",
	})
	require.ErrorIs(t, err, service.ErrSalesUnavailable)

	active, err := h.sessions.Active(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, opened.SessionID, active.SessionID)
	assert.Empty(t, h.dispatcher.ids)
}

func TestClose_Validation(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	h.open(t, 7, "200.00")
	nilID := uuid.Nil

	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, SessionID: &nilID, ActualCash: decimal.RequireFromString("-0.01"), Operator: "",
	})
	ve := asValidation(t, err)
	assert.ElementsMatch(t, []string{"session_id", "actual_cash", "operator"}, fields(ve))
	assert.Zero(t, h.sales.calls)
}

func TestClose_RequireNotesOnCritical(t *testing.T) {
	h := newHarness(t, service.SessionConfig{RequireNotesOnCritical: true})
	h.open(t, 7, "0")
	h.clock.Set(monday.Add(time.Hour))

	_, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, ActualCash: decimal.NewFromInt(100), Operator: "mehmet",
	})
	assert.Equal(t, []string{"notes"}, fields(asValidation(t, err)))

	blank := "   "
	_, err = h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, ActualCash: decimal.NewFromInt(100), Operator: "mehmet", Notes: &blank,
	})
	asValidation(t, err)

	notes := " till jammed, recounted twice "
	closed, err := h.sessions.Close(context.Background(), service.CloseCommand{
		BranchID: 7, ActualCash: decimal.NewFromInt(100), Operator: "mehmet", Notes: &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "till jammed, recounted twice", *closed.Notes)
	assert.Equal(t, string(reconcile.Shortage), closed.Discrepancy.Classification)
}

func TestClose_DispatchFailureDoesNotFailClose(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	h.dispatcher.err = errors.New("redis down")
	h.open(t, 7, "0")
	h.clock.Set(monday.Add(time.Hour))

	closed := h.close(t, 7, "330.00")
	assert.Equal(t, model.StatusClosed, closed.Status)
}

func TestClose_ThenReopen(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	first := h.open(t, 7, "200.00")
	h.clock.Set(monday.Add(time.Hour))
	h.close(t, 7, "330.00")

	h.clock.Set(monday.Add(2 * time.Hour))
	second := h.open(t, 7, "150.00")
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestGet_NotFound(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	_, err := h.sessions.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestHistory_PagesNewestFirst(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	var ids []string
	for i := 0; i < 5; i++ {
		h.clock.Set(monday.Add(time.Duration(2*i) * time.Hour))
		ids = append(ids, h.open(t, 7, "0").SessionID)
		h.clock.Set(monday.Add(time.Duration(2*i+1) * time.Hour))
		h.close(t, 7, "330.00")
	}

	branchID := int64(7)
	filter := repository.SessionFilter{BranchID: &branchID}
	var got []string
	token := ""
	for {
		page, err := h.sessions.History(context.Background(), filter, repository.PageRequest{Token: token, Size: 2})
		require.NoError(t, err)
		for _, s := range page.Data {
			got = append(got, s.SessionID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	want := []string{ids[4], ids[3], ids[2], ids[1], ids[0]}
	assert.Equal(t, want, got)
}

func TestHistory_InvalidInput(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})

	_, err := h.sessions.History(context.Background(), repository.SessionFilter{}, repository.PageRequest{Token: "%%%"})
	assert.Equal(t, []string{"page_token"}, fields(asValidation(t, err)))

	from, to := monday, monday.Add(-time.Hour)
	_, err = h.sessions.History(context.Background(), repository.SessionFilter{From: &from, To: &to}, repository.PageRequest{})
	assert.Equal(t, []string{"to"}, fields(asValidation(t, err)))
}
