package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"moneycase/internal/reconcile"
	"moneycase/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZReport_OpenSessionRejected(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	opened := h.open(t, 7, "200.00")
	id := uuid.MustParse(opened.SessionID)

	_, err := h.reports.ZReport(context.Background(), id)
	require.ErrorIs(t, err, service.ErrSessionStillOpen)
	assert.Equal(t, id, asPrecondition(t, err).SessionID)
	assert.Zero(t, len(h.cache.snaps), "open sessions are never cached")
}

func TestZReport_ClosedSessionSnapshot(t *testing.T) {
	h := newHarness(t, service.SessionConfig{}, branch(7, 1, "Europe/Istanbul"))
	h.open(t, 7, "200.00")
	h.clock.Set(monday.Add(8 * time.Hour))
	closed := h.close(t, 7, "530.00")
	id := uuid.MustParse(closed.SessionID)

	snap, err := h.reports.ZReport(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, closed.SessionID, snap.SessionID)
	assert.Equal(t, int64(7), snap.BranchID)
	assert.Equal(t, "Branch", snap.BranchName)
	assert.Equal(t, "Deniz Lokantası", snap.RestaurantName)
	assert.Equal(t, "TRY", snap.Currency)
	assert.Equal(t, "Europe/Istanbul", snap.Timezone)
	assert.Equal(t, 12, snap.OpenedAt.Hour(), "rendered in branch local time")
	assert.Equal(t, "ayse", snap.OpenedBy)
	assert.Equal(t, "mehmet", snap.ClosedBy)
	assert.Equal(t, int64(8*3600), snap.DurationSecs)
	assertMoney(t, "200.00", snap.OpeningBalance)
	assertMoney(t, "330.00", snap.ExpectedTotal)
	assertMoney(t, "530.00", snap.ActualCash)
	assertMoney(t, "200.00", snap.Discrepancy)
	assertMoney(t, "60.61", snap.DiscrepancyPct)
	assert.Equal(t, string(reconcile.Surplus), snap.Classification)
	assert.Equal(t, string(reconcile.GradeCritical), snap.Grade)
	assert.Equal(t, 12, snap.TransactionCount)
	assert.Equal(t, 9, snap.OrderCount)
}

func TestZReport_StableAcrossCalls(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	h.open(t, 7, "200.00")
	h.clock.Set(monday.Add(time.Hour))
	id := uuid.MustParse(h.close(t, 7, "530.00").SessionID)

	first, err := h.reports.ZReport(context.Background(), id)
	require.NoError(t, err)

	// Later activity on the branch must not leak into the closed session's report.
	h.clock.Set(monday.Add(2 * time.Hour))
	h.open(t, 7, "999.00")

	second, err := h.reports.ZReport(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.cache.hits)

	uncached := service.NewReportService(h.repo, nil)
	third, err := uncached.ZReport(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestZReport_FrozenAtClose(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	ctx := context.Background()
	h.open(t, 7, "0")
	h.clock.Set(monday.Add(time.Hour))
	// +3.00 on 330.00 is 0.91%: normal under the default 1% warning threshold.
	id := uuid.MustParse(h.close(t, 7, "333.00").SessionID)

	reports := service.NewReportService(h.repo, nil)
	before, err := reports.ZReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Branch", before.BranchName)
	assert.Equal(t, string(reconcile.GradeNormal), before.Grade)

	// Directory edits and stricter thresholds after the close.
	h.directory.branches[7].Name = "Renamed"
	h.directory.branches[7].RestaurantName = "Other"
	h.directory.branches[7].Timezone = "Europe/Istanbul"
	strict := service.NewSessionService(h.repo, h.sales, h.directory, nil, service.SessionConfig{
		Thresholds: reconcile.Thresholds{Warning: decimal.RequireFromString("0.5"), Critical: decimal.NewFromInt(5)},
	}, h.clock.Now)

	after, err := reports.ZReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := strict.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Discrepancy)
	assert.Equal(t, string(reconcile.GradeNormal), got.Discrepancy.Grade)
}

func TestZReport_NotFound(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	_, err := h.reports.ZReport(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestZReportPDF(t *testing.T) {
	h := newHarness(t, service.SessionConfig{})
	h.open(t, 7, "200.00")
	h.clock.Set(monday.Add(time.Hour))
	id := uuid.MustParse(h.close(t, 7, "530.00").SessionID)

	pdf, err := h.reports.ZReportPDF(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
