package service

import (
	"context"
	"time"

	"moneycase/internal/dto"
	"moneycase/internal/infra"
	"moneycase/internal/model"
	"moneycase/internal/reconcile"
	"moneycase/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ReportService interface {
	// ZReport returns the audit snapshot of a closed session.
	ZReport(ctx context.Context, sessionID uuid.UUID) (*dto.ZReportSnapshot, error)
	// ZReportPDF renders the snapshot as a printable receipt.
	ZReportPDF(ctx context.Context, sessionID uuid.UUID) ([]byte, error)
}

type reportService struct {
	repo  repository.SessionRepository
	cache SnapshotCache
}

// NewReportService builds the Z-report facade. cache may be nil.
func NewReportService(repo repository.SessionRepository, cache SnapshotCache) ReportService {
	return &reportService{repo: repo, cache: cache}
}

func (s *reportService) ZReport(ctx context.Context, sessionID uuid.UUID) (*dto.ZReportSnapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, sessionID); ok {
			return snap, nil
		}
	}

	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, mapRepoErr(err, ErrNotFound)
	}
	if sess.IsOpen() {
		return nil, &PreconditionError{
			Err:       ErrSessionStillOpen,
			SessionID: sess.ID,
			BranchID:  sess.BranchID,
			OpenedAt:  sess.OpenedAt,
			OpenedBy:  sess.OpenedBy,
		}
	}

	snap := BuildZReport(sess)
	if s.cache != nil {
		if err := s.cache.Put(ctx, snap); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("z-report cache write failed")
		}
	}
	return snap, nil
}

func (s *reportService) ZReportPDF(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	snap, err := s.ZReport(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return infra.RenderZReportPDF(snap)
}

// BuildZReport flattens a closed session. It reads only what the close wrote, so
// the result is the same whenever and wherever it is built.
func BuildZReport(sess *model.CashSession) *dto.ZReportSnapshot {
	loc, err := time.LoadLocation(sess.Timezone)
	if err != nil {
		loc = time.UTC
	}
	snap := &dto.ZReportSnapshot{
		SessionID:          sess.ID.String(),
		BranchID:           sess.BranchID,
		BranchName:         sess.BranchName,
		RestaurantID:       sess.RestaurantID,
		RestaurantName:     sess.RestaurantName,
		Currency:           sess.Currency,
		Timezone:           loc.String(),
		OpenedAt:           sess.OpenedAt.In(loc),
		OpenedBy:           sess.OpenedBy,
		ClosedAt:           sess.ClosedAt.In(loc),
		DurationSecs:       int64(sess.Duration().Seconds()),
		OpeningBalance:     sess.OpeningBalance,
		ExpectedSubtotal:   sess.ExpectedSubtotal,
		ExpectedServiceFee: sess.ExpectedServiceFee,
		ExpectedTotal:      sess.ExpectedTotal,
		TransactionCount:   sess.TransactionCount,
		OrderCount:         sess.OrderCount,
		Grade:              sess.Grade,
	}
	if sess.ClosedBy != nil {
		snap.ClosedBy = *sess.ClosedBy
	}
	if sess.ActualCash != nil {
		snap.ActualCash = *sess.ActualCash
	}
	if sess.Discrepancy != nil {
		snap.Discrepancy = *sess.Discrepancy
	}
	if sess.Notes != nil {
		snap.Notes = *sess.Notes
	}
	snap.DiscrepancyPct = reconcile.Percentage(snap.Discrepancy, snap.ExpectedTotal)
	snap.Classification = string(reconcile.Classify(snap.Discrepancy))
	return snap
}
