package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneycase/internal/dto"
	"moneycase/internal/model"
	"moneycase/internal/reconcile"
	"moneycase/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type OpenCommand struct {
	BranchID       int64
	OpeningBalance decimal.Decimal
	Operator       string
}

type CloseCommand struct {
	BranchID int64
	// SessionID is optional; when set the close targets exactly that session.
	SessionID  *uuid.UUID
	ActualCash decimal.Decimal
	Notes      *string
	Operator   string
}

type SessionService interface {
	Open(ctx context.Context, cmd OpenCommand) (*dto.SessionResponse, error)
	Close(ctx context.Context, cmd CloseCommand) (*dto.SessionResponse, error)
	// Active returns nil, nil when the branch has no open session.
	Active(ctx context.Context, branchID int64) (*dto.SessionResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error)
	History(ctx context.Context, filter repository.SessionFilter, page repository.PageRequest) (*dto.SessionPageResponse, error)
}

// SessionConfig tunes reconciliation grading.
type SessionConfig struct {
	Thresholds reconcile.Thresholds
	// RequireNotesOnCritical rejects a critical close that carries no notes.
	RequireNotesOnCritical bool
}

type sessionService struct {
	repo       repository.SessionRepository
	sales      SalesSource
	directory  BranchDirectory
	dispatcher ReportDispatcher
	cfg        SessionConfig
	now        Clock
}

// NewSessionService wires the lifecycle manager. dispatcher may be nil.
func NewSessionService(
	repo repository.SessionRepository,
	sales SalesSource,
	directory BranchDirectory,
	dispatcher ReportDispatcher,
	cfg SessionConfig,
	now Clock,
) SessionService {
	if now == nil {
		now = time.Now
	}
	if cfg.Thresholds.Critical.IsZero() {
		cfg.Thresholds = reconcile.DefaultThresholds()
	}
	return &sessionService{
		repo:       repo,
		sales:      sales,
		directory:  directory,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        now,
	}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *sessionService) Open(ctx context.Context, cmd OpenCommand) (*dto.SessionResponse, error) {
	var v violations
	if cmd.BranchID <= 0 {
		v.add("branch_id", "must be a positive id")
	}
	if cmd.OpeningBalance.IsNegative() {
		v.add("opening_balance", "must not be negative")
	} else if !reconcile.InRange(cmd.OpeningBalance) {
		v.add("opening_balance", "must not exceed "+reconcile.MaxAmount.String())
	}
	if strings.TrimSpace(cmd.Operator) == "" {
		v.add("operator", "is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	branch, err := s.directory.Branch(ctx, cmd.BranchID)
	if err != nil {
		return nil, err
	}

	sess := &model.CashSession{
		ID:             uuid.New(),
		BranchID:       cmd.BranchID,
		RestaurantID:   branch.RestaurantID,
		OpenedAt:       s.stamp(),
		OpenedBy:       cmd.Operator,
		OpeningBalance: reconcile.Money(cmd.OpeningBalance),
	}

	if err := s.repo.CreateOpen(ctx, sess); err != nil {
		var conflict *repository.OpenConflictError
		if errors.As(err, &conflict) {
			openConflicts.Inc()
			pe := &PreconditionError{Err: ErrSessionAlreadyOpen, BranchID: cmd.BranchID}
			if conflict.Existing != nil {
				pe.SessionID = conflict.Existing.ID
				pe.OpenedAt = conflict.Existing.OpenedAt
				pe.OpenedBy = conflict.Existing.OpenedBy
			}
			return nil, pe
		}
		return nil, fmt.Errorf("open session: %w", err)
	}

	sessionsOpened.Inc()
	log.Info().
		Str("session_id", sess.ID.String()).
		Int64("branch_id", sess.BranchID).
		Str("operator", cmd.Operator).
		Str("opening_balance", sess.OpeningBalance.StringFixed(reconcile.Places)).
		Msg("cash session opened")

	resp := s.toResponse(sess)
	return &resp, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Expected cash is asked from the sales source for [openedAt, closedAt) and the
// discrepancy is computed after the counted amount is received.

func (s *sessionService) Close(ctx context.Context, cmd CloseCommand) (*dto.SessionResponse, error) {
	var v violations
	if cmd.BranchID <= 0 {
		v.add("branch_id", "must be a positive id")
	}
	if cmd.ActualCash.IsNegative() {
		v.add("actual_cash", "must not be negative")
	} else if !reconcile.InRange(cmd.ActualCash) {
		v.add("actual_cash", "must not exceed "+reconcile.MaxAmount.String())
	}
	if strings.TrimSpace(cmd.Operator) == "" {
		v.add("operator", "is required")
	}
	if cmd.SessionID != nil && *cmd.SessionID == uuid.Nil {
		v.add("session_id", "must not be the nil uuid")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	sess, err := s.targetForClose(ctx, cmd)
	if err != nil {
		return nil, err
	}

	closedAt := s.stamp()
	if !closedAt.After(sess.OpenedAt) {
		closedAt = sess.OpenedAt.Add(time.Microsecond)
	}

	branch, err := s.directory.Branch(ctx, sess.BranchID)
	if err != nil {
		return nil, err
	}

	totals, err := s.salesTotals(ctx, sess.BranchID, sess.OpenedAt, closedAt)
	if err != nil {
		return nil, err
	}

	res := reconcile.Reconcile(totals.Subtotal, totals.ServiceFee, cmd.ActualCash, s.cfg.Thresholds)

	notes := cleanNotes(cmd.Notes)
	if s.cfg.RequireNotesOnCritical && res.Grade == reconcile.GradeCritical && notes == nil {
		return nil, &ValidationError{Violations: []FieldViolation{{
			Field:   "notes",
			Message: fmt.Sprintf("required when the discrepancy is critical (%s%%)", res.Percentage.StringFixed(2)),
		}}}
	}

	closed, err := s.repo.Close(ctx, sess.ID, repository.CloseParams{
		ClosedAt:           closedAt,
		ClosedBy:           cmd.Operator,
		ActualCash:         reconcile.Money(cmd.ActualCash),
		ExpectedSubtotal:   reconcile.Money(totals.Subtotal),
		ExpectedServiceFee: reconcile.Money(totals.ServiceFee),
		ExpectedTotal:      res.ExpectedTotal,
		Discrepancy:        res.Discrepancy,
		TransactionCount:   totals.TransactionCount,
		OrderCount:         totals.OrderCount,
		Notes:              notes,
		ExpectedRevision:   sess.Revision,
		Grade:              string(res.Grade),
		BranchName:         branch.Name,
		RestaurantName:     branch.RestaurantName,
		Currency:           branch.Currency,
		Timezone:           branch.Location.String(),
	})
	switch {
	case errors.Is(err, repository.ErrAlreadyClosed):
		return nil, s.alreadyClosed(ctx, sess)
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, repository.ErrStaleRevision):
		return nil, ErrConcurrentUpdate
	case err != nil:
		return nil, fmt.Errorf("close session: %w", err)
	}

	sessionsClosed.WithLabelValues(string(res.Classification)).Inc()
	log.Info().
		Str("session_id", closed.ID.String()).
		Int64("branch_id", closed.BranchID).
		Str("operator", cmd.Operator).
		Str("expected_total", res.ExpectedTotal.StringFixed(reconcile.Places)).
		Str("discrepancy", res.Discrepancy.StringFixed(reconcile.Places)).
		Str("classification", string(res.Classification)).
		Str("grade", string(res.Grade)).
		Msg("cash session closed")

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueZReport(ctx, closed.ID); err != nil {
			log.Warn().Err(err).Str("session_id", closed.ID.String()).Msg("z-report job not enqueued")
		}
	}

	resp := s.toResponse(closed)
	return &resp, nil
}

// targetForClose resolves the session a close command applies to.
func (s *sessionService) targetForClose(ctx context.Context, cmd CloseCommand) (*model.CashSession, error) {
	if cmd.SessionID == nil {
		sess, err := s.repo.FindOpenByBranch(ctx, cmd.BranchID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &PreconditionError{Err: ErrNoActiveSession, BranchID: cmd.BranchID}
		}
		if err != nil {
			return nil, fmt.Errorf("find open session: %w", err)
		}
		return sess, nil
	}

	sess, err := s.repo.FindByID(ctx, *cmd.SessionID)
	if err != nil {
		return nil, mapRepoErr(err, ErrNotFound)
	}
	if sess.BranchID != cmd.BranchID {
		return nil, &ValidationError{Violations: []FieldViolation{{
			Field:   "session_id",
			Message: fmt.Sprintf("belongs to branch %d, not %d", sess.BranchID, cmd.BranchID),
		}}}
	}
	if !sess.IsOpen() {
		return nil, s.alreadyClosed(ctx, sess)
	}
	return sess, nil
}

func (s *sessionService) alreadyClosed(ctx context.Context, sess *model.CashSession) error {
	pe := &PreconditionError{
		Err:       ErrAlreadyClosed,
		SessionID: sess.ID,
		BranchID:  sess.BranchID,
		OpenedAt:  sess.OpenedAt,
		OpenedBy:  sess.OpenedBy,
		ClosedAt:  sess.ClosedAt,
	}
	if pe.ClosedAt == nil {
		// We lost the race; read back who won for the message.
		if current, err := s.repo.FindByID(ctx, sess.ID); err == nil {
			pe.ClosedAt = current.ClosedAt
		}
	}
	return pe
}

func (s *sessionService) salesTotals(ctx context.Context, branchID int64, from, to time.Time) (repository.SalesTotals, error) {
	start := time.Now()
	totals, err := s.sales.Totals(ctx, branchID, from, to)
	salesSourceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return repository.SalesTotals{}, fmt.Errorf("%w: %v", ErrSalesUnavailable, err)
	}
	return totals, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *sessionService) Active(ctx context.Context, branchID int64) (*dto.SessionResponse, error) {
	if branchID <= 0 {
		return nil, &ValidationError{Violations: []FieldViolation{{Field: "branch_id", Message: "must be a positive id"}}}
	}
	sess, err := s.repo.FindOpenByBranch(ctx, branchID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(sess)
	return &resp, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*dto.SessionResponse, error) {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, ErrNotFound)
	}
	resp := s.toResponse(sess)
	return &resp, nil
}

func (s *sessionService) History(ctx context.Context, filter repository.SessionFilter, page repository.PageRequest) (*dto.SessionPageResponse, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, &ValidationError{Violations: []FieldViolation{{Field: "to", Message: "must not be before from"}}}
	}
	result, err := s.repo.List(ctx, filter, page)
	if errors.Is(err, repository.ErrInvalidPageToken) {
		return nil, &ValidationError{Violations: []FieldViolation{{Field: "page_token", Message: "is not a valid page token"}}}
	}
	if err != nil {
		return nil, err
	}
	out := &dto.SessionPageResponse{
		Data:          make([]dto.SessionResponse, 0, len(result.Sessions)),
		NextPageToken: result.NextPageToken,
	}
	for i := range result.Sessions {
		out.Data = append(out.Data, s.toResponse(&result.Sessions[i]))
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// stamp is the store precision: UTC, microseconds.
func (s *sessionService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *sessionService) toResponse(sess *model.CashSession) dto.SessionResponse {
	return SessionToResponse(sess, s.cfg.Thresholds)
}

// SessionToResponse projects a session; status and discrepancy classification are
// derived here. t only grades sessions that carry no grade from their close.
func SessionToResponse(sess *model.CashSession, t reconcile.Thresholds) dto.SessionResponse {
	resp := dto.SessionResponse{
		SessionID:          sess.ID.String(),
		BranchID:           sess.BranchID,
		RestaurantID:       sess.RestaurantID,
		Status:             sess.Status(),
		OpenedAt:           sess.OpenedAt,
		OpenedBy:           sess.OpenedBy,
		ClosedAt:           sess.ClosedAt,
		ClosedBy:           sess.ClosedBy,
		OpeningBalance:     sess.OpeningBalance,
		ExpectedSubtotal:   sess.ExpectedSubtotal,
		ExpectedServiceFee: sess.ExpectedServiceFee,
		ExpectedTotal:      sess.ExpectedTotal,
		ActualCash:         sess.ActualCash,
		TransactionCount:   sess.TransactionCount,
		OrderCount:         sess.OrderCount,
		Notes:              sess.Notes,
	}
	if sess.Discrepancy != nil {
		pct := reconcile.Percentage(*sess.Discrepancy, sess.ExpectedTotal)
		grade := sess.Grade
		if grade == "" {
			grade = string(reconcile.GradeOf(pct, t))
		}
		resp.Discrepancy = &dto.DiscrepancyResponse{
			Amount:         *sess.Discrepancy,
			Percentage:     pct,
			Classification: string(reconcile.Classify(*sess.Discrepancy)),
			Grade:          grade,
		}
	}
	return resp
}

func cleanNotes(n *string) *string {
	if n == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*n)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// mapRepoErr turns repository.ErrNotFound into the caller-facing sentinel.
func mapRepoErr(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
