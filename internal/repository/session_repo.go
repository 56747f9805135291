package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneycase/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyOpen   = errors.New("branch already has an open session")
	ErrAlreadyClosed = errors.New("session already closed")
	ErrStaleRevision = errors.New("session revision changed")
)

// OpenConflictError is returned by CreateOpen when the branch slot is taken.
// Existing may be nil if the winning row could not be read back.
type OpenConflictError struct {
	Existing *model.CashSession
}

func (e *OpenConflictError) Error() string { return ErrAlreadyOpen.Error() }

func (e *OpenConflictError) Is(target error) bool { return target == ErrAlreadyOpen }

// CloseParams carries everything written by the close transition.
type CloseParams struct {
	ClosedAt           time.Time
	ClosedBy           string
	ActualCash         decimal.Decimal
	ExpectedSubtotal   decimal.Decimal
	ExpectedServiceFee decimal.Decimal
	ExpectedTotal      decimal.Decimal
	Discrepancy        decimal.Decimal
	TransactionCount   int
	OrderCount         int
	Notes              *string
	ExpectedRevision   int

	// Frozen report context.
	Grade          string
	BranchName     string
	RestaurantName string
	Currency       string
	Timezone       string
}

// SessionFilter narrows List. Zero values mean "no constraint";
// From/To bound OpenedAt inclusively.
type SessionFilter struct {
	BranchID     *int64
	RestaurantID *int64
	From         *time.Time
	To           *time.Time
}

type SessionRepository interface {
	// CreateOpen atomically checks the branch has no open session and inserts s.
	CreateOpen(ctx context.Context, s *model.CashSession) error
	// Close finalizes an open session if its revision still matches.
	Close(ctx context.Context, id uuid.UUID, p CloseParams) (*model.CashSession, error)
	FindOpenByBranch(ctx context.Context, branchID int64) (*model.CashSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	List(ctx context.Context, filter SessionFilter, page PageRequest) (*SessionPage, error)
}

// ── gorm / postgres ──────────────────────────────────────────────────────────
// The open-slot uniqueness lives in the partial index uq_cash_sessions_open_branch
// (see infra.applySchemaPatches); the insert below only has to translate the violation.

type sessionRepo struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &sessionRepo{db: db} }

func (r *sessionRepo) CreateOpen(ctx context.Context, s *model.CashSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(s).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert cash session: %w", err)
	}
	existing, findErr := r.FindOpenByBranch(ctx, s.BranchID)
	if findErr != nil {
		// The winner may already have closed again; the conflict still stands.
		return &OpenConflictError{}
	}
	return &OpenConflictError{Existing: existing}
}

func (r *sessionRepo) Close(ctx context.Context, id uuid.UUID, p CloseParams) (*model.CashSession, error) {
	var updated []model.CashSession
	res := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND closed_at IS NULL AND revision = ?", id, p.ExpectedRevision).
		Updates(map[string]any{
			"closed_at":            p.ClosedAt,
			"closed_by":            p.ClosedBy,
			"actual_cash":          p.ActualCash,
			"expected_subtotal":    p.ExpectedSubtotal,
			"expected_service_fee": p.ExpectedServiceFee,
			"expected_total":       p.ExpectedTotal,
			"discrepancy":          p.Discrepancy,
			"transaction_count":    p.TransactionCount,
			"order_count":          p.OrderCount,
			"notes":                p.Notes,
			"grade":                p.Grade,
			"branch_name":          p.BranchName,
			"restaurant_name":      p.RestaurantName,
			"currency":             p.Currency,
			"timezone":             p.Timezone,
			"revision":             gorm.Expr("revision + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("close cash session: %w", res.Error)
	}
	if res.RowsAffected == 1 && len(updated) == 1 {
		return &updated[0], nil
	}

	// Nothing matched: tell "unknown id" apart from "someone closed it first".
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsOpen() {
		return nil, ErrAlreadyClosed
	}
	return nil, ErrStaleRevision
}

func (r *sessionRepo) FindOpenByBranch(ctx context.Context, branchID int64) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND closed_at IS NULL", branchID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) List(ctx context.Context, filter SessionFilter, page PageRequest) (*SessionPage, error) {
	size := page.normalizedSize()
	cursor, err := decodePageToken(page.Token)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&model.CashSession{})
	if filter.BranchID != nil {
		q = q.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.RestaurantID != nil {
		q = q.Where("restaurant_id = ?", *filter.RestaurantID)
	}
	if filter.From != nil {
		q = q.Where("opened_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("opened_at <= ?", *filter.To)
	}
	if cursor != nil {
		q = q.Where("((opened_at < ?) OR (opened_at = ? AND id < ?))", cursor.OpenedAt, cursor.OpenedAt, cursor.ID)
	}

	var rows []model.CashSession
	// One extra row tells whether another page exists.
	if err := q.Order("opened_at DESC, id DESC").Limit(size + 1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list cash sessions: %w", err)
	}
	return newSessionPage(rows, size), nil
}

// isUniqueViolation detects SQLSTATE 23505 whether or not gorm translated it.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
