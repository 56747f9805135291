package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"moneycase/internal/dto"
	"moneycase/internal/model"
	"moneycase/internal/reconcile"
	"moneycase/internal/repository"

	"github.com/shopspring/decimal"
)

// scanPageSize is the page size used when aggregation walks the store.
const scanPageSize = repository.MaxPageSize

const dateLayout = "2006-01-02"

// Scope selects the sessions of one branch or of every branch of a restaurant.
// Exactly one of the two must be set.
type Scope struct {
	BranchID     *int64
	RestaurantID *int64
}

func (sc Scope) filter() repository.SessionFilter {
	return repository.SessionFilter{BranchID: sc.BranchID, RestaurantID: sc.RestaurantID}
}

type SummaryService interface {
	Quick(ctx context.Context, branchID int64) (*dto.QuickSummary, error)
	// Period aggregates sessions with OpenedAt in [from, to]; a nil to means now.
	Period(ctx context.Context, scope Scope, from time.Time, to *time.Time) (*dto.PeriodSummary, error)
	// PeriodForDates is Period over whole local days ("2006-01-02") in the scope's time zone.
	PeriodForDates(ctx context.Context, scope Scope, fromDate, toDate string) (*dto.PeriodSummary, error)
	// History walks every matching session newest-first, fetching pages lazily.
	// Ranging over it again restarts from the first page.
	History(ctx context.Context, filter repository.SessionFilter) iter.Seq2[model.CashSession, error]
}

type summaryService struct {
	repo      repository.SessionRepository
	sales     SalesSource
	directory BranchDirectory
	now       Clock
}

func NewSummaryService(repo repository.SessionRepository, sales SalesSource, directory BranchDirectory, now Clock) SummaryService {
	if now == nil {
		now = time.Now
	}
	return &summaryService{repo: repo, sales: sales, directory: directory, now: now}
}

// ── History ───────────────────────────────────────────────────────────────────

func (s *summaryService) History(ctx context.Context, filter repository.SessionFilter) iter.Seq2[model.CashSession, error] {
	return func(yield func(model.CashSession, error) bool) {
		token := ""
		for {
			page, err := s.repo.List(ctx, filter, repository.PageRequest{Token: token, Size: scanPageSize})
			if err != nil {
				yield(model.CashSession{}, err)
				return
			}
			for _, sess := range page.Sessions {
				if !yield(sess, nil) {
					return
				}
			}
			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// ── Quick summary ─────────────────────────────────────────────────────────────
// Windows are local to the branch: today starts at midnight, the week on Monday,
// the month on day 1. All end at now.

func (s *summaryService) Quick(ctx context.Context, branchID int64) (*dto.QuickSummary, error) {
	if branchID <= 0 {
		return nil, &ValidationError{Violations: []FieldViolation{{Field: "branch_id", Message: "must be a positive id"}}}
	}
	branch, err := s.directory.Branch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(branch.Location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, branch.Location)
	weekStart := dayStart.AddDate(0, 0, -((int(dayStart.Weekday()) + 6) % 7))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, branch.Location)

	windows := []*dto.WindowTotals{
		newWindow(dayStart, now),
		newWindow(weekStart, now),
		newWindow(monthStart, now),
	}

	summary := &dto.QuickSummary{BranchID: branchID, Timezone: branch.Location.String()}

	// The open session is accounted with what it accrued so far.
	open, err := s.repo.FindOpenByBranch(ctx, branchID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		open = nil
	case err != nil:
		return nil, fmt.Errorf("find open session: %w", err)
	}
	if open != nil {
		id := open.ID.String()
		summary.HasActiveShift = true
		summary.ActiveSessionID = &id

		// Only the part of the session inside each window counts towards it.
		for _, w := range windows {
			from := w.From
			if open.OpenedAt.After(from) {
				from = open.OpenedAt
			}
			accrued, err := s.totals(ctx, branchID, from, now)
			if err != nil {
				return nil, err
			}
			expected := reconcile.ExpectedTotal(accrued.Subtotal, accrued.ServiceFee)
			w.SessionCount++
			w.ExpectedTotal = w.ExpectedTotal.Add(expected)
			w.CurrentCash = w.CurrentCash.Add(expected)
		}
	}

	scanFrom := monthStart
	if weekStart.Before(scanFrom) {
		scanFrom = weekStart
	}
	from, to := scanFrom.UTC(), now.UTC()
	filter := repository.SessionFilter{BranchID: &branchID, From: &from, To: &to}
	for sess, err := range s.History(ctx, filter) {
		if err != nil {
			return nil, err
		}
		if sess.IsOpen() {
			continue
		}
		for _, w := range windows {
			if sess.OpenedAt.Before(w.From) {
				continue
			}
			w.SessionCount++
			w.ExpectedTotal = w.ExpectedTotal.Add(sess.ExpectedTotal)
			if sess.ActualCash != nil {
				w.CurrentCash = w.CurrentCash.Add(*sess.ActualCash)
			}
			if sess.Discrepancy != nil {
				w.Difference = w.Difference.Add(*sess.Discrepancy)
			}
		}
	}

	// Orders and revenue come straight from the sales source, independent of sessions.
	for _, w := range windows {
		t, err := s.totals(ctx, branchID, w.From, w.To)
		if err != nil {
			return nil, err
		}
		w.Revenue = reconcile.ExpectedTotal(t.Subtotal, t.ServiceFee)
		w.OrderCount = t.OrderCount
	}

	summary.Today = *windows[0]
	summary.WeekToDate = *windows[1]
	summary.MonthToDate = *windows[2]
	summary.TodayExpectedTotal = summary.Today.ExpectedTotal
	summary.TodayActualOrCurrent = summary.Today.CurrentCash
	summary.OrdersToday = summary.Today.OrderCount
	return summary, nil
}

func newWindow(from, to time.Time) *dto.WindowTotals {
	return &dto.WindowTotals{
		From:          from,
		To:            to,
		ExpectedTotal: decimal.Zero,
		CurrentCash:   decimal.Zero,
		Difference:    decimal.Zero,
		Revenue:       decimal.Zero,
	}
}

func (s *summaryService) totals(ctx context.Context, branchID int64, from, to time.Time) (repository.SalesTotals, error) {
	start := time.Now()
	t, err := s.sales.Totals(ctx, branchID, from.UTC(), to.UTC())
	salesSourceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return repository.SalesTotals{}, fmt.Errorf("%w: %v", ErrSalesUnavailable, err)
	}
	return t, nil
}

// ── Period summary ────────────────────────────────────────────────────────────

func (s *summaryService) Period(ctx context.Context, scope Scope, from time.Time, to *time.Time) (*dto.PeriodSummary, error) {
	var v violations
	validateScope(&v, scope)
	end := s.now()
	if to != nil {
		end = *to
	}
	if from.IsZero() {
		v.add("from", "is required")
	} else if end.Before(from) {
		v.add("to", "must not be before from")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	from, end = from.UTC(), end.UTC()
	out := &dto.PeriodSummary{
		BranchID:           scope.BranchID,
		RestaurantID:       scope.RestaurantID,
		From:               from,
		To:                 end,
		TotalOpening:       decimal.Zero,
		TotalSales:         decimal.Zero,
		TotalActual:        decimal.Zero,
		TotalDifference:    decimal.Zero,
		AverageDifference:  decimal.Zero,
		AverageTransaction: decimal.Zero,
		AverageOrderValue:  decimal.Zero,
	}

	filter := scope.filter()
	filter.From, filter.To = &from, &end

	var totalDuration time.Duration
	for sess, err := range s.History(ctx, filter) {
		if err != nil {
			return nil, err
		}
		out.TotalCases++
		out.TotalOpening = out.TotalOpening.Add(sess.OpeningBalance)
		if sess.IsOpen() {
			out.OpenCases++
			continue
		}
		out.ClosedCases++
		out.TotalSales = out.TotalSales.Add(sess.ExpectedTotal)
		out.TotalTransactions += sess.TransactionCount
		out.TotalOrders += sess.OrderCount
		totalDuration += sess.Duration()
		if sess.ActualCash != nil {
			out.TotalActual = out.TotalActual.Add(*sess.ActualCash)
		}
		if sess.Discrepancy != nil {
			out.TotalDifference = out.TotalDifference.Add(*sess.Discrepancy)
			switch reconcile.Classify(*sess.Discrepancy) {
			case reconcile.Surplus:
				out.SurplusCount++
				out.ShiftsWithDiscrepancy++
			case reconcile.Shortage:
				out.ShortageCount++
				out.ShiftsWithDiscrepancy++
			}
		}
	}

	out.AverageDifference = average(out.TotalDifference, out.ClosedCases)
	out.AverageTransaction = average(out.TotalSales, out.TotalTransactions)
	out.AverageOrderValue = average(out.TotalSales, out.TotalOrders)
	if out.ClosedCases > 0 {
		out.AverageDurationSecs = int64((totalDuration / time.Duration(out.ClosedCases)).Seconds())
	}
	return out, nil
}

func (s *summaryService) PeriodForDates(ctx context.Context, scope Scope, fromDate, toDate string) (*dto.PeriodSummary, error) {
	var v violations
	validateScope(&v, scope)
	if err := v.err(); err != nil {
		return nil, err
	}
	loc, err := s.scopeLocation(ctx, scope)
	if err != nil {
		return nil, err
	}

	from, err := time.ParseInLocation(dateLayout, fromDate, loc)
	if err != nil {
		return nil, &ValidationError{Violations: []FieldViolation{{Field: "from", Message: "must be a date (YYYY-MM-DD)"}}}
	}
	var to *time.Time
	if toDate != "" {
		day, err := time.ParseInLocation(dateLayout, toDate, loc)
		if err != nil {
			return nil, &ValidationError{Violations: []FieldViolation{{Field: "to", Message: "must be a date (YYYY-MM-DD)"}}}
		}
		// Inclusive end of the local day.
		end := day.AddDate(0, 0, 1).Add(-time.Microsecond)
		to = &end
	}
	return s.Period(ctx, scope, from, to)
}

func (s *summaryService) scopeLocation(ctx context.Context, scope Scope) (*time.Location, error) {
	if scope.BranchID != nil {
		b, err := s.directory.Branch(ctx, *scope.BranchID)
		if err != nil {
			return nil, err
		}
		return b.Location, nil
	}
	return s.directory.RestaurantLocation(ctx, *scope.RestaurantID)
}

func validateScope(v *violations, scope Scope) {
	switch {
	case scope.BranchID == nil && scope.RestaurantID == nil:
		v.add("scope", "one of branch_id or restaurant_id is required")
	case scope.BranchID != nil && scope.RestaurantID != nil:
		v.add("scope", "branch_id and restaurant_id are mutually exclusive")
	case scope.BranchID != nil && *scope.BranchID <= 0:
		v.add("branch_id", "must be a positive id")
	case scope.RestaurantID != nil && *scope.RestaurantID <= 0:
		v.add("restaurant_id", "must be a positive id")
	}
}

// average is sum/n rounded to money precision, 0 when n is 0.
func average(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return reconcile.Money(sum.Div(decimal.NewFromInt(int64(n))))
}
