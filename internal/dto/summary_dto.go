package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// WindowTotals rolls up one calendar window (today, week-to-date, month-to-date).
// ExpectedTotal and CurrentCash include the accrued total of an open session.
type WindowTotals struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	SessionCount  int             `json:"session_count"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`
	CurrentCash   decimal.Decimal `json:"current_cash"`
	Difference    decimal.Decimal `json:"difference"`
	Revenue       decimal.Decimal `json:"revenue"`
	OrderCount    int             `json:"order_count"`
}

type QuickSummary struct {
	BranchID             int64           `json:"branch_id"`
	Timezone             string          `json:"timezone"`
	HasActiveShift       bool            `json:"has_active_shift"`
	ActiveSessionID      *string         `json:"active_session_id,omitempty"`
	TodayExpectedTotal   decimal.Decimal `json:"today_expected_total"`
	TodayActualOrCurrent decimal.Decimal `json:"today_actual_or_current"`
	OrdersToday          int             `json:"orders_today"`
	Today                WindowTotals    `json:"today"`
	WeekToDate           WindowTotals    `json:"week_to_date"`
	MonthToDate          WindowTotals    `json:"month_to_date"`
}

// PeriodSummary is recomputed from the session store on every request.
// Financial sums cover closed sessions only; averages are 0 when their divisor is 0.
type PeriodSummary struct {
	BranchID     *int64    `json:"branch_id,omitempty"`
	RestaurantID *int64    `json:"restaurant_id,omitempty"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`

	TotalCases            int             `json:"total_cases"`
	OpenCases             int             `json:"open_cases"`
	ClosedCases           int             `json:"closed_cases"`
	TotalOpening          decimal.Decimal `json:"total_opening"`
	TotalSales            decimal.Decimal `json:"total_sales"`
	TotalActual           decimal.Decimal `json:"total_actual"`
	TotalDifference       decimal.Decimal `json:"total_difference"`
	AverageDifference     decimal.Decimal `json:"average_difference"`
	ShiftsWithDiscrepancy int             `json:"shifts_with_discrepancy"`
	SurplusCount          int             `json:"surplus_count"`
	ShortageCount         int             `json:"shortage_count"`
	TotalTransactions     int             `json:"total_transactions"`
	TotalOrders           int             `json:"total_orders"`
	AverageTransaction    decimal.Decimal `json:"average_transaction"`
	AverageOrderValue     decimal.Decimal `json:"average_order_value"`
	AverageDurationSecs   int64           `json:"average_duration_seconds"`
}

// ZReportSnapshot is a flat, self-contained copy of one closed session for
// printing or export. It is built only from fields frozen at close time.
type ZReportSnapshot struct {
	SessionID          string          `json:"session_id"`
	BranchID           int64           `json:"branch_id"`
	BranchName         string          `json:"branch_name"`
	RestaurantID       int64           `json:"restaurant_id"`
	RestaurantName     string          `json:"restaurant_name"`
	Currency           string          `json:"currency"`
	Timezone           string          `json:"timezone"`
	OpenedAt           time.Time       `json:"opened_at"`
	OpenedBy           string          `json:"opened_by"`
	ClosedAt           time.Time       `json:"closed_at"`
	ClosedBy           string          `json:"closed_by"`
	DurationSecs       int64           `json:"duration_seconds"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	ExpectedSubtotal   decimal.Decimal `json:"expected_subtotal"`
	ExpectedServiceFee decimal.Decimal `json:"expected_service_fee"`
	ExpectedTotal      decimal.Decimal `json:"expected_total"`
	ActualCash         decimal.Decimal `json:"actual_cash"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
	DiscrepancyPct     decimal.Decimal `json:"discrepancy_pct"`
	Classification     string          `json:"classification"`
	Grade              string          `json:"grade"`
	TransactionCount   int             `json:"transaction_count"`
	OrderCount         int             `json:"order_count"`
	Notes              string          `json:"notes"`
}
