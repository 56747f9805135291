package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"min=0,max=9999999999.99"`
}

type CloseSessionRequest struct {
	// SessionID pins the close to one session so a retried request cannot close
	// a newer session of the same branch.
	SessionID  string          `json:"session_id"  validate:"omitempty,uuid"`
	ActualCash decimal.Decimal `json:"actual_cash" validate:"min=0,max=9999999999.99"`
	Notes      *string         `json:"notes"       validate:"omitempty,max=1000"`
}

// HistoryQuery bounds are RFC 3339 instants on OpenedAt, both inclusive.
type HistoryQuery struct {
	BranchID     *int64 `form:"branch_id"     validate:"omitempty,min=1"`
	RestaurantID *int64 `form:"restaurant_id" validate:"omitempty,min=1"`
	From         string `form:"from"          validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To           string `form:"to"            validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	PageToken    string `form:"page_token"`
	PageSize     int    `form:"page_size"     validate:"omitempty,min=1,max=100"`
}

// PeriodQuery must name exactly one of BranchID / RestaurantID. From and To are
// local calendar dates of the scope; To is inclusive and defaults to now.
type PeriodQuery struct {
	BranchID     *int64 `form:"branch_id"     validate:"omitempty,min=1"`
	RestaurantID *int64 `form:"restaurant_id" validate:"omitempty,min=1"`
	From         string `form:"from"          validate:"required,datetime=2006-01-02"`
	To           string `form:"to"            validate:"omitempty,datetime=2006-01-02"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DiscrepancyResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	Percentage     decimal.Decimal `json:"percentage"`
	Classification string          `json:"classification"` // surplus | shortage | balanced
	Grade          string          `json:"grade"`          // normal | warning | critical
}

type SessionResponse struct {
	SessionID          string               `json:"session_id"`
	BranchID           int64                `json:"branch_id"`
	RestaurantID       int64                `json:"restaurant_id"`
	Status             string               `json:"status"`
	OpenedAt           time.Time            `json:"opened_at"`
	OpenedBy           string               `json:"opened_by"`
	ClosedAt           *time.Time           `json:"closed_at"`
	ClosedBy           *string              `json:"closed_by"`
	OpeningBalance     decimal.Decimal      `json:"opening_balance"`
	ExpectedSubtotal   decimal.Decimal      `json:"expected_subtotal"`
	ExpectedServiceFee decimal.Decimal      `json:"expected_service_fee"`
	ExpectedTotal      decimal.Decimal      `json:"expected_total"`
	ActualCash         *decimal.Decimal     `json:"actual_cash"`
	Discrepancy        *DiscrepancyResponse `json:"discrepancy"`
	TransactionCount   int                  `json:"transaction_count"`
	OrderCount         int                  `json:"order_count"`
	Notes              *string              `json:"notes"`
}

type SessionPageResponse struct {
	Data          []SessionResponse `json:"data"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}
