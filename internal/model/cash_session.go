package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// CashSession is one open-to-close cash-handling period ("money case") of a branch.
// Status is derived from ClosedAt and is never persisted.
// Once ClosedAt is set the financial fields are frozen: the only write path is the
// conditional close in the repository.
type CashSession struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	BranchID     int64     `gorm:"not null;index"`
	RestaurantID int64     `gorm:"not null;index"`

	OpenedAt time.Time  `gorm:"not null;index"`
	OpenedBy string     `gorm:"type:varchar(120);not null"`
	ClosedAt *time.Time
	ClosedBy *string `gorm:"type:varchar(120)"`

	OpeningBalance     decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	ExpectedSubtotal   decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	ExpectedServiceFee decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	ExpectedTotal      decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	ActualCash         *decimal.Decimal `gorm:"type:numeric(12,2)"`
	// Discrepancy = ActualCash - ExpectedTotal (positive = surplus)
	Discrepancy *decimal.Decimal `gorm:"type:numeric(12,2)"`
	Notes       *string

	TransactionCount int `gorm:"not null;default:0"`
	OrderCount       int `gorm:"not null;default:0"`

	// Written by the close together with the amounts, so a Z-report does not move
	// when the branch directory or the grading thresholds change later.
	Grade          string `gorm:"type:varchar(10);not null;default:''"`
	BranchName     string `gorm:"type:varchar(120);not null;default:''"`
	RestaurantName string `gorm:"type:varchar(120);not null;default:''"`
	Currency       string `gorm:"type:varchar(8);not null;default:''"`
	Timezone       string `gorm:"type:varchar(64);not null;default:''"`

	// Revision is the optimistic version compared and incremented by the close write.
	Revision int `gorm:"not null;default:0"`
}

func (CashSession) TableName() string { return "cash_sessions" }

// IsOpen reports whether the session has not been closed yet.
func (s *CashSession) IsOpen() bool { return s.ClosedAt == nil }

// Status returns StatusOpen or StatusClosed.
func (s *CashSession) Status() string {
	if s.IsOpen() {
		return StatusOpen
	}
	return StatusClosed
}

// Duration is the open-to-close span; zero while the session is open.
func (s *CashSession) Duration() time.Duration {
	if s.ClosedAt == nil {
		return 0
	}
	return s.ClosedAt.Sub(s.OpenedAt)
}

// Clone returns a deep copy so callers never share pointer fields with a store.
func (s *CashSession) Clone() *CashSession {
	c := *s
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	if s.ClosedBy != nil {
		v := *s.ClosedBy
		c.ClosedBy = &v
	}
	if s.ActualCash != nil {
		v := *s.ActualCash
		c.ActualCash = &v
	}
	if s.Discrepancy != nil {
		v := *s.Discrepancy
		c.Discrepancy = &v
	}
	if s.Notes != nil {
		v := *s.Notes
		c.Notes = &v
	}
	return &c
}
