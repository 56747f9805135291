package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Branch is a directory entry resolving a branch to its restaurant and local time zone.
// Timezone holds an IANA name ("Europe/Istanbul"); Currency is display-only.
type Branch struct {
	ID             int64  `gorm:"primaryKey;autoIncrement:false"`
	RestaurantID   int64  `gorm:"not null;index"`
	Name           string `gorm:"type:varchar(120);not null"`
	RestaurantName string `gorm:"type:varchar(120);not null"`
	Timezone       string `gorm:"type:varchar(64);not null;default:'UTC'"`
	Currency       string `gorm:"type:varchar(8);not null;default:'TRY'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Branch) TableName() string { return "branches" }

// Location resolves Timezone, falling back to fallback when it is empty or unknown.
func (b *Branch) Location(fallback *time.Location) *time.Location {
	if b.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// Sale is a read-only row of the ordering system's sales ledger.
// Status: "completed" | "voided"; only completed sales count towards expected cash.
type Sale struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BranchID   int64           `gorm:"not null;index"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null"`
	Subtotal   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ServiceFee decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Status     string          `gorm:"type:varchar(20);not null"`
	CreatedAt  time.Time       `gorm:"not null;index"`
}

func (Sale) TableName() string { return "sales" }
