package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesTotals is what the ordering system accrued for a branch in a time window.
type SalesTotals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	ServiceFee       decimal.Decimal `json:"service_fee"`
	TransactionCount int             `json:"transaction_count"`
	OrderCount       int             `json:"order_count"`
}

// SalesRepository reads the ordering system's sales table. It never writes.
// Windows are [from, to).
type SalesRepository interface {
	Totals(ctx context.Context, branchID int64, from, to time.Time) (SalesTotals, error)
}

type salesRepo struct{ db *gorm.DB }

func NewSalesRepository(db *gorm.DB) SalesRepository { return &salesRepo{db: db} }

func (r *salesRepo) Totals(ctx context.Context, branchID int64, from, to time.Time) (SalesTotals, error) {
	var row struct {
		Subtotal         decimal.Decimal
		ServiceFee       decimal.Decimal
		TransactionCount int
		OrderCount       int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(subtotal), 0)    AS subtotal,
		       COALESCE(SUM(service_fee), 0) AS service_fee,
		       COUNT(*)                      AS transaction_count,
		       COUNT(DISTINCT order_id)      AS order_count
		FROM sales
		WHERE branch_id = ? AND status = 'completed'
		  AND created_at >= ? AND created_at < ?`,
		branchID, from, to).Scan(&row).Error
	if err != nil {
		return SalesTotals{}, fmt.Errorf("sum sales: %w", err)
	}
	return SalesTotals{
		Subtotal:         row.Subtotal,
		ServiceFee:       row.ServiceFee,
		TransactionCount: row.TransactionCount,
		OrderCount:       row.OrderCount,
	}, nil
}
