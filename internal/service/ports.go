package service

import (
	"context"
	"time"

	"moneycase/internal/dto"
	"moneycase/internal/model"
	"moneycase/internal/repository"

	"github.com/google/uuid"
)

// SalesSource supplies what the ordering system accrued for a branch in the
// half-open window [from, to): a sale stamped exactly at a close belongs to the
// next session.
// Implemented by repository.SalesRepository (same database) and infra.SalesClient (HTTP).
type SalesSource interface {
	Totals(ctx context.Context, branchID int64, from, to time.Time) (repository.SalesTotals, error)
}

// BranchInfo is a directory entry with its time zone already resolved.
type BranchInfo struct {
	*model.Branch
	Location *time.Location
}

// BranchDirectory resolves branch ids to their restaurant, names and time zone.
type BranchDirectory interface {
	Branch(ctx context.Context, branchID int64) (*BranchInfo, error)
	RestaurantLocation(ctx context.Context, restaurantID int64) (*time.Location, error)
}

// ReportDispatcher receives closed sessions for asynchronous rendering/mailing.
// Failures are logged by the caller and never fail the close.
type ReportDispatcher interface {
	EnqueueZReport(ctx context.Context, sessionID uuid.UUID) error
}

// SnapshotCache keeps Z-report snapshots verbatim.
type SnapshotCache interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*dto.ZReportSnapshot, bool)
	Put(ctx context.Context, snap *dto.ZReportSnapshot) error
}

// Clock is injected so windows and close stamps are testable.
type Clock func() time.Time

// ── Directory over the branch repository ─────────────────────────────────────

type branchDirectory struct {
	repo     repository.BranchRepository
	fallback *time.Location
}

// NewBranchDirectory adapts a BranchRepository; fallback is used for branches
// whose time zone is empty or unknown.
func NewBranchDirectory(repo repository.BranchRepository, fallback *time.Location) BranchDirectory {
	if fallback == nil {
		fallback = time.UTC
	}
	return &branchDirectory{repo: repo, fallback: fallback}
}

func (d *branchDirectory) Branch(ctx context.Context, branchID int64) (*BranchInfo, error) {
	b, err := d.repo.FindByID(ctx, branchID)
	if err != nil {
		return nil, mapRepoErr(err, ErrBranchNotFound)
	}
	return &BranchInfo{Branch: b, Location: b.Location(d.fallback)}, nil
}

func (d *branchDirectory) RestaurantLocation(ctx context.Context, restaurantID int64) (*time.Location, error) {
	b, err := d.repo.FirstOfRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, mapRepoErr(err, ErrBranchNotFound)
	}
	return b.Location(d.fallback), nil
}
