package repository

import (
	"context"
	"errors"

	"moneycase/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BranchRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Branch, error)
	// FirstOfRestaurant returns the lowest-id branch of a restaurant; its time zone
	// stands in for the restaurant when summaries are scoped restaurant-wide.
	FirstOfRestaurant(ctx context.Context, restaurantID int64) (*model.Branch, error)
	Upsert(ctx context.Context, b *model.Branch) error
}

type branchRepo struct{ db *gorm.DB }

func NewBranchRepository(db *gorm.DB) BranchRepository { return &branchRepo{db: db} }

func (r *branchRepo) FindByID(ctx context.Context, id int64) (*model.Branch, error) {
	var b model.Branch
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *branchRepo) FirstOfRestaurant(ctx context.Context, restaurantID int64) (*model.Branch, error) {
	var b model.Branch
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("id ASC").
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *branchRepo) Upsert(ctx context.Context, b *model.Branch) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"restaurant_id", "name", "restaurant_name", "timezone", "currency", "updated_at"}),
	}).Create(b).Error
}
