package repository

import (
	"context"
	"errors"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate loads the user row under an exclusive lock. Must be
// called inside a transaction; the lock is held until it commits.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateBalance writes an absolute balance computed by the caller while it
// holds the row lock from GetByIDForUpdate.
func (r *UserRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, userID int64, balance decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Ancestors walks the parent chain upward, returning up to maxLevels
// ancestors in order (parent first). The walk stops at a missing parent or
// at the platform root.
func (r *UserRepository) Ancestors(ctx context.Context, userID int64, maxLevels int) ([]*model.User, error) {
	ancestors := make([]*model.User, 0, maxLevels)

	current, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxLevels; i++ {
		if !current.HasParent() {
			break
		}
		parent, err := r.GetByID(ctx, current.ParentID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				break
			}
			return nil, err
		}
		ancestors = append(ancestors, parent)
		current = parent
	}

	return ancestors, nil
}
