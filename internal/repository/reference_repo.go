package repository

import (
	"context"
	"errors"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrApiNotFound      = errors.New("api not found")
)

// ReferenceRepository is the core's read-only view of the configuration
// maintained by the administrative layer: providers, upstream API configs,
// routing rules, commission tables. Nothing here is ever written by the
// orchestration path, so reads run without locks.
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) GetProvider(ctx context.Context, providerID int64) (*model.Provider, error) {
	var provider model.Provider
	err := r.db.WithContext(ctx).First(&provider, providerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

func (r *ReferenceRepository) GetApi(ctx context.Context, apiID int64) (*model.Api, error) {
	var api model.Api
	err := r.db.WithContext(ctx).First(&api, apiID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApiNotFound
		}
		return nil, err
	}
	return &api, nil
}

// GetProviderCode returns the operator code an API expects for a provider,
// or "" when the mapping has not been configured.
func (r *ReferenceRepository) GetProviderCode(ctx context.Context, apiID, providerID int64) (string, error) {
	var code model.ApiProviderCode
	err := r.db.WithContext(ctx).
		Where("api_id = ? AND provider_id = ?", apiID, providerID).
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return code.ProviderCode, nil
}

func (r *ReferenceRepository) GetStateCode(ctx context.Context, stateID int64) (string, error) {
	if stateID == 0 {
		return "", nil
	}
	var state model.State
	err := r.db.WithContext(ctx).First(&state, stateID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return state.StateCode, nil
}

// IsAmountBlocked reports whether a denomination is barred for a provider.
func (r *ReferenceRepository) IsAmountBlocked(ctx context.Context, providerID int64, amount decimal.Decimal) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AmountBlock{}).
		Where("provider_id = ? AND amount = ? AND status = ?", providerID, amount, 1).
		Count(&count).Error
	return count > 0, err
}

// GetRouteSettings returns enabled routing strategies, highest priority
// (lowest value) first.
func (r *ReferenceRepository) GetRouteSettings(ctx context.Context) ([]*model.RouteSetting, error) {
	var routes []*model.RouteSetting
	err := r.db.WithContext(ctx).
		Where("status = ?", model.RouteStatusEnabled).
		Order("priority ASC").
		Find(&routes).Error
	return routes, err
}

func (r *ReferenceRepository) GetAmountSwitch(ctx context.Context, providerID int64) (*model.AmountSwitch, error) {
	var sw model.AmountSwitch
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND status = ?", providerID, model.RouteStatusEnabled).
		First(&sw).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sw, nil
}

func (r *ReferenceRepository) GetStateSwitch(ctx context.Context, providerID, stateID int64) (*model.StateSwitch, error) {
	var sw model.StateSwitch
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND state_id = ? AND status = ?", providerID, stateID, model.RouteStatusEnabled).
		First(&sw).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sw, nil
}

func (r *ReferenceRepository) GetUserSwitch(ctx context.Context, providerID, userID, stateID int64) (*model.UserSwitch, error) {
	var sw model.UserSwitch
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND user_id = ? AND state_id = ? AND status = ?",
			providerID, userID, stateID, model.RouteStatusEnabled).
		First(&sw).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sw, nil
}

func (r *ReferenceRepository) GetScheme(ctx context.Context, schemeID int64) (*model.Scheme, error) {
	var scheme model.Scheme
	err := r.db.WithContext(ctx).First(&scheme, schemeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &scheme, nil
}

func (r *ReferenceRepository) GetSchemeCommission(ctx context.Context, schemeID, providerID int64) (*model.SchemeCommission, error) {
	var commission model.SchemeCommission
	err := r.db.WithContext(ctx).
		Where("scheme_id = ? AND provider_id = ?", schemeID, providerID).
		First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}
