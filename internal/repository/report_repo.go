package repository

import (
	"context"
	"errors"
	"time"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound  = errors.New("report not found")
	ErrAlreadyTerminal = errors.New("order already in a terminal status")
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, tx *gorm.DB, report *model.Report) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).First(&report, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// GetOrderByOrderID loads the debit entry that is the order record itself.
func (r *ReportRepository) GetOrderByOrderID(ctx context.Context, orderID string) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND transaction_type = ? AND fund_type = ?",
			orderID, model.TransactionTypeRecharge, model.FundTypeDebit).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepository) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count > 0, err
}

// OutcomeUpdate carries the terminal fields recorded on a pending order.
type OutcomeUpdate struct {
	Status         string
	OperatorID     string
	ApiOperatorID  string
	Remark         string
	CallbackStatus int
}

// UpdatePendingOutcome records the upstream outcome on a still-Pending
// order entry. The status guard makes the transition conditional: whichever
// of the synchronous path and the callback path gets here first wins, the
// other sees ErrAlreadyTerminal and must treat the order as settled.
func (r *ReportRepository) UpdatePendingOutcome(ctx context.Context, id int64, outcome OutcomeUpdate) error {
	if !model.CanTransitionTo(model.StatusPending, outcome.Status) && outcome.Status != model.StatusPending {
		return ErrAlreadyTerminal
	}

	result := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"status":          outcome.Status,
			"operator_id":     outcome.OperatorID,
			"api_operator_id": outcome.ApiOperatorID,
			"remark":          outcome.Remark,
			"callback_status": outcome.CallbackStatus,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// UpdatePendingApiID moves a pending order onto the next backup API before
// a fallback attempt.
func (r *ReportRepository) UpdatePendingApiID(ctx context.Context, id int64, apiID int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Report{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Update("api_id", apiID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// MarkRefunded flips a successful order to Refunded on the explicit
// reversal path. Conditional on the current status for the same reason as
// UpdatePendingOutcome.
func (r *ReportRepository) MarkRefunded(ctx context.Context, tx *gorm.DB, id int64, remark string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Report{}).
		Where("id = ? AND status = ?", id, model.StatusSuccess).
		Updates(map[string]interface{}{
			"status":          model.StatusRefunded,
			"remark":          remark,
			"callback_status": 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// GetCommissionEntries returns every commission entry posted for an order,
// matched by order id and the originating total amount.
func (r *ReportRepository) GetCommissionEntries(ctx context.Context, orderID string, totalAmount decimal.Decimal) ([]*model.Report, error) {
	var reports []*model.Report
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND total_amount = ? AND transaction_type = ?",
			orderID, totalAmount, model.TransactionTypeCommission).
		Order("id ASC").
		Find(&reports).Error
	return reports, err
}

// GetRefundEntry returns the compensating credit for an order, if any.
func (r *ReportRepository) GetRefundEntry(ctx context.Context, orderID string) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND transaction_type = ?", orderID, model.TransactionTypeRefund).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

// GetStalePending lists recharge debit entries stuck Pending since before
// the cutoff.
func (r *ReportRepository) GetStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Report, error) {
	var reports []*model.Report
	err := r.db.WithContext(ctx).
		Where("status = ? AND transaction_type = ? AND fund_type = ? AND created_at < ?",
			model.StatusPending, model.TransactionTypeRecharge, model.FundTypeDebit, before).
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

func (r *ReportRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Report, int64, error) {
	var reports []*model.Report
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Report{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reports).Error

	return reports, total, err
}
