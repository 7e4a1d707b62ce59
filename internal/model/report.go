package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types carried by ledger entries.
const (
	TransactionTypeRecharge          = "Recharge"
	TransactionTypeRefund            = "Refund"
	TransactionTypeCommission        = "Commission"
	TransactionTypeReverseCommission = "Reverse Commission"
	TransactionTypeTransferMoney     = "Transfer Money"
	TransactionTypeReceiveMoney      = "Receive Money"
	TransactionTypeAddMoney          = "Add Money"
)

const (
	FundTypeCredit = "Credit"
	FundTypeDebit  = "Debit"
)

// Order statuses. Pending is the only non-terminal state; Refunded is
// reachable from Success only through the explicit reversal path.
const (
	StatusPending  = "Pending"
	StatusSuccess  = "Success"
	StatusFailed   = "Failed"
	StatusRefunded = "Refunded"
)

var validStatusTransitions = map[string][]string{
	StatusPending: {StatusSuccess, StatusFailed},
	StatusSuccess: {StatusRefunded},
}

// CanTransitionTo reports whether an order status change is allowed.
// Terminal states never move except Success -> Refunded (explicit reversal).
func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := validStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further automatic transition applies.
func IsTerminalStatus(status string) bool {
	return status == StatusSuccess || status == StatusFailed || status == StatusRefunded
}

// Report is one immutable ledger entry with before/after balance snapshots.
//
// Ledger design rules:
//  1. Append only. The sole allowed post-write mutation is on a Recharge
//     debit entry while it is still Pending (status, operator id, api id,
//     remark), recording the upstream outcome.
//  2. Every entry carries the order id it belongs to, so the debit entry,
//     its refund, its commission chain, and callbacks all correlate.
//  3. Opening and closing balances are snapshotted atomically with the
//     wallet mutation; replaying entries in order must reproduce the
//     current balance exactly.
type Report struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	OrderID         string          `gorm:"type:varchar(64);index;not null" json:"order_id"`
	UserID          int64           `gorm:"index;not null" json:"user_id"`
	ParentID        int64           `gorm:"not null;default:0" json:"parent_id"` // links a compensating or commission entry to its origin entry
	ProviderID      int64           `gorm:"not null;default:0" json:"provider_id"`
	ServiceID       int64           `gorm:"not null;default:0" json:"service_id"`
	StateID         int64           `gorm:"not null;default:0" json:"state_id"`
	ApiID           int64           `gorm:"not null;default:0" json:"api_id"`
	Number          string          `gorm:"type:varchar(32)" json:"number"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Commission      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"commission"`
	FundType        string          `gorm:"type:varchar(10);not null" json:"fund_type"`
	TransactionType string          `gorm:"type:varchar(32);index;not null" json:"transaction_type"`
	Status          string          `gorm:"type:varchar(16);index;not null" json:"status"`
	OperatorID      string          `gorm:"type:varchar(64)" json:"operator_id"`
	ApiOperatorID   string          `gorm:"type:varchar(64)" json:"api_operator_id"`
	Remark          string          `gorm:"type:varchar(256)" json:"remark"`
	OpeningBalance  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"opening_balance"`
	ClosingBalance  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"closing_balance"`
	CallbackStatus  int             `gorm:"not null;default:0" json:"callback_status"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}
