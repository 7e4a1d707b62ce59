package service

import (
	"context"

	"rechargehub/internal/model"
	"rechargehub/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The services take their collaborators as narrow interfaces so tests can
// run against fake reference data, a fake ledger and a fake upstream
// transport. In production every one of these is satisfied by the gorm
// repositories and the redis-backed locker.

// Ledger is the only path allowed to change a wallet balance. Each call is
// one atomic unit: balance mutation and ledger entry commit together or
// not at all.
type Ledger interface {
	// Debit withdraws amount, failing with repository.ErrInsufficientBalance
	// before the balance could cross the account's floor.
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error)
	// Credit deposits amount.
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error)
	// ForceDebit withdraws without the floor check. Reserved for commission
	// reversal, where the credit being clawed back may already be spent.
	ForceDebit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error)
}

// UserDirectory reads reseller accounts and their ancestor chain.
type UserDirectory interface {
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	Ancestors(ctx context.Context, userID int64, maxLevels int) ([]*model.User, error)
}

// RouteReader is the slice of reference data the provider router consumes.
type RouteReader interface {
	GetRouteSettings(ctx context.Context) ([]*model.RouteSetting, error)
	GetAmountSwitch(ctx context.Context, providerID int64) (*model.AmountSwitch, error)
	GetStateSwitch(ctx context.Context, providerID, stateID int64) (*model.StateSwitch, error)
	GetUserSwitch(ctx context.Context, providerID, userID, stateID int64) (*model.UserSwitch, error)
	GetProvider(ctx context.Context, providerID int64) (*model.Provider, error)
}

// BlockList answers whether a denomination is barred for a provider.
type BlockList interface {
	IsAmountBlocked(ctx context.Context, providerID int64, amount decimal.Decimal) (bool, error)
}

// Router picks the upstream API for one order.
type Router interface {
	SelectApi(ctx context.Context, userID, providerID, stateID int64, amount decimal.Decimal) (int64, error)
}

// ApiReader is the slice of reference data the executor and the callback
// reconciler consume.
type ApiReader interface {
	GetApi(ctx context.Context, apiID int64) (*model.Api, error)
	GetProviderCode(ctx context.Context, apiID, providerID int64) (string, error)
	GetStateCode(ctx context.Context, stateID int64) (string, error)
}

// CommissionReader reads scheme rate tables.
type CommissionReader interface {
	GetScheme(ctx context.Context, schemeID int64) (*model.Scheme, error)
	GetSchemeCommission(ctx context.Context, schemeID, providerID int64) (*model.SchemeCommission, error)
}

// OrderStore reads and conditionally mutates order debit entries. All
// status-changing methods are guarded on the entry's current status, so a
// terminal entry can never be moved by a late writer.
type OrderStore interface {
	OrderIDExists(ctx context.Context, orderID string) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.Report, error)
	GetOrderByOrderID(ctx context.Context, orderID string) (*model.Report, error)
	UpdatePendingOutcome(ctx context.Context, id int64, outcome repository.OutcomeUpdate) error
	UpdatePendingApiID(ctx context.Context, id int64, apiID int64) error
	MarkRefunded(ctx context.Context, tx *gorm.DB, id int64, remark string) error
	GetRefundEntry(ctx context.Context, orderID string) (*model.Report, error)
	GetCommissionEntries(ctx context.Context, orderID string, totalAmount decimal.Decimal) ([]*model.Report, error)
}

// WalletBook is the slice of the ledger the wallet service consumes:
// external funding credits and the atomic peer-to-peer double entry.
type WalletBook interface {
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error)
	Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, orderID, remark string) (*model.Report, *model.Report, error)
}

// StatementStore reads ledger entries for receipts and statements.
type StatementStore interface {
	GetOrderByOrderID(ctx context.Context, orderID string) (*model.Report, error)
	GetRefundEntry(ctx context.Context, orderID string) (*model.Report, error)
	ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Report, int64, error)
}

// OutboxWriter appends events and refund-retry tasks to the outbox.
type OutboxWriter interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// Executor issues one upstream API call and normalizes the response.
type Executor interface {
	Execute(ctx context.Context, apiID, providerID int64, order *model.Report) Outcome
}

// Settler settles or reverses the commission waterfall for an order.
type Settler interface {
	Settle(ctx context.Context, orderID string) error
	Reverse(ctx context.Context, orderID string) error
}

// Refunder issues the compensating credit for a failed order.
type Refunder interface {
	RefundOrder(ctx context.Context, order *model.Report) error
}

// Locker serializes balance-changing paths per account. Release must
// always be called; it is safe after lock expiry.
type Locker interface {
	AcquireWallet(ctx context.Context, userID int64) (release func(), err error)
}
