package service

import (
	"context"
	"fmt"

	"rechargehub/internal/model"
	"rechargehub/internal/repository"
	"rechargehub/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletLedger is the single code path that mutates wallet balances. Every
// operation locks the account row, snapshots opening/closing balances and
// persists the mutation together with its ledger entry in one database
// transaction. The row lock is held only for the read-modify-write; the
// slow upstream work of an order always happens outside it.
type WalletLedger struct {
	db         *gorm.DB
	userRepo   *repository.UserRepository
	reportRepo *repository.ReportRepository
}

func NewWalletLedger(db *gorm.DB) *WalletLedger {
	return &WalletLedger{
		db:         db,
		userRepo:   repository.NewUserRepository(db),
		reportRepo: repository.NewReportRepository(db),
	}
}

func (l *WalletLedger) Debit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error) {
	return l.apply(ctx, userID, amount, entry, model.FundTypeDebit, true)
}

func (l *WalletLedger) Credit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error) {
	return l.apply(ctx, userID, amount, entry, model.FundTypeCredit, false)
}

// ForceDebit skips the balance floor. Only the commission reversal path
// uses it: the commission being clawed back was already credited and may
// have been spent, and the claw-back must still be recorded.
func (l *WalletLedger) ForceDebit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error) {
	return l.apply(ctx, userID, amount, entry, model.FundTypeDebit, false)
}

func (l *WalletLedger) apply(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report, fundType string, enforceFloor bool) (*model.Report, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		user, err := l.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		opening := user.WalletBalance
		var closing decimal.Decimal
		if fundType == model.FundTypeDebit {
			closing = opening.Sub(amount)
			if enforceFloor && closing.LessThan(user.MinBalance) {
				return repository.ErrInsufficientBalance
			}
		} else {
			closing = opening.Add(amount)
		}

		if err := l.userRepo.UpdateBalance(ctx, tx, userID, closing); err != nil {
			return err
		}

		l.fillEntry(entry, userID, amount, fundType, opening, closing)
		if err := l.reportRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("failed to write ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *WalletLedger) fillEntry(entry *model.Report, userID int64, amount decimal.Decimal, fundType string, opening, closing decimal.Decimal) {
	entry.UserID = userID
	entry.FundType = fundType
	entry.Amount = amount
	if entry.TotalAmount.IsZero() {
		entry.TotalAmount = amount
	}
	entry.OpeningBalance = opening
	entry.ClosingBalance = closing
	if entry.TransactionNo == "" {
		entry.TransactionNo = idgen.TransactionNo()
	}
}

// Transfer moves funds between two accounts as one atomic double entry:
// a Debit for the sender and a Credit for the receiver sharing one order
// id. Rows are locked in id order so two opposing transfers cannot
// deadlock each other.
func (l *WalletLedger) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, orderID, remark string) (*model.Report, *model.Report, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, nil, ErrSelfTransfer
	}

	debitEntry := &model.Report{
		OrderID:         orderID,
		TransactionType: model.TransactionTypeTransferMoney,
		Status:          model.StatusSuccess,
		Remark:          remark,
	}
	creditEntry := &model.Report{
		OrderID:         orderID,
		TransactionType: model.TransactionTypeReceiveMoney,
		Status:          model.StatusSuccess,
		Remark:          remark,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		users := make(map[int64]*model.User, 2)
		for _, id := range []int64{first, second} {
			u, err := l.userRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			users[id] = u
		}

		from, to := users[fromID], users[toID]
		fromClosing := from.WalletBalance.Sub(amount)
		if fromClosing.LessThan(from.MinBalance) {
			return repository.ErrInsufficientBalance
		}
		toClosing := to.WalletBalance.Add(amount)

		if err := l.userRepo.UpdateBalance(ctx, tx, fromID, fromClosing); err != nil {
			return err
		}
		if err := l.userRepo.UpdateBalance(ctx, tx, toID, toClosing); err != nil {
			return err
		}

		l.fillEntry(debitEntry, fromID, amount, model.FundTypeDebit, from.WalletBalance, fromClosing)
		l.fillEntry(creditEntry, toID, amount, model.FundTypeCredit, to.WalletBalance, toClosing)

		if err := l.reportRepo.Create(ctx, tx, debitEntry); err != nil {
			return err
		}
		return l.reportRepo.Create(ctx, tx, creditEntry)
	})
	if err != nil {
		return nil, nil, err
	}
	return debitEntry, creditEntry, nil
}
