package service

import (
	"context"
	"errors"
	"fmt"

	"rechargehub/internal/model"
	"rechargehub/internal/repository"
	"rechargehub/pkg/idgen"

	"github.com/shopspring/decimal"
)

// WalletService is the account-facing surface: balances, funding,
// peer-to-peer transfers, receipts and statements.
type WalletService struct {
	ledger  WalletBook
	users   UserDirectory
	reports StatementStore
	locker  Locker
}

func NewWalletService(ledger WalletBook, users UserDirectory, reports StatementStore, locker Locker) *WalletService {
	return &WalletService{
		ledger:  ledger,
		users:   users,
		reports: reports,
		locker:  locker,
	}
}

func (s *WalletService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}

// AddMoney credits externally funded money into a wallet.
func (s *WalletService) AddMoney(ctx context.Context, userID int64, amount decimal.Decimal, remark string) (*model.Report, error) {
	release, err := s.locker.AcquireWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	entry := &model.Report{
		OrderID:         idgen.FundOrderID(),
		TransactionType: model.TransactionTypeAddMoney,
		Status:          model.StatusSuccess,
		Remark:          remark,
	}
	return s.ledger.Credit(ctx, userID, amount, entry)
}

// Transfer moves funds between two accounts as an atomic double entry.
func (s *WalletService) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, pin string) (*model.Report, error) {
	from, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if from.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}
	if from.TPin != pin {
		return nil, ErrInvalidPin
	}
	if _, err := s.users.GetByID(ctx, toID); err != nil {
		return nil, err
	}

	release, err := s.locker.AcquireWallet(ctx, fromID)
	if err != nil {
		return nil, err
	}
	defer release()

	orderID := idgen.FundOrderID()
	remark := fmt.Sprintf("Transfer from user %d to user %d", fromID, toID)
	debit, _, err := s.ledger.Transfer(ctx, fromID, toID, amount, orderID, remark)
	if err != nil {
		return nil, err
	}
	return debit, nil
}

// Receipt is the buyer-facing view of one order.
type Receipt struct {
	OrderID       string          `json:"order_id"`
	TransactionNo string          `json:"transaction_no"`
	Number        string          `json:"number"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	OperatorID    string          `json:"operator_id,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	Refunded      bool            `json:"refunded"`
}

func (s *WalletService) GetReceipt(ctx context.Context, orderID string) (*Receipt, error) {
	order, err := s.reports.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	refund, err := s.reports.GetRefundEntry(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		OrderID:       order.OrderID,
		TransactionNo: order.TransactionNo,
		Number:        order.Number,
		Amount:        order.TotalAmount,
		Status:        order.Status,
		OperatorID:    order.OperatorID,
		Remark:        order.Remark,
		Refunded:      refund != nil,
	}, nil
}

func (s *WalletService) ListReports(ctx context.Context, userID int64, page, pageSize int) ([]*model.Report, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.reports.ListByUserID(ctx, userID, page, pageSize)
}
