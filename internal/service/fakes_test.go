package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rechargehub/internal/model"
	"rechargehub/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeBackend stands in for the database-backed ledger, order store and
// outbox in one place, so an entry written through the ledger is visible
// to the order store the way it is in production.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*model.User
	reports  map[int64]*model.Report
	outbox   []*model.OutboxMessage
	failUser map[int64]error // per-user forced ledger failure
}

func newFakeBackend(users ...*model.User) *fakeBackend {
	b := &fakeBackend{
		users:    make(map[int64]*model.User),
		reports:  make(map[int64]*model.Report),
		failUser: make(map[int64]error),
	}
	for _, u := range users {
		b.users[u.ID] = u
	}
	return b
}

// --- Ledger ---

func (b *fakeBackend) Debit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error) {
	return b.apply(userID, amount, entry, model.FundTypeDebit, true)
}

func (b *fakeBackend) Credit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error) {
	return b.apply(userID, amount, entry, model.FundTypeCredit, false)
}

func (b *fakeBackend) ForceDebit(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) (*model.Report, error) {
	return b.apply(userID, amount, entry, model.FundTypeDebit, false)
}

func (b *fakeBackend) apply(userID int64, amount decimal.Decimal, entry *model.Report, fundType string, enforceFloor bool) (*model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.failUser[userID]; ok {
		return nil, err
	}
	user, ok := b.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	opening := user.WalletBalance
	var closing decimal.Decimal
	if fundType == model.FundTypeDebit {
		closing = opening.Sub(amount)
		if enforceFloor && closing.LessThan(user.MinBalance) {
			return nil, repository.ErrInsufficientBalance
		}
	} else {
		closing = opening.Add(amount)
	}
	user.WalletBalance = closing
	return b.storeEntry(entry, userID, amount, fundType, opening, closing), nil
}

// Transfer mirrors the production double entry: one shared order id, a
// floor-checked debit for the sender and a credit for the receiver, all
// inside the backend's single lock.
func (b *fakeBackend) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, orderID, remark string) (*model.Report, *model.Report, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, nil, ErrSelfTransfer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	from, ok := b.users[fromID]
	if !ok {
		return nil, nil, repository.ErrUserNotFound
	}
	to, ok := b.users[toID]
	if !ok {
		return nil, nil, repository.ErrUserNotFound
	}
	fromClosing := from.WalletBalance.Sub(amount)
	if fromClosing.LessThan(from.MinBalance) {
		return nil, nil, repository.ErrInsufficientBalance
	}
	toClosing := to.WalletBalance.Add(amount)

	debit := b.storeEntry(&model.Report{
		OrderID:         orderID,
		TransactionType: model.TransactionTypeTransferMoney,
		Status:          model.StatusSuccess,
		Remark:          remark,
	}, fromID, amount, model.FundTypeDebit, from.WalletBalance, fromClosing)
	credit := b.storeEntry(&model.Report{
		OrderID:         orderID,
		TransactionType: model.TransactionTypeReceiveMoney,
		Status:          model.StatusSuccess,
		Remark:          remark,
	}, toID, amount, model.FundTypeCredit, to.WalletBalance, toClosing)

	from.WalletBalance = fromClosing
	to.WalletBalance = toClosing
	return debit, credit, nil
}

// storeEntry records one ledger row. Callers hold b.mu.
func (b *fakeBackend) storeEntry(entry *model.Report, userID int64, amount decimal.Decimal, fundType string, opening, closing decimal.Decimal) *model.Report {
	b.nextID++
	entry.ID = b.nextID
	entry.UserID = userID
	entry.FundType = fundType
	entry.Amount = amount
	if entry.TotalAmount.IsZero() {
		entry.TotalAmount = amount
	}
	entry.OpeningBalance = opening
	entry.ClosingBalance = closing
	if entry.TransactionNo == "" {
		entry.TransactionNo = fmt.Sprintf("TXN-%d", entry.ID)
	}
	stored := *entry
	b.reports[entry.ID] = &stored
	return entry
}

// fakeUsers adapts the backend's user table to UserDirectory. It is a
// separate type because the order store also has a GetByID.
type fakeUsers struct {
	b *fakeBackend
}

func (f fakeUsers) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	user, ok := f.b.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f fakeUsers) Ancestors(ctx context.Context, userID int64, maxLevels int) ([]*model.User, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	var chain []*model.User
	current, ok := f.b.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	for len(chain) < maxLevels {
		if current.ParentID == 0 || current.ParentID == model.RootUserID {
			break
		}
		parent, ok := f.b.users[current.ParentID]
		if !ok {
			break
		}
		copied := *parent
		chain = append(chain, &copied)
		current = parent
	}
	return chain, nil
}

// --- OrderStore ---

func (b *fakeBackend) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.reports {
		if r.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (b *fakeBackend) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reports[id]
	if !ok {
		return nil, repository.ErrReportNotFound
	}
	copied := *r
	return &copied, nil
}

func (b *fakeBackend) GetOrderByOrderID(ctx context.Context, orderID string) (*model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.reports {
		if r.OrderID == orderID && r.TransactionType == model.TransactionTypeRecharge && r.FundType == model.FundTypeDebit {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrReportNotFound
}

func (b *fakeBackend) UpdatePendingOutcome(ctx context.Context, id int64, outcome repository.OutcomeUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reports[id]
	if !ok {
		return repository.ErrReportNotFound
	}
	if r.Status != model.StatusPending {
		return repository.ErrAlreadyTerminal
	}
	r.Status = outcome.Status
	r.OperatorID = outcome.OperatorID
	r.ApiOperatorID = outcome.ApiOperatorID
	r.Remark = outcome.Remark
	r.CallbackStatus = outcome.CallbackStatus
	return nil
}

func (b *fakeBackend) UpdatePendingApiID(ctx context.Context, id int64, apiID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reports[id]
	if !ok {
		return repository.ErrReportNotFound
	}
	if r.Status != model.StatusPending {
		return repository.ErrAlreadyTerminal
	}
	r.ApiID = apiID
	return nil
}

func (b *fakeBackend) MarkRefunded(ctx context.Context, tx *gorm.DB, id int64, remark string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.reports[id]
	if !ok {
		return repository.ErrReportNotFound
	}
	if r.Status != model.StatusSuccess {
		return repository.ErrAlreadyTerminal
	}
	r.Status = model.StatusRefunded
	r.Remark = remark
	r.CallbackStatus = 1
	return nil
}

func (b *fakeBackend) GetRefundEntry(ctx context.Context, orderID string) (*model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.reports {
		if r.OrderID == orderID && r.TransactionType == model.TransactionTypeRefund {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (b *fakeBackend) GetCommissionEntries(ctx context.Context, orderID string, totalAmount decimal.Decimal) ([]*model.Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.Report
	for _, r := range b.reports {
		if r.OrderID == orderID && r.TransactionType == model.TransactionTypeCommission && r.TotalAmount.Equal(totalAmount) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (b *fakeBackend) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Report, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var all []*model.Report
	for _, r := range b.reports {
		if r.UserID == userID {
			copied := *r
			all = append(all, &copied)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// --- OutboxWriter ---

func (b *fakeBackend) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outbox = append(b.outbox, msg)
	return nil
}

// helpers

func (b *fakeBackend) entriesOf(orderID, txType string) []*model.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.Report
	for _, r := range b.reports {
		if r.OrderID == orderID && r.TransactionType == txType {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out
}

func (b *fakeBackend) balance(userID int64) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[userID].WalletBalance
}

func (b *fakeBackend) outboxTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var topics []string
	for _, m := range b.outbox {
		topics = append(topics, m.Topic)
	}
	return topics
}

// fakeReference serves the reference-data interfaces from memory.
type fakeReference struct {
	providers     map[int64]*model.Provider
	apis          map[int64]*model.Api
	providerCodes map[string]string // "apiID/providerID"
	stateCodes    map[int64]string
	blocked       map[string]bool // "providerID/amount"
	routes        []*model.RouteSetting
	amountSwitch  map[int64]*model.AmountSwitch
	stateSwitch   map[string]*model.StateSwitch // "providerID/stateID"
	userSwitch    map[string]*model.UserSwitch  // "providerID/userID/stateID"
	schemes       map[int64]*model.Scheme
	commissions   map[string]*model.SchemeCommission // "schemeID/providerID"
}

func newFakeReference() *fakeReference {
	return &fakeReference{
		providers:     make(map[int64]*model.Provider),
		apis:          make(map[int64]*model.Api),
		providerCodes: make(map[string]string),
		stateCodes:    make(map[int64]string),
		blocked:       make(map[string]bool),
		amountSwitch:  make(map[int64]*model.AmountSwitch),
		stateSwitch:   make(map[string]*model.StateSwitch),
		userSwitch:    make(map[string]*model.UserSwitch),
		schemes:       make(map[int64]*model.Scheme),
		commissions:   make(map[string]*model.SchemeCommission),
	}
}

func (f *fakeReference) GetProvider(ctx context.Context, providerID int64) (*model.Provider, error) {
	p, ok := f.providers[providerID]
	if !ok {
		return nil, repository.ErrProviderNotFound
	}
	return p, nil
}

func (f *fakeReference) GetApi(ctx context.Context, apiID int64) (*model.Api, error) {
	a, ok := f.apis[apiID]
	if !ok {
		return nil, repository.ErrApiNotFound
	}
	return a, nil
}

func (f *fakeReference) GetProviderCode(ctx context.Context, apiID, providerID int64) (string, error) {
	return f.providerCodes[fmt.Sprintf("%d/%d", apiID, providerID)], nil
}

func (f *fakeReference) GetStateCode(ctx context.Context, stateID int64) (string, error) {
	return f.stateCodes[stateID], nil
}

func (f *fakeReference) IsAmountBlocked(ctx context.Context, providerID int64, amount decimal.Decimal) (bool, error) {
	return f.blocked[fmt.Sprintf("%d/%s", providerID, amount.String())], nil
}

func (f *fakeReference) GetRouteSettings(ctx context.Context) ([]*model.RouteSetting, error) {
	return f.routes, nil
}

func (f *fakeReference) GetAmountSwitch(ctx context.Context, providerID int64) (*model.AmountSwitch, error) {
	return f.amountSwitch[providerID], nil
}

func (f *fakeReference) GetStateSwitch(ctx context.Context, providerID, stateID int64) (*model.StateSwitch, error) {
	return f.stateSwitch[fmt.Sprintf("%d/%d", providerID, stateID)], nil
}

func (f *fakeReference) GetUserSwitch(ctx context.Context, providerID, userID, stateID int64) (*model.UserSwitch, error) {
	return f.userSwitch[fmt.Sprintf("%d/%d/%d", providerID, userID, stateID)], nil
}

func (f *fakeReference) GetScheme(ctx context.Context, schemeID int64) (*model.Scheme, error) {
	return f.schemes[schemeID], nil
}

func (f *fakeReference) GetSchemeCommission(ctx context.Context, schemeID, providerID int64) (*model.SchemeCommission, error) {
	return f.commissions[fmt.Sprintf("%d/%d", schemeID, providerID)], nil
}

// fakeExecutor returns scripted outcomes per api id and records the order
// of attempts.
type fakeExecutor struct {
	mu       sync.Mutex
	outcomes map[int64]Outcome
	calls    []int64
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{outcomes: make(map[int64]Outcome)}
}

func (f *fakeExecutor) Execute(ctx context.Context, apiID, providerID int64, order *model.Report) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiID)
	if out, ok := f.outcomes[apiID]; ok {
		return out
	}
	return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
}

// fakeSettler records settle/reverse calls.
type fakeSettler struct {
	settled  []string
	reversed []string
	err      error
}

func (f *fakeSettler) Settle(ctx context.Context, orderID string) error {
	if f.err != nil {
		return f.err
	}
	f.settled = append(f.settled, orderID)
	return nil
}

func (f *fakeSettler) Reverse(ctx context.Context, orderID string) error {
	if f.err != nil {
		return f.err
	}
	f.reversed = append(f.reversed, orderID)
	return nil
}
