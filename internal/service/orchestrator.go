package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"rechargehub/internal/config"
	"rechargehub/internal/model"
	"rechargehub/internal/repository"
	"rechargehub/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubmitRequest is one recharge attempt as the handler hands it over.
type SubmitRequest struct {
	UserID     int64
	ProviderID int64
	Amount     decimal.Decimal
	Number     string
	Pin        string
	StateID    int64
}

// SubmitResult is what the buyer sees: the synchronous order state and,
// when the order already failed, whether the money is back.
type SubmitResult struct {
	Status     string `json:"status"`
	OrderID    string `json:"order_id"`
	OperatorID string `json:"operator_id,omitempty"`
	Remark     string `json:"remark,omitempty"`
	Refunded   bool   `json:"refunded"`
}

// OrderResultEvent is the payload published for every order reaching a
// synchronous outcome.
type OrderResultEvent struct {
	OrderID    string `json:"order_id"`
	UserID     int64  `json:"user_id"`
	ProviderID int64  `json:"provider_id"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	OperatorID string `json:"operator_id,omitempty"`
}

// OrderOrchestrator drives one recharge end to end: validate, route,
// debit, execute upstream with backups, record the outcome and settle or
// compensate. The wallet lock is held only across the debit; the slow
// upstream call runs with the buyer's money already escrowed in the
// Pending entry.
type OrderOrchestrator struct {
	ledger   Ledger
	users    UserDirectory
	router   Router
	routes   RouteReader
	blocks   BlockList
	orders   OrderStore
	executor Executor
	settler  Settler
	refunder Refunder
	locker   Locker
	outbox   OutboxWriter
	db       *gorm.DB
	business config.BusinessConfig
	topics   config.KafkaTopicConfig
}

func NewOrderOrchestrator(
	ledger Ledger,
	users UserDirectory,
	router Router,
	routes RouteReader,
	blocks BlockList,
	orders OrderStore,
	executor Executor,
	settler Settler,
	refunder Refunder,
	locker Locker,
	outbox OutboxWriter,
	db *gorm.DB,
	business config.BusinessConfig,
	topics config.KafkaTopicConfig,
) *OrderOrchestrator {
	return &OrderOrchestrator{
		ledger:   ledger,
		users:    users,
		router:   router,
		routes:   routes,
		blocks:   blocks,
		orders:   orders,
		executor: executor,
		settler:  settler,
		refunder: refunder,
		locker:   locker,
		outbox:   outbox,
		db:       db,
		business: business,
		topics:   topics,
	}
}

func (o *OrderOrchestrator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	user, err := o.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != model.UserStatusActive {
		return nil, ErrUserDisabled
	}
	if user.TPin != req.Pin {
		return nil, ErrInvalidPin
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	// Fast-fail before routing; the authoritative check happens again
	// under the row lock inside the debit.
	if user.WalletBalance.Sub(req.Amount).LessThan(user.MinBalance) {
		return nil, repository.ErrInsufficientBalance
	}

	provider, err := o.routes.GetProvider(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if provider.Status != model.ProviderStatusEnabled {
		return nil, ErrProviderNotFound
	}

	blocked, err := o.blocks.IsAmountBlocked(ctx, req.ProviderID, req.Amount)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrAmountBlocked
	}

	stateID := req.StateID
	if stateID == 0 {
		stateID = o.business.DefaultStateID
	}

	apiID, err := o.router.SelectApi(ctx, req.UserID, req.ProviderID, stateID, req.Amount)
	if err != nil {
		return nil, err
	}

	orderID, err := o.uniqueOrderID(ctx)
	if err != nil {
		return nil, err
	}

	entry := &model.Report{
		OrderID:         orderID,
		ProviderID:      req.ProviderID,
		ServiceID:       provider.ServiceID,
		StateID:         stateID,
		ApiID:           apiID,
		Number:          req.Number,
		TotalAmount:     req.Amount,
		TransactionType: model.TransactionTypeRecharge,
		Status:          model.StatusPending,
		Remark:          "Transaction Pending",
	}
	if err := o.debitUnderLock(ctx, req.UserID, req.Amount, entry); err != nil {
		return nil, err
	}
	log.Printf("[Order] %s debited %s from user %d, executing via api %d", orderID, req.Amount, req.UserID, apiID)

	outcome := o.executeWithFallback(ctx, provider, apiID, entry)

	update := repository.OutcomeUpdate{
		Status:        outcome.Status,
		OperatorID:    outcome.OperatorID,
		ApiOperatorID: outcome.ApiOperatorID,
		Remark:        outcome.Remark,
	}
	if err := o.orders.UpdatePendingOutcome(ctx, entry.ID, update); err != nil {
		if errors.Is(err, repository.ErrAlreadyTerminal) {
			// A callback won the race. Report the state it set.
			settled, gerr := o.orders.GetByID(ctx, entry.ID)
			if gerr != nil {
				return nil, gerr
			}
			return o.resultFor(ctx, settled), nil
		}
		return nil, err
	}
	entry.Status = outcome.Status
	entry.OperatorID = outcome.OperatorID
	entry.Remark = outcome.Remark

	refunded := false
	switch outcome.Status {
	case model.StatusSuccess:
		if err := o.settler.Settle(ctx, orderID); err != nil {
			// The order itself is settled; commission is repairable from
			// the ledger, so the buyer is not failed over it.
			log.Printf("[Order] %s commission settlement failed: %v", orderID, err)
		}
	case model.StatusFailed:
		if err := o.refunder.RefundOrder(ctx, entry); err != nil {
			log.Printf("[Order] %s refund failed: %v", orderID, err)
		} else {
			refunded = true
		}
	}

	o.publishResult(ctx, entry)

	res := &SubmitResult{
		Status:     outcome.Status,
		OrderID:    orderID,
		OperatorID: outcome.OperatorID,
		Remark:     outcome.Remark,
		Refunded:   refunded,
	}
	return res, nil
}

// debitUnderLock escrows the order amount. The distributed lock spans only
// this read-modify-write, never the upstream call.
func (o *OrderOrchestrator) debitUnderLock(ctx context.Context, userID int64, amount decimal.Decimal, entry *model.Report) error {
	release, err := o.locker.AcquireWallet(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	_, err = o.ledger.Debit(ctx, userID, amount, entry)
	return err
}

// executeWithFallback tries the routed API, then the provider's backups in
// order, stopping at the first Success. The last attempt's outcome stands:
// an order whose final attempt came back Pending stays Pending for the
// callback or the sweep to resolve.
func (o *OrderOrchestrator) executeWithFallback(ctx context.Context, provider *model.Provider, apiID int64, entry *model.Report) Outcome {
	candidates := []int64{apiID}
	for _, backup := range provider.BackupApiIDs() {
		if backup != apiID {
			candidates = append(candidates, backup)
		}
	}

	var outcome Outcome
	for i, id := range candidates {
		if i > 0 {
			if err := o.orders.UpdatePendingApiID(ctx, entry.ID, id); err != nil {
				if errors.Is(err, repository.ErrAlreadyTerminal) {
					// A callback resolved the order mid-fallback; its
					// verdict stands.
					log.Printf("[Order] %s resolved by callback during fallback, stopping", entry.OrderID)
					return outcome
				}
				log.Printf("[Order] %s could not switch to backup api %d: %v", entry.OrderID, id, err)
				return outcome
			}
			entry.ApiID = id
			log.Printf("[Order] %s falling back to backup api %d", entry.OrderID, id)
		}

		callCtx, cancel := context.WithTimeout(ctx, o.business.UpstreamTimeout())
		outcome = o.executor.Execute(callCtx, id, provider.ID, entry)
		cancel()

		if outcome.Status == model.StatusSuccess {
			return outcome
		}
	}
	return outcome
}

func (o *OrderOrchestrator) uniqueOrderID(ctx context.Context) (string, error) {
	attempts := o.business.OrderIDMaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		id := idgen.OrderID()
		exists, err := o.orders.OrderIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique order id after %d attempts", attempts)
}

func (o *OrderOrchestrator) publishResult(ctx context.Context, order *model.Report) {
	payload, err := json.Marshal(OrderResultEvent{
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		ProviderID: order.ProviderID,
		Amount:     order.TotalAmount.String(),
		Status:     order.Status,
		OperatorID: order.OperatorID,
	})
	if err != nil {
		log.Printf("[Order] %s could not marshal result event: %v", order.OrderID, err)
		return
	}
	msg := &model.OutboxMessage{
		MessageKey: order.OrderID,
		Topic:      o.topics.OrderResult,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := o.outbox.Create(ctx, o.db, msg); err != nil {
		log.Printf("[Order] %s could not enqueue result event: %v", order.OrderID, err)
	}
}

func (o *OrderOrchestrator) resultFor(ctx context.Context, order *model.Report) *SubmitResult {
	refund, err := o.orders.GetRefundEntry(ctx, order.OrderID)
	if err != nil {
		log.Printf("[Order] %s refund lookup failed: %v", order.OrderID, err)
	}
	return &SubmitResult{
		Status:     order.Status,
		OrderID:    order.OrderID,
		OperatorID: order.OperatorID,
		Remark:     order.Remark,
		Refunded:   refund != nil,
	}
}
