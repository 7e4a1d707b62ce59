package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"rechargehub/internal/model"

	"gorm.io/gorm"
)

// RefundTask is the durable payload queued to the outbox when an
// immediate compensating credit fails.
type RefundTask struct {
	OrderReportID int64  `json:"order_report_id"`
	OrderID       string `json:"order_id"`
}

// RefundManager issues the compensating credit for a failed order. A
// refund is keyed on the order id, so retries cannot double-credit; when
// the immediate credit fails it is parked in the outbox and replayed by
// the refund retry job until it lands.
type RefundManager struct {
	ledger Ledger
	orders OrderStore
	outbox OutboxWriter
	db     *gorm.DB
}

func NewRefundManager(ledger Ledger, orders OrderStore, outbox OutboxWriter, db *gorm.DB) *RefundManager {
	return &RefundManager{ledger: ledger, orders: orders, outbox: outbox, db: db}
}

func (r *RefundManager) RefundOrder(ctx context.Context, order *model.Report) error {
	existing, err := r.orders.GetRefundEntry(ctx, order.OrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Printf("[Refund] order %s already refunded by entry %d, skipping", order.OrderID, existing.ID)
		return nil
	}

	entry := &model.Report{
		OrderID:         order.OrderID,
		ParentID:        order.ID,
		ProviderID:      order.ProviderID,
		ServiceID:       order.ServiceID,
		StateID:         order.StateID,
		ApiID:           order.ApiID,
		Number:          order.Number,
		TotalAmount:     order.TotalAmount,
		Commission:      order.Commission,
		TransactionType: model.TransactionTypeRefund,
		Status:          model.StatusSuccess,
		Remark:          fmt.Sprintf("Refund for order %s", order.OrderID),
	}
	if _, err := r.ledger.Credit(ctx, order.UserID, order.TotalAmount, entry); err != nil {
		log.Printf("[Refund] immediate credit failed for order %s: %v, parking retry task", order.OrderID, err)
		return r.enqueueRetry(ctx, order)
	}
	log.Printf("[Refund] order %s refunded %s to user %d", order.OrderID, order.TotalAmount, order.UserID)
	return nil
}

func (r *RefundManager) enqueueRetry(ctx context.Context, order *model.Report) error {
	payload, err := json.Marshal(RefundTask{OrderReportID: order.ID, OrderID: order.OrderID})
	if err != nil {
		return err
	}
	msg := &model.OutboxMessage{
		MessageKey: order.OrderID,
		Topic:      model.TopicRefundRetry,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := r.outbox.Create(ctx, r.db, msg); err != nil {
		// Both the credit and the park failed. The pending sweep's stale
		// scan is the last net; log loudly so operators see it.
		log.Printf("[Refund] CRITICAL: could not park refund task for order %s: %v", order.OrderID, err)
		return err
	}
	return nil
}

// RetryTask re-runs one parked refund. Used by the refund retry job.
func (r *RefundManager) RetryTask(ctx context.Context, payload string) error {
	var task RefundTask
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return fmt.Errorf("bad refund task payload: %w", err)
	}
	order, err := r.orders.GetByID(ctx, task.OrderReportID)
	if err != nil {
		return err
	}
	return r.RefundOrder(ctx, order)
}
