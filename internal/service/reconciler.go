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

	"gorm.io/gorm"
)

// CallbackReconciler applies the upstream's asynchronous verdict to an
// order. Terminal entries are protected by conditional updates, so a late
// or duplicate callback degrades to a no-op; the one sanctioned way to
// move a settled order is the API's explicit refund signal.
type CallbackReconciler struct {
	orders   OrderStore
	apis     ApiReader
	settler  Settler
	refunder Refunder
	outbox   OutboxWriter
	db       *gorm.DB
	topics   config.KafkaTopicConfig
}

func NewCallbackReconciler(orders OrderStore, apis ApiReader, settler Settler, refunder Refunder, outbox OutboxWriter, db *gorm.DB, topics config.KafkaTopicConfig) *CallbackReconciler {
	return &CallbackReconciler{
		orders:   orders,
		apis:     apis,
		settler:  settler,
		refunder: refunder,
		outbox:   outbox,
		db:       db,
		topics:   topics,
	}
}

// OnCallback processes one upstream push. rawStatus is whatever literal
// the upstream sent; it is interpreted through the order's API callback
// mapping, never through the synchronous mapping.
func (c *CallbackReconciler) OnCallback(ctx context.Context, orderID, rawStatus, operatorID, transactionID string) error {
	order, err := c.orders.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	api, err := c.apis.GetApi(ctx, order.ApiID)
	if err != nil {
		return err
	}
	mapping := callbackMappingFromApi(api)

	if mapping.IsRefundSignal(rawStatus) {
		return c.handleRefundSignal(ctx, order, operatorID)
	}

	mapped := mapping.Classify(rawStatus)
	if mapped == "" {
		log.Printf("[Callback] order %s ignoring unknown status %q from api %d", orderID, rawStatus, order.ApiID)
		return nil
	}
	if mapped == model.StatusPending {
		return nil
	}

	if model.IsTerminalStatus(order.Status) {
		if mapped != order.Status {
			// Conflicting verdict on a settled order. Money has already
			// moved; only the explicit refund signal may undo it.
			log.Printf("[Callback] order %s already %s, dropping conflicting callback %s", orderID, order.Status, mapped)
		}
		return nil
	}

	update := repository.OutcomeUpdate{
		Status:         mapped,
		OperatorID:     operatorID,
		ApiOperatorID:  transactionID,
		Remark:         fmt.Sprintf("Transaction %s by callback", mapped),
		CallbackStatus: 1,
	}
	if err := c.orders.UpdatePendingOutcome(ctx, order.ID, update); err != nil {
		if errors.Is(err, repository.ErrAlreadyTerminal) {
			// Lost the race with the synchronous path; its verdict stands.
			return nil
		}
		return err
	}
	order.Status = mapped
	order.OperatorID = operatorID
	order.Remark = update.Remark
	log.Printf("[Callback] order %s resolved %s", orderID, mapped)

	switch mapped {
	case model.StatusSuccess:
		if err := c.settler.Settle(ctx, orderID); err != nil {
			log.Printf("[Callback] order %s commission settlement failed: %v", orderID, err)
		}
	case model.StatusFailed:
		if err := c.refunder.RefundOrder(ctx, order); err != nil {
			log.Printf("[Callback] order %s refund failed: %v", orderID, err)
		}
	}

	c.publishResult(ctx, order)
	return nil
}

// handleRefundSignal moves a settled order to Refunded: the sale is
// undone, the buyer is made whole and every commission paid on it is
// clawed back. On a still-pending order the signal simply fails it.
func (c *CallbackReconciler) handleRefundSignal(ctx context.Context, order *model.Report, operatorID string) error {
	switch order.Status {
	case model.StatusPending:
		update := repository.OutcomeUpdate{
			Status:         model.StatusFailed,
			OperatorID:     operatorID,
			Remark:         "Transaction Failed by refund callback",
			CallbackStatus: 1,
		}
		if err := c.orders.UpdatePendingOutcome(ctx, order.ID, update); err != nil {
			if errors.Is(err, repository.ErrAlreadyTerminal) {
				return nil
			}
			return err
		}
		order.Status = model.StatusFailed
		order.Remark = update.Remark
		if err := c.refunder.RefundOrder(ctx, order); err != nil {
			log.Printf("[Callback] order %s refund failed: %v", order.OrderID, err)
		}
		c.publishResult(ctx, order)
		return nil

	case model.StatusSuccess:
		if err := c.orders.MarkRefunded(ctx, nil, order.ID, "Refunded by upstream callback"); err != nil {
			if errors.Is(err, repository.ErrAlreadyTerminal) {
				return nil
			}
			return err
		}
		order.Status = model.StatusRefunded
		if err := c.refunder.RefundOrder(ctx, order); err != nil {
			log.Printf("[Callback] order %s refund credit failed: %v", order.OrderID, err)
		}
		if err := c.settler.Reverse(ctx, order.OrderID); err != nil {
			log.Printf("[Callback] order %s commission reversal failed: %v", order.OrderID, err)
		}
		log.Printf("[Callback] order %s refunded by upstream", order.OrderID)
		c.publishResult(ctx, order)
		return nil
	}

	// Already Failed or Refunded: the buyer has the money back.
	return nil
}

func (c *CallbackReconciler) publishResult(ctx context.Context, order *model.Report) {
	payload, err := json.Marshal(OrderResultEvent{
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		ProviderID: order.ProviderID,
		Amount:     order.TotalAmount.String(),
		Status:     order.Status,
		OperatorID: order.OperatorID,
	})
	if err != nil {
		log.Printf("[Callback] order %s could not marshal result event: %v", order.OrderID, err)
		return
	}
	msg := &model.OutboxMessage{
		MessageKey: order.OrderID,
		Topic:      c.topics.OrderResult,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := c.outbox.Create(ctx, c.db, msg); err != nil {
		log.Printf("[Callback] order %s could not enqueue result event: %v", order.OrderID, err)
	}
}
