package service

import (
	"context"
	"testing"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerEnv struct {
	backend  *fakeBackend
	ref      *fakeReference
	settler  *fakeSettler
	refunder *RefundManager
	rec      *CallbackReconciler
}

func newReconcilerEnv() *reconcilerEnv {
	backend := newFakeBackend(buyer("100"))
	ref := newFakeReference()
	ref.apis[10] = &model.Api{
		ID:                   10,
		Status:               model.ApiStatusEnabled,
		CallbackSuccessValue: "SUCCESS",
		CallbackFailedValue:  "FAILURE",
		CallbackRefundValue:  "REFUND",
	}
	settler := &fakeSettler{}
	refunder := NewRefundManager(backend, backend, backend, nil)
	rec := NewCallbackReconciler(backend, ref, settler, refunder, backend, nil, testTopics())
	return &reconcilerEnv{backend: backend, ref: ref, settler: settler, refunder: refunder, rec: rec}
}

// placeOrder escrows one pending recharge for user 100 and returns it.
func (e *reconcilerEnv) placeOrder(t *testing.T, orderID string) *model.Report {
	t.Helper()
	entry := &model.Report{
		OrderID:         orderID,
		ProviderID:      1,
		ApiID:           10,
		Number:          "9876543210",
		TransactionType: model.TransactionTypeRecharge,
		Status:          model.StatusPending,
	}
	_, err := e.backend.Debit(context.Background(), 100, decimal.RequireFromString("50"), entry)
	require.NoError(t, err)
	return entry
}

func TestCallbackResolvesPendingToSuccess(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")

	err := env.rec.OnCallback(context.Background(), "RCH1", "SUCCESS", "OP-9", "UP-TX-1")
	require.NoError(t, err)

	order, err := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, order.Status)
	assert.Equal(t, "OP-9", order.OperatorID)
	assert.Equal(t, "UP-TX-1", order.ApiOperatorID)
	assert.Equal(t, 1, order.CallbackStatus)

	assert.Equal(t, []string{"RCH1"}, env.settler.settled)
	assert.Contains(t, env.backend.outboxTopics(), "recharge.order.result")
}

func TestCallbackResolvesPendingToFailedAndRefunds(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")
	assert.True(t, env.backend.balance(100).Equal(decimal.RequireFromString("50")))

	err := env.rec.OnCallback(context.Background(), "RCH1", "FAILURE", "", "")
	require.NoError(t, err)

	order, _ := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	assert.Equal(t, model.StatusFailed, order.Status)

	assert.True(t, env.backend.balance(100).Equal(decimal.RequireFromString("100")))
	assert.Len(t, env.backend.entriesOf("RCH1", model.TransactionTypeRefund), 1)
	assert.Empty(t, env.settler.settled)
}

func TestCallbackDuplicateIsNoOp(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")

	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "FAILURE", "", ""))
	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "FAILURE", "", ""))

	// One refund regardless of how many times the verdict is repeated.
	assert.Len(t, env.backend.entriesOf("RCH1", model.TransactionTypeRefund), 1)
	assert.True(t, env.backend.balance(100).Equal(decimal.RequireFromString("100")))
}

func TestCallbackConflictingVerdictIsDropped(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")

	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "SUCCESS", "OP-9", ""))
	// A plain failure after settlement must not move the order; only the
	// refund literal may.
	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "FAILURE", "", ""))

	order, _ := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	assert.Equal(t, model.StatusSuccess, order.Status)
	assert.Empty(t, env.backend.entriesOf("RCH1", model.TransactionTypeRefund))
}

func TestCallbackRefundSignalReversesSettledOrder(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")
	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "SUCCESS", "OP-9", ""))

	err := env.rec.OnCallback(context.Background(), "RCH1", "REFUND", "OP-9", "")
	require.NoError(t, err)

	order, _ := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	assert.Equal(t, model.StatusRefunded, order.Status)

	// Buyer made whole, commissions clawed back.
	assert.True(t, env.backend.balance(100).Equal(decimal.RequireFromString("100")))
	assert.Len(t, env.backend.entriesOf("RCH1", model.TransactionTypeRefund), 1)
	assert.Equal(t, []string{"RCH1"}, env.settler.reversed)
}

func TestCallbackRefundSignalFailsPendingOrder(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")

	err := env.rec.OnCallback(context.Background(), "RCH1", "REFUND", "", "")
	require.NoError(t, err)

	order, _ := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	assert.Equal(t, model.StatusFailed, order.Status)
	assert.True(t, env.backend.balance(100).Equal(decimal.RequireFromString("100")))
	assert.Empty(t, env.settler.reversed)
}

func TestCallbackRefundSignalAfterRefundIsNoOp(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")
	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "SUCCESS", "", ""))
	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "REFUND", "", ""))

	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "REFUND", "", ""))

	assert.Len(t, env.backend.entriesOf("RCH1", model.TransactionTypeRefund), 1)
	assert.Equal(t, []string{"RCH1"}, env.settler.reversed)
	assert.True(t, env.backend.balance(100).Equal(decimal.RequireFromString("100")))
}

func TestCallbackUnknownOrder(t *testing.T) {
	env := newReconcilerEnv()
	err := env.rec.OnCallback(context.Background(), "NOPE", "SUCCESS", "", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCallbackUnknownStatusIgnored(t *testing.T) {
	env := newReconcilerEnv()
	env.placeOrder(t, "RCH1")

	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "WAT", "", ""))

	order, _ := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	assert.Equal(t, model.StatusPending, order.Status)
}

func TestCallbackGenericLiterals(t *testing.T) {
	// An API without configured callback literals still understands the
	// common English words.
	env := newReconcilerEnv()
	env.ref.apis[10].CallbackSuccessValue = ""
	env.ref.apis[10].CallbackFailedValue = ""
	env.placeOrder(t, "RCH1")

	require.NoError(t, env.rec.OnCallback(context.Background(), "RCH1", "Success", "OP-3", ""))

	order, _ := env.backend.GetOrderByOrderID(context.Background(), "RCH1")
	assert.Equal(t, model.StatusSuccess, order.Status)
}
