package service

import (
	"context"
	"fmt"
	"log"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
)

// Commission waterfall depth: buyer's parent, grandparent, great-grandparent.
const maxCommissionLevels = 3

// CommissionEngine pays the ancestor chain its cut of a successful order
// and claws those credits back when the order is later reversed. All
// levels use the buying account's scheme, so one rate table governs the
// whole waterfall.
type CommissionEngine struct {
	ledger  Ledger
	users   UserDirectory
	schemes CommissionReader
	orders  OrderStore
}

func NewCommissionEngine(ledger Ledger, users UserDirectory, schemes CommissionReader, orders OrderStore) *CommissionEngine {
	return &CommissionEngine{ledger: ledger, users: users, schemes: schemes, orders: orders}
}

// Settle credits each eligible ancestor of the order's buyer. The chain
// stops early at the platform root, at an ancestor with a zero rate, or on
// the first ledger error; commission already paid is never rolled back by
// a later level failing.
func (c *CommissionEngine) Settle(ctx context.Context, orderID string) error {
	order, err := c.orders.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	buyer, err := c.users.GetByID(ctx, order.UserID)
	if err != nil {
		return err
	}
	if !buyer.HasParent() {
		return nil
	}

	rates, err := c.schemes.GetSchemeCommission(ctx, buyer.SchemeID, order.ProviderID)
	if err != nil {
		return err
	}
	if rates == nil {
		log.Printf("[Commission] no rate table for scheme %d provider %d, order %s pays none", buyer.SchemeID, order.ProviderID, orderID)
		return nil
	}
	scheme, err := c.schemes.GetScheme(ctx, buyer.SchemeID)
	if err != nil {
		return err
	}
	if scheme == nil || scheme.Status != model.SchemeStatusEnabled {
		return nil
	}

	ancestors, err := c.users.Ancestors(ctx, buyer.ID, maxCommissionLevels)
	if err != nil {
		return err
	}

	parentEntryID := order.ID
	for level, ancestor := range ancestors {
		amount := commissionAmount(rates, ancestor.RoleID, order.TotalAmount)
		if amount.LessThanOrEqual(decimal.Zero) {
			// A zero rate ends the waterfall; higher tiers never earn on
			// an order their descendant tier earns nothing on.
			break
		}

		entry := &model.Report{
			OrderID:         order.OrderID,
			ParentID:        parentEntryID,
			ProviderID:      order.ProviderID,
			ServiceID:       order.ServiceID,
			StateID:         order.StateID,
			ApiID:           order.ApiID,
			Number:          order.Number,
			TotalAmount:     order.TotalAmount,
			Commission:      amount,
			TransactionType: model.TransactionTypeCommission,
			Status:          model.StatusSuccess,
			Remark:          fmt.Sprintf("Commission for order %s level %d", order.OrderID, level+1),
		}
		created, err := c.ledger.Credit(ctx, ancestor.ID, amount, entry)
		if err != nil {
			log.Printf("[Commission] level %d credit failed for order %s user %d: %v", level+1, orderID, ancestor.ID, err)
			return err
		}
		parentEntryID = created.ID
	}
	return nil
}

// Reverse claws back every commission entry paid for the order. The debit
// skips the balance floor: the ancestor may have spent the credit already,
// and the claw-back must still post.
func (c *CommissionEngine) Reverse(ctx context.Context, orderID string) error {
	order, err := c.orders.GetOrderByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	entries, err := c.orders.GetCommissionEntries(ctx, orderID, order.TotalAmount)
	if err != nil {
		return err
	}

	for _, paid := range entries {
		reversal := &model.Report{
			OrderID:         paid.OrderID,
			ParentID:        paid.ID,
			ProviderID:      paid.ProviderID,
			ServiceID:       paid.ServiceID,
			StateID:         paid.StateID,
			ApiID:           paid.ApiID,
			Number:          paid.Number,
			TotalAmount:     paid.TotalAmount,
			Commission:      paid.Amount,
			TransactionType: model.TransactionTypeReverseCommission,
			Status:          model.StatusSuccess,
			Remark:          fmt.Sprintf("Reverse commission for order %s", orderID),
		}
		if _, err := c.ledger.ForceDebit(ctx, paid.UserID, paid.Amount, reversal); err != nil {
			log.Printf("[Commission] reversal failed for order %s entry %d: %v", orderID, paid.ID, err)
			return err
		}
	}
	return nil
}

// commissionAmount resolves one tier's earning on an order amount.
// Percent rates round half-up to two decimal places.
func commissionAmount(rates *model.SchemeCommission, roleID int, total decimal.Decimal) decimal.Decimal {
	amountType, value := rates.RateFor(roleID)
	switch amountType {
	case model.AmountTypeFlat:
		return value
	case model.AmountTypePercent:
		return total.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
	}
	return decimal.Zero
}
