/*
transfer.go - Payment and settlement mutations

PURPOSE:
  Direct transfers between users. A payment is the everyday "I sent you
  money" record; a settlement is the same thing recorded as the outcome of
  a settle-up flow. Both are validated identically where the rules overlap
  and both recompute the two parties when group-scoped.

VALIDATION:
  - amount must be strictly positive
  - payer and recipient must differ
  - payments additionally reject dates in the future
  All checks run before any write; a rejected transfer leaves no trace.
*/
package split

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evensteven/ledger-engine/ledger"
)

// =============================================================================
// INPUTS
// =============================================================================

// TransferInput is shared by payments and settlements. GroupID may be empty
// for a transfer outside any group; those never touch group balances.
// Currency is only consulted when GroupID is empty, otherwise the group's
// currency applies.
type TransferInput struct {
	FromUser    ledger.UserID
	ToUser      ledger.UserID
	GroupID     ledger.GroupID
	Amount      decimal.Decimal
	Currency    string
	Description string
	Date        time.Time
}

// validate runs the shared transfer checks and resolves group and currency.
// The returned group is nil for an ungrouped transfer.
func (s *Service) validateTransfer(ctx context.Context, in TransferInput) (*ledger.Group, string, error) {
	if !in.Amount.IsPositive() {
		return nil, "", ledger.Invalid("amount", "amount must be positive", ledger.ErrInvalidAmount)
	}
	if in.FromUser == in.ToUser {
		return nil, "", ledger.Invalid("to_user", "payer and recipient must differ", ledger.ErrSelfTransfer)
	}

	if in.GroupID == "" {
		currency := in.Currency
		if currency == "" {
			currency = "USD"
		}
		return nil, currency, nil
	}

	group, err := s.requireGroup(ctx, in.GroupID)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.requireActiveMember(ctx, in.GroupID, in.FromUser); err != nil {
		return nil, "", err
	}
	if _, err := s.requireActiveMember(ctx, in.GroupID, in.ToUser); err != nil {
		return nil, "", err
	}
	return group, group.Currency, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment validates and writes a payment, recomputing both parties
// when the payment is group-scoped.
func (s *Service) RecordPayment(ctx context.Context, in TransferInput) (*ledger.Payment, error) {
	group, currency, err := s.validateTransfer(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	// A payment dated after today would silently pre-credit a debt.
	if date.After(endOfDay(now)) {
		return nil, ledger.Invalid("date", "payment date cannot be in the future", ledger.ErrFutureDate)
	}

	payment := &ledger.Payment{
		ID:          ledger.PaymentID(uuid.NewString()),
		FromUser:    in.FromUser,
		ToUser:      in.ToUser,
		GroupID:     in.GroupID,
		Amount:      ledger.Money{Value: in.Amount, Currency: currency},
		Description: in.Description,
		Date:        date,
		CreatedAt:   now,
	}

	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if group == nil {
			return nil
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, in.FromUser, in.ToUser)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// DeletePayment removes the payment and recomputes both parties.
func (s *Service) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if payment == nil {
		return ledger.NotFound("payment", string(id))
	}

	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}
		if payment.GroupID == "" {
			return nil
		}
		group, err := tx.GetGroup(ctx, payment.GroupID)
		if err != nil || group == nil {
			return err
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, payment.FromUser, payment.ToUser)
	})
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// RecordSettlement validates and writes a settlement. All validation runs
// before any write. Settlements have no future-date rule; a settle-up flow
// always stamps the moment it concluded.
func (s *Service) RecordSettlement(ctx context.Context, in TransferInput) (*ledger.Settlement, error) {
	group, currency, err := s.validateTransfer(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	settledAt := in.Date
	if settledAt.IsZero() {
		settledAt = now
	}
	settlement := &ledger.Settlement{
		ID:          ledger.SettlementID(uuid.NewString()),
		FromUser:    in.FromUser,
		ToUser:      in.ToUser,
		GroupID:     in.GroupID,
		Amount:      ledger.Money{Value: in.Amount, Currency: currency},
		Description: in.Description,
		SettledAt:   settledAt,
		CreatedAt:   now,
	}

	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateSettlement(ctx, settlement); err != nil {
			return fmt.Errorf("create settlement: %w", err)
		}
		if group == nil {
			return nil
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, in.FromUser, in.ToUser)
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// DeleteSettlement removes the settlement and recomputes both parties.
func (s *Service) DeleteSettlement(ctx context.Context, id ledger.SettlementID) error {
	settlement, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		return err
	}
	if settlement == nil {
		return ledger.NotFound("settlement", string(id))
	}

	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeleteSettlement(ctx, id); err != nil {
			return err
		}
		if settlement.GroupID == "" {
			return nil
		}
		group, err := tx.GetGroup(ctx, settlement.GroupID)
		if err != nil || group == nil {
			return err
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, settlement.FromUser, settlement.ToUser)
	})
}

// endOfDay returns the last instant of t's calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
