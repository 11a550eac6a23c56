/*
expense.go - Expense and split mutations

PURPOSE:
  Creating, editing, and deleting expenses, and managing the splits under
  them. Split amounts are resolved once at creation time; editing an
  expense later never cascades into its splits.

BULK SPLIT CREATION:
  CreateExpense accepts the splits inline. Entries whose user does not
  exist are logged and skipped rather than failing the expense. A
  percentage without an amount resolves to expense.amount * pct / 100 at
  that moment.
*/
package split

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evensteven/ledger-engine/ledger"
)

// =============================================================================
// INPUTS
// =============================================================================

// SplitInput is one requested share of an expense. Exactly one of Amount or
// Percentage should be set; when both are present Amount wins.
type SplitInput struct {
	UserID     ledger.UserID
	Amount     *decimal.Decimal
	Percentage *decimal.Decimal
}

type CreateExpenseInput struct {
	GroupID     ledger.GroupID
	PaidBy      ledger.UserID
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Splits      []SplitInput
}

// UpdateExpenseInput carries the editable fields; nil means leave unchanged.
type UpdateExpenseInput struct {
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
}

// =============================================================================
// EXPENSES
// =============================================================================

var oneHundred = decimal.NewFromInt(100)

// CreateExpense writes the expense and its splits and recomputes the payer
// and every split user, in one transaction.
func (s *Service) CreateExpense(ctx context.Context, in CreateExpenseInput) (*ledger.Expense, error) {
	group, err := s.requireGroup(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireActiveMember(ctx, in.GroupID, in.PaidBy); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.Invalid("amount", "amount must be positive", ledger.ErrInvalidAmount)
	}

	now := s.now()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	expense := &ledger.Expense{
		ID:          ledger.ExpenseID(uuid.NewString()),
		GroupID:     in.GroupID,
		PaidBy:      in.PaidBy,
		Amount:      ledger.Money{Value: in.Amount, Currency: group.Currency},
		Description: in.Description,
		Date:        date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	affected := []ledger.UserID{in.PaidBy}
	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		for _, si := range in.Splits {
			split, err := s.buildSplit(ctx, tx, expense, si)
			if err != nil {
				return err
			}
			if split == nil {
				continue // unknown user, skipped
			}
			if err := tx.CreateSplit(ctx, split); err != nil {
				return fmt.Errorf("create split: %w", err)
			}
			affected = append(affected, split.UserID)
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, affected...)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// buildSplit resolves one split input against the expense. Returns (nil, nil)
// when the user does not exist.
func (s *Service) buildSplit(ctx context.Context, tx ledger.Store, expense *ledger.Expense, in SplitInput) (*ledger.ExpenseSplit, error) {
	user, err := tx.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		slog.Warn("skipping split for unknown user",
			"expense_id", expense.ID, "user_id", in.UserID)
		return nil, nil
	}

	var amount ledger.Money
	switch {
	case in.Amount != nil:
		amount = ledger.Money{Value: *in.Amount, Currency: expense.Amount.Currency}
	case in.Percentage != nil:
		amount = expense.Amount.Mul(*in.Percentage).Div(oneHundred)
	default:
		return nil, ledger.Invalid("splits", "split needs an amount or a percentage", ledger.ErrInvalidAmount)
	}
	if amount.IsNegative() {
		return nil, ledger.Invalid("splits", "split amount must not be negative", ledger.ErrInvalidAmount)
	}

	return &ledger.ExpenseSplit{
		ID:         ledger.SplitID(uuid.NewString()),
		ExpenseID:  expense.ID,
		UserID:     in.UserID,
		Amount:     amount,
		Percentage: in.Percentage,
		CreatedAt:  s.now(),
	}, nil
}

// UpdateExpense edits amount, description, or date. Splits are deliberately
// untouched; a percentage split keeps the amount it resolved to at creation.
func (s *Service) UpdateExpense(ctx context.Context, id ledger.ExpenseID, in UpdateExpenseInput) (*ledger.Expense, error) {
	expense, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ledger.NotFound("expense", string(id))
	}
	group, err := s.requireGroup(ctx, expense.GroupID)
	if err != nil {
		return nil, err
	}

	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, ledger.Invalid("amount", "amount must be positive", ledger.ErrInvalidAmount)
		}
		expense.Amount = ledger.Money{Value: *in.Amount, Currency: group.Currency}
	}
	if in.Description != nil {
		expense.Description = *in.Description
	}
	if in.Date != nil {
		expense.Date = *in.Date
	}
	expense.UpdatedAt = s.now()

	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.UpdateExpense(ctx, expense); err != nil {
			return err
		}
		splits, err := tx.ExpenseSplits(ctx, id)
		if err != nil {
			return err
		}
		affected := []ledger.UserID{expense.PaidBy}
		for _, sp := range splits {
			affected = append(affected, sp.UserID)
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, affected...)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// DeleteExpense removes the expense and its splits, then recomputes every
// active member. The cascade makes the affected set unknowable up front, so
// the whole group is refreshed.
func (s *Service) DeleteExpense(ctx context.Context, id ledger.ExpenseID) error {
	expense, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if expense == nil {
		return ledger.NotFound("expense", string(id))
	}
	group, err := s.requireGroup(ctx, expense.GroupID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeleteExpense(ctx, id); err != nil {
			return err
		}
		_, err := ledger.NewRecomputer(tx).RecomputeAll(ctx, group)
		return err
	})
}

// =============================================================================
// SPLITS
// =============================================================================

// AddSplit attaches one more share to an existing expense.
func (s *Service) AddSplit(ctx context.Context, expenseID ledger.ExpenseID, in SplitInput) (*ledger.ExpenseSplit, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ledger.NotFound("expense", string(expenseID))
	}
	group, err := s.requireGroup(ctx, expense.GroupID)
	if err != nil {
		return nil, err
	}

	var split *ledger.ExpenseSplit
	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		split, err = s.buildSplit(ctx, tx, expense, in)
		if err != nil {
			return err
		}
		if split == nil {
			return ledger.NotFound("user", string(in.UserID))
		}
		if err := tx.CreateSplit(ctx, split); err != nil {
			return err
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, expense.PaidBy, split.UserID)
	})
	if err != nil {
		return nil, err
	}
	return split, nil
}

// RemoveSplit deletes one share and recomputes the split's user and the
// expense payer.
func (s *Service) RemoveSplit(ctx context.Context, id ledger.SplitID) error {
	split, err := s.store.GetSplit(ctx, id)
	if err != nil {
		return err
	}
	if split == nil {
		return ledger.NotFound("split", string(id))
	}
	expense, err := s.store.GetExpense(ctx, split.ExpenseID)
	if err != nil {
		return err
	}
	if expense == nil {
		return ledger.NotFound("expense", string(split.ExpenseID))
	}
	group, err := s.requireGroup(ctx, expense.GroupID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeleteSplit(ctx, id); err != nil {
			return err
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, expense.PaidBy, split.UserID)
	})
}
