/*
balance.go - Member balance calculation

PURPOSE:
  Computes one member's signed net position within a group from the group's
  full event set. This is the central calculation everything else builds on.

THE FORMULA:
  balance = Σ(expenses paid by user)
          - Σ(expense splits owed by user)
          + Σ(payments made by user)
          - Σ(payments received by user)
          + Σ(settlements made by user)
          - Σ(settlements received by user)

SIGN CONVENTION:
  Positive = the member is owed money. Negative = the member owes money.

PURITY:
  CalculateBalance is a pure function over the current event set. Running it
  twice with no intervening writes yields the same result; running it for
  different users concurrently needs no coordination. There are no error
  conditions: a user with no matching events simply sums to zero.

SEE ALSO:
  - recompute.go: writes this result back to the cached membership balance
  - summary.go:   rolls this up across a whole group
*/
package ledger

import "context"

// =============================================================================
// BREAKDOWN - The six component sums behind a balance
// =============================================================================

// BalanceBreakdown carries the raw component sums of the balance formula,
// for detail views. All components are non-negative; the signs live in Net.
type BalanceBreakdown struct {
	ExpensesPaid        Money
	ExpenseSharesOwed   Money
	PaymentsMade        Money
	PaymentsReceived    Money
	SettlementsMade     Money
	SettlementsReceived Money
}

// Net folds the components into the signed balance.
func (b BalanceBreakdown) Net() Money {
	return b.ExpensesPaid.
		Sub(b.ExpenseSharesOwed).
		Add(b.PaymentsMade).
		Sub(b.PaymentsReceived).
		Add(b.SettlementsMade).
		Sub(b.SettlementsReceived)
}

// Breakdown computes the six component sums for one member.
func Breakdown(set EventSet, user UserID, currency string) BalanceBreakdown {
	b := BalanceBreakdown{
		ExpensesPaid:        ZeroMoney(currency),
		ExpenseSharesOwed:   ZeroMoney(currency),
		PaymentsMade:        ZeroMoney(currency),
		PaymentsReceived:    ZeroMoney(currency),
		SettlementsMade:     ZeroMoney(currency),
		SettlementsReceived: ZeroMoney(currency),
	}

	for _, e := range set.Expenses {
		if e.PaidBy == user {
			b.ExpensesPaid = b.ExpensesPaid.Add(e.Amount)
		}
	}
	for _, sp := range set.Splits {
		if sp.UserID == user {
			b.ExpenseSharesOwed = b.ExpenseSharesOwed.Add(sp.Amount)
		}
	}
	for _, p := range set.Payments {
		if p.FromUser == user {
			b.PaymentsMade = b.PaymentsMade.Add(p.Amount)
		}
		if p.ToUser == user {
			b.PaymentsReceived = b.PaymentsReceived.Add(p.Amount)
		}
	}
	for _, st := range set.Settlements {
		if st.FromUser == user {
			b.SettlementsMade = b.SettlementsMade.Add(st.Amount)
		}
		if st.ToUser == user {
			b.SettlementsReceived = b.SettlementsReceived.Add(st.Amount)
		}
	}
	return b
}

// CalculateBalance computes the member's signed balance from the event set.
func CalculateBalance(set EventSet, user UserID, currency string) Money {
	return Breakdown(set, user, currency).Net()
}

// =============================================================================
// CALCULATOR - Store-backed convenience wrapper
// =============================================================================

// Calculator loads a group's events and applies the balance formula.
type Calculator struct {
	Events EventStore
}

func NewCalculator(events EventStore) *Calculator {
	return &Calculator{Events: events}
}

// MemberBalance returns the member's current balance in the group.
func (c *Calculator) MemberBalance(ctx context.Context, group *Group, user UserID) (Money, error) {
	set, err := c.Events.GroupEvents(ctx, group.ID)
	if err != nil {
		return Money{}, err
	}
	return CalculateBalance(set, user, group.Currency), nil
}

// MemberBreakdown returns the member's balance with its six component sums.
func (c *Calculator) MemberBreakdown(ctx context.Context, group *Group, user UserID) (BalanceBreakdown, error) {
	set, err := c.Events.GroupEvents(ctx, group.ID)
	if err != nil {
		return BalanceBreakdown{}, err
	}
	return Breakdown(set, user, group.Currency), nil
}
