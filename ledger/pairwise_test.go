package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evensteven/ledger-engine/ledger"
)

func between(set ledger.EventSet, u1, u2 string) ledger.Money {
	return ledger.BalanceBetween(set, ledger.UserID(u1), ledger.UserID(u2), "USD")
}

func TestBalanceBetween_SplitOnOthersExpense(t *testing.T) {
	// GIVEN: A pays 30, B has a 10 split on it
	// WHEN: the pairwise balance is computed
	// THEN: B owes A 10, symmetric when reversed

	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits:   []ledger.ExpenseSplit{splitOf("e1", "B", "10")},
	}

	assert.True(t, between(set, "A", "B").Equal(money("10")))
	assert.True(t, between(set, "B", "A").Equal(money("-10")))
}

func TestBalanceBetween_PaymentZeroesTheDebt(t *testing.T) {
	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits:   []ledger.ExpenseSplit{splitOf("e1", "B", "10")},
		Payments: []ledger.Payment{payment("B", "A", "10")},
	}

	assert.True(t, between(set, "A", "B").IsZero())
}

func TestBalanceBetween_IgnoresThirdParties(t *testing.T) {
	// GIVEN: C is heavily involved with both A and B
	// WHEN: the A-B pairwise balance is computed
	// THEN: C's events change nothing between A and B

	base := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits:   []ledger.ExpenseSplit{splitOf("e1", "B", "10")},
	}
	noisy := ledger.EventSet{
		Expenses: append([]ledger.Expense{expense("e2", "C", "100")}, base.Expenses...),
		Splits: append([]ledger.ExpenseSplit{
			splitOf("e2", "A", "50"),
			splitOf("e2", "B", "50"),
		}, base.Splits...),
		Payments: []ledger.Payment{payment("A", "C", "50")},
	}

	assert.True(t, between(base, "A", "B").Equal(between(noisy, "A", "B")))
}

func TestBalanceBetween_NotDifferenceOfAbsolutes(t *testing.T) {
	// A is owed 20 absolute, B owes 10 absolute, but only 10 of that links
	// A and B directly.
	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits: []ledger.ExpenseSplit{
			splitOf("e1", "A", "10"),
			splitOf("e1", "B", "10"),
			splitOf("e1", "C", "10"),
		},
	}

	assert.True(t, balanceOf(set, "A").Equal(money("20")))
	assert.True(t, between(set, "A", "B").Equal(money("10")))
}

func TestBalanceBetween_SettlementsBothDirections(t *testing.T) {
	set := ledger.EventSet{
		Settlements: []ledger.Settlement{
			settlement("B", "A", "25"),
			settlement("A", "B", "10"),
		},
	}

	// B sent A 25, A sent B 10: net 15 of prepayment from B, so the
	// pairwise balance says A owes B 15 back.
	assert.True(t, between(set, "A", "B").Equal(money("-15")))
}
