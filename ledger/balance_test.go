package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evensteven/ledger-engine/ledger"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func money(v string) ledger.Money {
	return ledger.Money{Value: ledger.MustParseDecimal(v), Currency: "USD"}
}

func expense(id, paidBy, amount string) ledger.Expense {
	return ledger.Expense{
		ID:      ledger.ExpenseID(id),
		GroupID: "g1",
		PaidBy:  ledger.UserID(paidBy),
		Amount:  money(amount),
	}
}

func splitOf(expenseID, user, amount string) ledger.ExpenseSplit {
	return ledger.ExpenseSplit{
		ID:        ledger.SplitID(expenseID + "-" + user),
		ExpenseID: ledger.ExpenseID(expenseID),
		UserID:    ledger.UserID(user),
		Amount:    money(amount),
	}
}

func payment(from, to, amount string) ledger.Payment {
	return ledger.Payment{
		ID:       ledger.PaymentID("p-" + from + "-" + to + "-" + amount),
		FromUser: ledger.UserID(from),
		ToUser:   ledger.UserID(to),
		GroupID:  "g1",
		Amount:   money(amount),
	}
}

func settlement(from, to, amount string) ledger.Settlement {
	return ledger.Settlement{
		ID:       ledger.SettlementID("s-" + from + "-" + to + "-" + amount),
		FromUser: ledger.UserID(from),
		ToUser:   ledger.UserID(to),
		GroupID:  "g1",
		Amount:   money(amount),
	}
}

func balanceOf(set ledger.EventSet, user string) ledger.Money {
	return ledger.CalculateBalance(set, ledger.UserID(user), "USD")
}

// =============================================================================
// BALANCE FORMULA
// =============================================================================

func TestCalculateBalance_ExpenseWithoutSplits_CreditsPayerOnly(t *testing.T) {
	// GIVEN: A pays a 30 expense with no splits
	// WHEN: Balances are computed
	// THEN: A is owed 30, nobody is charged

	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
	}

	assert.True(t, balanceOf(set, "A").Equal(money("30")))
	assert.True(t, balanceOf(set, "B").IsZero())
}

func TestCalculateBalance_EvenThreeWaySplit(t *testing.T) {
	// GIVEN: A pays 30, split 10/10/10 across A, B, C
	// WHEN: Balances are computed
	// THEN: A is owed 20; B and C each owe 10

	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits: []ledger.ExpenseSplit{
			splitOf("e1", "A", "10"),
			splitOf("e1", "B", "10"),
			splitOf("e1", "C", "10"),
		},
	}

	assert.True(t, balanceOf(set, "A").Equal(money("20")))
	assert.True(t, balanceOf(set, "B").Equal(money("-10")))
	assert.True(t, balanceOf(set, "C").Equal(money("-10")))
}

func TestCalculateBalance_PaymentReducesDebt(t *testing.T) {
	// GIVEN: the three-way split above, then B pays A 10
	// WHEN: Balances are computed
	// THEN: B is settled, A is owed only C's 10

	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits: []ledger.ExpenseSplit{
			splitOf("e1", "A", "10"),
			splitOf("e1", "B", "10"),
			splitOf("e1", "C", "10"),
		},
		Payments: []ledger.Payment{payment("B", "A", "10")},
	}

	assert.True(t, balanceOf(set, "A").Equal(money("10")))
	assert.True(t, balanceOf(set, "B").IsZero())
	assert.True(t, balanceOf(set, "C").Equal(money("-10")))
}

func TestCalculateBalance_SettlementActsLikePayment(t *testing.T) {
	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits: []ledger.ExpenseSplit{
			splitOf("e1", "B", "15"),
			splitOf("e1", "C", "15"),
		},
		Settlements: []ledger.Settlement{settlement("C", "A", "15")},
	}

	assert.True(t, balanceOf(set, "A").Equal(money("15")))
	assert.True(t, balanceOf(set, "C").IsZero())
}

func TestCalculateBalance_ClosedGroupSumsToZero(t *testing.T) {
	// GIVEN: events that only reference members of the group
	// WHEN: all member balances are summed
	// THEN: the total is exactly zero

	set := ledger.EventSet{
		Expenses: []ledger.Expense{
			expense("e1", "A", "90"),
			expense("e2", "B", "42.50"),
		},
		Splits: []ledger.ExpenseSplit{
			splitOf("e1", "A", "30"),
			splitOf("e1", "B", "30"),
			splitOf("e1", "C", "30"),
			splitOf("e2", "A", "21.25"),
			splitOf("e2", "C", "21.25"),
		},
		Payments:    []ledger.Payment{payment("C", "A", "12.75")},
		Settlements: []ledger.Settlement{settlement("B", "A", "5")},
	}

	total := money("0")
	for _, u := range []string{"A", "B", "C"} {
		total = total.Add(balanceOf(set, u))
	}
	assert.True(t, total.IsZero(), "closed group must net to zero, got %s", total.StringFixed())
}

func TestCalculateBalance_Idempotent(t *testing.T) {
	// Same event set, same user, no writes in between: same answer.
	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits:   []ledger.ExpenseSplit{splitOf("e1", "B", "10")},
	}

	first := balanceOf(set, "B")
	second := balanceOf(set, "B")
	assert.True(t, first.Equal(second))
}

func TestCalculateBalance_UnknownUserIsZero(t *testing.T) {
	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
	}
	assert.True(t, balanceOf(set, "nobody").IsZero())
}

// =============================================================================
// BREAKDOWN
// =============================================================================

func TestBreakdown_ComponentsAndNetAgree(t *testing.T) {
	set := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits: []ledger.ExpenseSplit{
			splitOf("e1", "A", "10"),
			splitOf("e1", "B", "20"),
		},
		Payments:    []ledger.Payment{payment("B", "A", "5")},
		Settlements: []ledger.Settlement{settlement("A", "B", "2")},
	}

	b := ledger.Breakdown(set, "A", "USD")
	assert.True(t, b.ExpensesPaid.Equal(money("30")))
	assert.True(t, b.ExpenseSharesOwed.Equal(money("10")))
	assert.True(t, b.PaymentsReceived.Equal(money("5")))
	assert.True(t, b.SettlementsMade.Equal(money("2")))

	// 30 - 10 + 0 - 5 + 2 - 0 = 17
	assert.True(t, b.Net().Equal(money("17")))
	assert.True(t, b.Net().Equal(balanceOf(set, "A")))
}

func TestBreakdown_AdditiveOverEvents(t *testing.T) {
	// GIVEN: two event sets over the same group
	// WHEN: computed separately and together
	// THEN: balances add up

	setA := ledger.EventSet{
		Expenses: []ledger.Expense{expense("e1", "A", "30")},
		Splits:   []ledger.ExpenseSplit{splitOf("e1", "B", "30")},
	}
	setB := ledger.EventSet{
		Payments: []ledger.Payment{payment("B", "A", "12")},
	}
	combined := ledger.EventSet{
		Expenses: setA.Expenses,
		Splits:   setA.Splits,
		Payments: setB.Payments,
	}

	sum := balanceOf(setA, "B").Add(balanceOf(setB, "B"))
	assert.True(t, sum.Equal(balanceOf(combined, "B")))
}
