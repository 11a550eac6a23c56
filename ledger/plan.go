/*
plan.go - Settlement suggestion planner

PURPOSE:
  Turns a set of signed net balances into a list of "A pays B amount X"
  suggestions that would bring every balance to zero.

ALGORITHM:
  Greedy pairing. Members are partitioned into debtors (negative balance)
  and creditors (positive balance), both in input order. Each debtor is
  walked against the creditor list in order, transferring
  min(debt remaining, credit remaining) at each step until the debt is
  cleared. The result is deterministic for a given input order.

  This does not minimize the number of transfers in every case. It is
  simple, stable, and good enough; an optimal plan is NP-hard in general.

SCOPE:
  The planner is pure and store-free. Callers assemble the NetBalance list
  (typically from a group summary) and render the suggestions.
*/
package ledger

// NetBalance is one member's signed position fed into the planner.
type NetBalance struct {
	UserID  UserID
	Name    string
	Balance Money
}

// Suggestion is one proposed transfer in a settlement plan.
type Suggestion struct {
	From     UserID
	To       UserID
	FromName string
	ToName   string
	Amount   Money
}

// SuggestSettlements produces a plan of transfers that zeroes out the given
// balances. Members already at zero are ignored. The input order is
// preserved: debtors settle in order, each against creditors in order.
func SuggestSettlements(balances []NetBalance, currency string) []Suggestion {
	var debtors, creditors []NetBalance
	for _, b := range balances {
		switch {
		case b.Balance.IsNegative():
			debtors = append(debtors, b)
		case b.Balance.IsPositive():
			creditors = append(creditors, b)
		}
	}

	// Remaining credit per creditor, consumed as debtors pay in.
	remaining := make([]Money, len(creditors))
	for i, c := range creditors {
		remaining[i] = c.Balance
	}

	var plan []Suggestion
	for _, d := range debtors {
		debt := d.Balance.Abs()
		for i, c := range creditors {
			if !debt.IsPositive() {
				break
			}
			if !remaining[i].IsPositive() {
				continue
			}
			amount := debt.Min(remaining[i])
			plan = append(plan, Suggestion{
				From:     d.UserID,
				To:       c.UserID,
				FromName: d.Name,
				ToName:   c.Name,
				Amount:   amount,
			})
			debt = debt.Sub(amount)
			remaining[i] = remaining[i].Sub(amount)
		}
	}
	return plan
}
