/*
pairwise.go - Net balance between two specific members

PURPOSE:
  Answers "you owe Alice $12" style questions. Unlike the absolute balance,
  this walks only the transactions that directly link the two users: splits
  on each other's expenses and transfers between them. Third-party effects
  are deliberately ignored, so the pairwise figure is NOT the difference of
  the two absolute balances.
*/
package ledger

import "context"

// BalanceBetween computes the net balance between user1 and user2 within one
// group's event set. Positive means user2 owes user1; negative means user1
// owes user2.
func BalanceBetween(set EventSet, user1, user2 UserID, currency string) Money {
	balance := ZeroMoney(currency)
	payers := set.expensePayers()

	// Shares of each other's expenses. A split only counts when the other
	// user paid the expense it belongs to.
	for _, sp := range set.Splits {
		payer, ok := payers[sp.ExpenseID]
		if !ok {
			continue
		}
		switch {
		case payer == user1 && sp.UserID == user2:
			balance = balance.Add(sp.Amount) // user2 owes user1
		case payer == user2 && sp.UserID == user1:
			balance = balance.Sub(sp.Amount) // user1 owes user2
		}
	}

	// Direct transfers between the pair reduce whichever debt they service.
	for _, p := range set.Payments {
		switch {
		case p.FromUser == user2 && p.ToUser == user1:
			balance = balance.Sub(p.Amount)
		case p.FromUser == user1 && p.ToUser == user2:
			balance = balance.Add(p.Amount)
		}
	}
	for _, st := range set.Settlements {
		switch {
		case st.FromUser == user2 && st.ToUser == user1:
			balance = balance.Sub(st.Amount)
		case st.FromUser == user1 && st.ToUser == user2:
			balance = balance.Add(st.Amount)
		}
	}

	return balance
}

// MemberBalanceBetween is the store-backed form of BalanceBetween.
func (c *Calculator) MemberBalanceBetween(ctx context.Context, group *Group, user1, user2 UserID) (Money, error) {
	set, err := c.Events.GroupEvents(ctx, group.ID)
	if err != nil {
		return Money{}, err
	}
	return BalanceBetween(set, user1, user2, group.Currency), nil
}
