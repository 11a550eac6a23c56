/*
recompute.go - Cached balance maintenance

PURPOSE:
  Keeps Membership.Balance in sync with the event set. The cached value is
  always recomputed from scratch with CalculateBalance, never incrementally
  patched, so a recompute is idempotent and self-healing.

WHEN IT RUNS:
  The write path calls Recompute inside the same transaction as the event
  write, for exactly the users the mutation can affect:

    expense created/updated  -> payer + split users
    split added/removed      -> payer + the split's user
    expense deleted          -> every active member (splits went with it)
    payment / settlement     -> both sides of the transfer
    member removed           -> every remaining active member
    member reactivated       -> that member

  RecomputeAll also serves as the manual repair operation when drift is
  suspected.

NO RECURSION:
  The write-back goes through UpdateMemberBalance, which touches only the
  cached column. It is not an event write, so recomputation never triggers
  further recomputation.
*/
package ledger

import "context"

// Recomputer recalculates cached member balances from the event set.
type Recomputer struct {
	Store Store
}

func NewRecomputer(store Store) *Recomputer {
	return &Recomputer{Store: store}
}

// Recompute recalculates and writes back the cached balance for the given
// users. Users without a membership row are skipped; duplicate ids are
// collapsed. The event set is loaded once and shared across users.
func (r *Recomputer) Recompute(ctx context.Context, group *Group, users ...UserID) error {
	set, err := r.Store.GroupEvents(ctx, group.ID)
	if err != nil {
		return err
	}

	seen := make(map[UserID]bool, len(users))
	for _, u := range users {
		if seen[u] {
			continue
		}
		seen[u] = true

		m, err := r.Store.GetMembership(ctx, group.ID, u)
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}

		balance := CalculateBalance(set, u, group.Currency)
		if m.Balance.Equal(balance) && m.Balance.Currency == balance.Currency {
			continue
		}
		if err := r.Store.UpdateMemberBalance(ctx, group.ID, u, balance); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeAll recalculates every active member's cached balance and returns
// the ids it processed.
func (r *Recomputer) RecomputeAll(ctx context.Context, group *Group) ([]UserID, error) {
	members, err := r.Store.ActiveMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]UserID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	if err := r.Recompute(ctx, group, ids...); err != nil {
		return nil, err
	}
	return ids, nil
}
