/*
summary.go - Group-wide balance rollups

PURPOSE:
  Aggregates per-member balances for an entire group, in two shapes:

  Absolute summary:
    every active member's own balance, classified owed / owes / settled,
    with group totals. For a closed group (events only reference members)
    the net of the totals is zero.

  Viewer summary:
    the same group seen from one member's chair: each peer's pairwise
    balance against the viewer ("owes you" / "you owe"), plus the viewer's
    own absolute balance as their net position.

DEFENSIVE SKIPS:
  A member row whose user account is missing is logged and skipped rather
  than failing the whole summary. One broken row should not take down the
  group view.
*/
package ledger

import (
	"context"
	"log/slog"
)

// =============================================================================
// STANDINGS
// =============================================================================

// Standing classifies a balance for display.
type Standing string

const (
	StandingOwed    Standing = "owed"     // absolute: member is owed money
	StandingOwes    Standing = "owes"     // absolute: member owes money
	StandingSettled Standing = "settled"  // balance is exactly zero
	StandingYou     Standing = "you"      // viewer's own row in a viewer summary
	StandingOwesYou Standing = "owes_you" // viewer summary: peer owes the viewer
	StandingYouOwe  Standing = "you_owe"  // viewer summary: viewer owes the peer
)

func absoluteStanding(balance Money) Standing {
	switch {
	case balance.IsPositive():
		return StandingOwed
	case balance.IsNegative():
		return StandingOwes
	default:
		return StandingSettled
	}
}

func viewerStanding(balanceWithViewer Money) Standing {
	switch {
	case balanceWithViewer.IsPositive():
		return StandingOwesYou
	case balanceWithViewer.IsNegative():
		return StandingYouOwe
	default:
		return StandingSettled
	}
}

// =============================================================================
// SUMMARY SHAPES
// =============================================================================

// MemberBalance is one row of an absolute summary.
type MemberBalance struct {
	UserID   UserID
	Email    string
	Name     string
	Balance  Money
	Standing Standing
}

// GroupSummary is the absolute view of a group.
type GroupSummary struct {
	GroupID    GroupID
	GroupName  string
	Currency   string
	Members    []MemberBalance
	TotalOwed  Money // sum of positive balances
	TotalOwing Money // sum of |negative balances|
	NetBalance Money // TotalOwed - TotalOwing; ~0 for a closed group
}

// PeerBalance is one row of a viewer summary.
type PeerBalance struct {
	UserID         UserID
	Email          string
	Name           string
	BalanceWithYou Money
	Standing       Standing
	IsViewer       bool
}

// ViewerSummary is the group seen from one member's perspective.
type ViewerSummary struct {
	GroupID        GroupID
	GroupName      string
	Currency       string
	ViewerID       UserID
	Members        []PeerBalance
	TotalOwedToYou Money
	TotalYouOwe    Money
	YourNetBalance Money
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes group-level summaries on demand. It only reads; the
// cached membership balances are not consulted so a summary is correct even
// mid-repair.
type Aggregator struct {
	Events  EventStore
	Members MembershipStore
	Users   UserStore
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{Events: store, Members: store, Users: store}
}

// GroupSummary computes the absolute summary for every active member.
func (a *Aggregator) GroupSummary(ctx context.Context, group *Group) (*GroupSummary, error) {
	set, err := a.Events.GroupEvents(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	members, err := a.Members.ActiveMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	summary := &GroupSummary{
		GroupID:    group.ID,
		GroupName:  group.Name,
		Currency:   group.Currency,
		TotalOwed:  ZeroMoney(group.Currency),
		TotalOwing: ZeroMoney(group.Currency),
	}

	for _, m := range members {
		user, err := a.Users.GetUser(ctx, m.UserID)
		if err != nil || user == nil {
			slog.Warn("skipping member with missing user account",
				"group_id", group.ID, "user_id", m.UserID, "error", err)
			continue
		}

		balance := CalculateBalance(set, m.UserID, group.Currency)
		summary.Members = append(summary.Members, MemberBalance{
			UserID:   m.UserID,
			Email:    user.Email,
			Name:     user.DisplayName(),
			Balance:  balance,
			Standing: absoluteStanding(balance),
		})

		if balance.IsPositive() {
			summary.TotalOwed = summary.TotalOwed.Add(balance)
		} else if balance.IsNegative() {
			summary.TotalOwing = summary.TotalOwing.Add(balance.Abs())
		}
	}

	summary.NetBalance = summary.TotalOwed.Sub(summary.TotalOwing)
	return summary, nil
}

// ViewerSummary computes per-peer balances against the viewer. The viewer's
// own row is included, marked specially, and excluded from the totals.
func (a *Aggregator) ViewerSummary(ctx context.Context, group *Group, viewer UserID) (*ViewerSummary, error) {
	set, err := a.Events.GroupEvents(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	members, err := a.Members.ActiveMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	summary := &ViewerSummary{
		GroupID:        group.ID,
		GroupName:      group.Name,
		Currency:       group.Currency,
		ViewerID:       viewer,
		TotalOwedToYou: ZeroMoney(group.Currency),
		TotalYouOwe:    ZeroMoney(group.Currency),
		YourNetBalance: ZeroMoney(group.Currency),
	}

	for _, m := range members {
		user, err := a.Users.GetUser(ctx, m.UserID)
		if err != nil || user == nil {
			slog.Warn("skipping member with missing user account",
				"group_id", group.ID, "user_id", m.UserID, "error", err)
			continue
		}

		if m.UserID == viewer {
			summary.YourNetBalance = CalculateBalance(set, viewer, group.Currency)
			summary.Members = append(summary.Members, PeerBalance{
				UserID:         m.UserID,
				Email:          user.Email,
				Name:           user.DisplayName(),
				BalanceWithYou: ZeroMoney(group.Currency),
				Standing:       StandingYou,
				IsViewer:       true,
			})
			continue
		}

		between := BalanceBetween(set, viewer, m.UserID, group.Currency)
		summary.Members = append(summary.Members, PeerBalance{
			UserID:         m.UserID,
			Email:          user.Email,
			Name:           user.DisplayName(),
			BalanceWithYou: between,
			Standing:       viewerStanding(between),
		})

		if between.IsPositive() {
			summary.TotalOwedToYou = summary.TotalOwedToYou.Add(between)
		} else if between.IsNegative() {
			summary.TotalYouOwe = summary.TotalYouOwe.Add(between.Abs())
		}
	}

	return summary, nil
}
