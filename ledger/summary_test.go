package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evensteven/ledger-engine/ledger"
	memstore "github.com/evensteven/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedGroup builds a store with group g1 (USD) and active members A, B, C.
func seedGroup(t *testing.T) (*memstore.TxMemory, *ledger.Group) {
	t.Helper()
	ctx := context.Background()
	store := memstore.NewTxMemory()

	group := &ledger.Group{
		ID:       "g1",
		Name:     "Trip",
		Currency: "USD",
		Status:   ledger.GroupActive,
		JoinCode: "TRIP01",
	}
	require.NoError(t, store.CreateGroup(ctx, group))

	for _, u := range []string{"A", "B", "C"} {
		require.NoError(t, store.CreateUser(ctx, &ledger.User{
			ID:    ledger.UserID(u),
			Email: u + "@example.com",
			Name:  "User " + u,
		}))
		require.NoError(t, store.CreateMembership(ctx, &ledger.Membership{
			GroupID: "g1",
			UserID:  ledger.UserID(u),
			Role:    ledger.RoleMember,
			Status:  ledger.MemberActive,
			Balance: ledger.ZeroMoney("USD"),
		}))
	}
	return store, group
}

func seedThreeWaySplit(t *testing.T, store *memstore.TxMemory) {
	t.Helper()
	ctx := context.Background()
	e := expense("e1", "A", "30")
	require.NoError(t, store.CreateExpense(ctx, &e))
	for _, u := range []string{"A", "B", "C"} {
		sp := splitOf("e1", u, "10")
		require.NoError(t, store.CreateSplit(ctx, &sp))
	}
}

// =============================================================================
// GROUP SUMMARY
// =============================================================================

func TestGroupSummary_ClassifiesAndTotals(t *testing.T) {
	store, group := seedGroup(t)
	seedThreeWaySplit(t, store)

	agg := ledger.NewAggregator(store)
	summary, err := agg.GroupSummary(context.Background(), group)
	require.NoError(t, err)

	require.Len(t, summary.Members, 3)
	byUser := make(map[ledger.UserID]ledger.MemberBalance)
	for _, m := range summary.Members {
		byUser[m.UserID] = m
	}

	assert.Equal(t, ledger.StandingOwed, byUser["A"].Standing)
	assert.True(t, byUser["A"].Balance.Equal(money("20")))
	assert.Equal(t, ledger.StandingOwes, byUser["B"].Standing)
	assert.Equal(t, ledger.StandingOwes, byUser["C"].Standing)

	assert.True(t, summary.TotalOwed.Equal(money("20")))
	assert.True(t, summary.TotalOwing.Equal(money("20")))
	assert.True(t, summary.NetBalance.IsZero())
}

func TestGroupSummary_SettledStanding(t *testing.T) {
	store, group := seedGroup(t)

	summary, err := ledger.NewAggregator(store).GroupSummary(context.Background(), group)
	require.NoError(t, err)
	for _, m := range summary.Members {
		assert.Equal(t, ledger.StandingSettled, m.Standing)
	}
}

func TestGroupSummary_SkipsMemberWithMissingUser(t *testing.T) {
	// GIVEN: a membership row whose user record is gone
	// WHEN: the summary is computed
	// THEN: the row is skipped, the rest of the summary still works

	store, group := seedGroup(t)
	ctx := context.Background()
	require.NoError(t, store.CreateMembership(ctx, &ledger.Membership{
		GroupID: "g1",
		UserID:  "ghost",
		Status:  ledger.MemberActive,
		Balance: ledger.ZeroMoney("USD"),
	}))

	summary, err := ledger.NewAggregator(store).GroupSummary(ctx, group)
	require.NoError(t, err)
	assert.Len(t, summary.Members, 3)
}

// =============================================================================
// VIEWER SUMMARY
// =============================================================================

func TestViewerSummary_PeerBalancesAndTotals(t *testing.T) {
	store, group := seedGroup(t)
	seedThreeWaySplit(t, store)

	summary, err := ledger.NewAggregator(store).ViewerSummary(context.Background(), group, "A")
	require.NoError(t, err)

	byUser := make(map[ledger.UserID]ledger.PeerBalance)
	for _, m := range summary.Members {
		byUser[m.UserID] = m
	}

	// Viewer's own row is flagged and zeroed.
	assert.True(t, byUser["A"].IsViewer)
	assert.Equal(t, ledger.StandingYou, byUser["A"].Standing)
	assert.True(t, byUser["A"].BalanceWithYou.IsZero())

	assert.Equal(t, ledger.StandingOwesYou, byUser["B"].Standing)
	assert.True(t, byUser["B"].BalanceWithYou.Equal(money("10")))
	assert.Equal(t, ledger.StandingOwesYou, byUser["C"].Standing)

	assert.True(t, summary.TotalOwedToYou.Equal(money("20")))
	assert.True(t, summary.TotalYouOwe.IsZero())
	assert.True(t, summary.YourNetBalance.Equal(money("20")))
}

func TestViewerSummary_DebtorPerspective(t *testing.T) {
	store, group := seedGroup(t)
	seedThreeWaySplit(t, store)

	summary, err := ledger.NewAggregator(store).ViewerSummary(context.Background(), group, "B")
	require.NoError(t, err)

	byUser := make(map[ledger.UserID]ledger.PeerBalance)
	for _, m := range summary.Members {
		byUser[m.UserID] = m
	}

	assert.Equal(t, ledger.StandingYouOwe, byUser["A"].Standing)
	assert.True(t, byUser["A"].BalanceWithYou.Equal(money("-10")))
	// B and C share no direct transactions.
	assert.Equal(t, ledger.StandingSettled, byUser["C"].Standing)

	assert.True(t, summary.TotalYouOwe.Equal(money("10")))
	assert.True(t, summary.YourNetBalance.Equal(money("-10")))
}
