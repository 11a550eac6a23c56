package split_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evensteven/ledger-engine/ledger"
	memstore "github.com/evensteven/ledger-engine/ledger/store"
	"github.com/evensteven/ledger-engine/split"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testClock = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *split.Service
	store *memstore.TxMemory
	group *ledger.Group
	alice ledger.UserID
	bob   ledger.UserID
	cara  ledger.UserID
}

// newFixture builds a service over the in-memory store with a group of
// three: alice (admin, creator), bob and cara (members via join code).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.NewTxMemory()
	svc := split.NewService(store).WithClock(func() time.Time { return testClock })

	f := &fixture{svc: svc, store: store}

	for name, dst := range map[string]*ledger.UserID{
		"alice": &f.alice, "bob": &f.bob, "cara": &f.cara,
	} {
		u, err := svc.CreateUser(ctx, split.CreateUserInput{
			Email: name + "@example.com",
			Name:  name,
		})
		require.NoError(t, err)
		*dst = u.ID
	}

	group, err := svc.CreateGroup(ctx, split.CreateGroupInput{
		Name:      "Trip",
		Currency:  "USD",
		CreatorID: f.alice,
	})
	require.NoError(t, err)
	f.group = group

	for _, u := range []ledger.UserID{f.bob, f.cara} {
		_, err := svc.JoinGroup(ctx, group.JoinCode, u)
		require.NoError(t, err)
	}
	return f
}

func dec(s string) decimal.Decimal { return ledger.MustParseDecimal(s) }

func (f *fixture) cached(t *testing.T, user ledger.UserID) ledger.Money {
	t.Helper()
	m, err := f.store.GetMembership(context.Background(), f.group.ID, user)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m.Balance
}

func (f *fixture) threeWayExpense(t *testing.T) *ledger.Expense {
	t.Helper()
	amt10 := dec("10")
	e, err := f.svc.CreateExpense(context.Background(), split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  f.alice,
		Amount:  dec("30"),
		Splits: []split.SplitInput{
			{UserID: f.alice, Amount: &amt10},
			{UserID: f.bob, Amount: &amt10},
			{UserID: f.cara, Amount: &amt10},
		},
	})
	require.NoError(t, err)
	return e
}

// =============================================================================
// GROUPS AND MEMBERSHIP
// =============================================================================

func TestCreateGroup_CreatorIsAdminWithZeroBalance(t *testing.T) {
	f := newFixture(t)

	m, err := f.store.GetMembership(context.Background(), f.group.ID, f.alice)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, ledger.RoleAdmin, m.Role)
	assert.Equal(t, ledger.MemberActive, m.Status)
	assert.True(t, m.Balance.IsZero())
	assert.Len(t, f.group.JoinCode, 6)
}

func TestJoinGroup_UnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.JoinGroup(context.Background(), "ZZZZZZ", f.bob)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestJoinGroup_AlreadyMember(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.JoinGroup(context.Background(), f.group.JoinCode, f.bob)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestSetMemberStatus_RequiresAdmin(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SetMemberStatus(context.Background(), f.group.ID, f.bob, f.cara, ledger.MemberRemoved)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestSetMemberStatus_RemovalRecomputesRemaining(t *testing.T) {
	// GIVEN: a three-way split, then cara is removed
	// WHEN: balances are read back
	// THEN: remaining members were recomputed; cara's events still count

	f := newFixture(t)
	f.threeWayExpense(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetMemberStatus(ctx, f.group.ID, f.alice, f.cara, ledger.MemberRemoved))

	// Cara's split stays in the ledger, so alice is still owed 20.
	assert.Equal(t, "20.00", f.cached(t, f.alice).StringFixed())
	assert.Equal(t, "-10.00", f.cached(t, f.bob).StringFixed())
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestCreateExpense_NonPositiveAmountRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateExpense(context.Background(), split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  f.alice,
		Amount:  dec("0"),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestCreateExpense_PayerMustBeActiveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outsider, err := f.svc.CreateUser(ctx, split.CreateUserInput{Email: "dan@example.com"})
	require.NoError(t, err)

	_, err = f.svc.CreateExpense(ctx, split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  outsider.ID,
		Amount:  dec("10"),
	})
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestCreateExpense_UpdatesCachedBalances(t *testing.T) {
	f := newFixture(t)
	f.threeWayExpense(t)

	assert.Equal(t, "20.00", f.cached(t, f.alice).StringFixed())
	assert.Equal(t, "-10.00", f.cached(t, f.bob).StringFixed())
	assert.Equal(t, "-10.00", f.cached(t, f.cara).StringFixed())
}

func TestCreateExpense_PercentageResolvedOnce(t *testing.T) {
	// GIVEN: a 100 expense with a 25% split for bob
	// WHEN: the expense amount is later doubled
	// THEN: bob's split amount stays 25

	f := newFixture(t)
	ctx := context.Background()

	pct := dec("25")
	e, err := f.svc.CreateExpense(ctx, split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  f.alice,
		Amount:  dec("100"),
		Splits:  []split.SplitInput{{UserID: f.bob, Percentage: &pct}},
	})
	require.NoError(t, err)

	splits, err := f.store.ExpenseSplits(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, "25.00", splits[0].Amount.StringFixed())

	doubled := dec("200")
	_, err = f.svc.UpdateExpense(ctx, e.ID, split.UpdateExpenseInput{Amount: &doubled})
	require.NoError(t, err)

	splits, err = f.store.ExpenseSplits(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", splits[0].Amount.StringFixed())

	// The payer's cached balance reflects the new amount against the old split.
	assert.Equal(t, "175.00", f.cached(t, f.alice).StringFixed())
}

func TestCreateExpense_SkipsUnknownSplitUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	amt := dec("10")
	e, err := f.svc.CreateExpense(ctx, split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  f.alice,
		Amount:  dec("20"),
		Splits: []split.SplitInput{
			{UserID: f.bob, Amount: &amt},
			{UserID: "nobody", Amount: &amt},
		},
	})
	require.NoError(t, err)

	splits, err := f.store.ExpenseSplits(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, f.bob, splits[0].UserID)
}

func TestCreateExpense_DuplicateSplitRollsBackWholeExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	amt := dec("10")
	_, err := f.svc.CreateExpense(ctx, split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  f.alice,
		Amount:  dec("20"),
		Splits: []split.SplitInput{
			{UserID: f.bob, Amount: &amt},
			{UserID: f.bob, Amount: &amt},
		},
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateSplit)

	expenses, err := f.store.ListExpenses(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Empty(t, expenses, "failed expense must not be committed")
	assert.True(t, f.cached(t, f.alice).IsZero())
}

func TestDeleteExpense_RecomputesEveryone(t *testing.T) {
	f := newFixture(t)
	e := f.threeWayExpense(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteExpense(ctx, e.ID))

	for _, u := range []ledger.UserID{f.alice, f.bob, f.cara} {
		assert.True(t, f.cached(t, u).IsZero())
	}
	splits, err := f.store.ExpenseSplits(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, splits, "splits must cascade")
}

func TestAddAndRemoveSplit_RecomputeBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateExpense(ctx, split.CreateExpenseInput{
		GroupID: f.group.ID,
		PaidBy:  f.alice,
		Amount:  dec("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", f.cached(t, f.alice).StringFixed())

	amt := dec("12")
	sp, err := f.svc.AddSplit(ctx, e.ID, split.SplitInput{UserID: f.bob, Amount: &amt})
	require.NoError(t, err)
	assert.Equal(t, "-12.00", f.cached(t, f.bob).StringFixed())

	require.NoError(t, f.svc.RemoveSplit(ctx, sp.ID))
	assert.True(t, f.cached(t, f.bob).IsZero())
	assert.Equal(t, "30.00", f.cached(t, f.alice).StringFixed())
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_SelfTransferRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPayment(context.Background(), split.TransferInput{
		FromUser: f.alice,
		ToUser:   f.alice,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
	})
	assert.ErrorIs(t, err, ledger.ErrSelfTransfer)
}

func TestRecordPayment_FutureDateRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPayment(context.Background(), split.TransferInput{
		FromUser: f.bob,
		ToUser:   f.alice,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
		Date:     testClock.AddDate(0, 0, 1),
	})
	assert.ErrorIs(t, err, ledger.ErrFutureDate)
}

func TestRecordPayment_SameDayAccepted(t *testing.T) {
	f := newFixture(t)

	// Later the same calendar day is not "future".
	_, err := f.svc.RecordPayment(context.Background(), split.TransferInput{
		FromUser: f.bob,
		ToUser:   f.alice,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
		Date:     testClock.Add(6 * time.Hour),
	})
	assert.NoError(t, err)
}

func TestRecordPayment_UpdatesBothCachedBalances(t *testing.T) {
	f := newFixture(t)
	f.threeWayExpense(t)
	ctx := context.Background()

	_, err := f.svc.RecordPayment(ctx, split.TransferInput{
		FromUser: f.bob,
		ToUser:   f.alice,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
	})
	require.NoError(t, err)

	assert.Equal(t, "10.00", f.cached(t, f.alice).StringFixed())
	assert.True(t, f.cached(t, f.bob).IsZero())
	assert.Equal(t, "-10.00", f.cached(t, f.cara).StringFixed())
}

func TestDeletePayment_RestoresBalances(t *testing.T) {
	f := newFixture(t)
	f.threeWayExpense(t)
	ctx := context.Background()

	p, err := f.svc.RecordPayment(ctx, split.TransferInput{
		FromUser: f.bob,
		ToUser:   f.alice,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeletePayment(ctx, p.ID))

	assert.Equal(t, "20.00", f.cached(t, f.alice).StringFixed())
	assert.Equal(t, "-10.00", f.cached(t, f.bob).StringFixed())
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func TestRecordSettlement_NonPositiveAmountRejectedBeforeWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5"} {
		_, err := f.svc.RecordSettlement(ctx, split.TransferInput{
			FromUser: f.bob,
			ToUser:   f.alice,
			GroupID:  f.group.ID,
			Amount:   dec(amount),
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}

	set, err := f.store.GroupEvents(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Empty(t, set.Settlements, "rejected settlement must leave no trace")
}

func TestRecordSettlement_SelfTransferRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordSettlement(context.Background(), split.TransferInput{
		FromUser: f.bob,
		ToUser:   f.bob,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
	})
	assert.ErrorIs(t, err, ledger.ErrSelfTransfer)
}

func TestRecordSettlement_SettlesDebt(t *testing.T) {
	f := newFixture(t)
	f.threeWayExpense(t)
	ctx := context.Background()

	_, err := f.svc.RecordSettlement(ctx, split.TransferInput{
		FromUser: f.cara,
		ToUser:   f.alice,
		GroupID:  f.group.ID,
		Amount:   dec("10"),
	})
	require.NoError(t, err)

	assert.True(t, f.cached(t, f.cara).IsZero())
	assert.Equal(t, "10.00", f.cached(t, f.alice).StringFixed())
}

// =============================================================================
// BALANCE REPAIR
// =============================================================================

func TestUpdateBalances_AdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateBalances(context.Background(), f.group.ID, f.bob)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestUpdateBalances_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	f.threeWayExpense(t)
	ctx := context.Background()

	// Plant drift directly in the cached column.
	require.NoError(t, f.store.UpdateMemberBalance(ctx, f.group.ID, f.bob,
		ledger.Money{Value: dec("777"), Currency: "USD"}))

	ids, err := f.svc.UpdateBalances(ctx, f.group.ID, f.alice)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, "-10.00", f.cached(t, f.bob).StringFixed())
}

// =============================================================================
// CACHE CONSISTENCY
// =============================================================================

// After every mutation the cached balance must equal the calculator's
// answer for each member.
func TestCachedBalances_AlwaysMatchCalculator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.threeWayExpense(t)
	p, err := f.svc.RecordPayment(ctx, split.TransferInput{
		FromUser: f.bob, ToUser: f.alice, GroupID: f.group.ID, Amount: dec("4"),
	})
	require.NoError(t, err)
	_, err = f.svc.RecordSettlement(ctx, split.TransferInput{
		FromUser: f.cara, ToUser: f.alice, GroupID: f.group.ID, Amount: dec("10"),
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeletePayment(ctx, p.ID))
	newAmount := dec("60")
	_, err = f.svc.UpdateExpense(ctx, e.ID, split.UpdateExpenseInput{Amount: &newAmount})
	require.NoError(t, err)

	set, err := f.store.GroupEvents(ctx, f.group.ID)
	require.NoError(t, err)
	for _, u := range []ledger.UserID{f.alice, f.bob, f.cara} {
		want := ledger.CalculateBalance(set, u, "USD")
		assert.True(t, f.cached(t, u).Equal(want),
			"cached balance for %s drifted: cached %s, calculated %s",
			u, f.cached(t, u).StringFixed(), want.StringFixed())
	}
}
