/*
Package ledger is the core balance engine for the shared-expense system.

PURPOSE:
  This package contains the domain types and algorithms that derive member
  balances from an append-style set of monetary events: expenses, expense
  splits, payments, and settlements. It answers "who owes whom, and how
  much?" and proposes transfers that would zero everything out.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: a fixed-point decimal amount tagged with a currency label
  - Group / Membership: who belongs where, with a cached balance per member
  - Expense / ExpenseSplit / Payment / Settlement: the four event kinds
  - EventSet: a group's complete event log, loaded for calculation

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 money
  2. Purity: balance math is a function of the current event set; there is
     no hidden accumulator to drift out of sync
  3. Currency labels only: amounts are summed within one currency context,
     never converted. A group mixing currencies gets a numerically valid
     but financially meaningless sum; the engine does not resolve that.

SEE ALSO:
  - balance.go:  the member balance formula and its component breakdown
  - pairwise.go: net balance between two specific members
  - summary.go:  group-wide and viewer-relative rollups
  - plan.go:     greedy settlement suggestions
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point amount with a currency label
// =============================================================================

// Money is a decimal amount tagged with a 3-letter currency code.
// Arithmetic keeps the receiver's currency; there is no conversion logic.
type Money struct {
	Value    decimal.Decimal
	Currency string
}

func NewMoney(value float64, currency string) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func ZeroMoney(currency string) Money {
	return Money{Value: decimal.Zero, Currency: currency}
}

// MoneyFromString parses a decimal string such as "12.50".
func MoneyFromString(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d, Currency: currency}, nil
}

func (m Money) Zero() Money                { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value), Currency: m.Currency} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) Abs() Money                 { return Money{Value: m.Value.Abs(), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) Div(s decimal.Decimal) Money { return Money{Value: m.Value.Div(s), Currency: m.Currency} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) Min(o Money) Money          { if m.LessThan(o) { return m }; return o }

// StringFixed renders the amount with two fraction digits (cent precision).
func (m Money) StringFixed() string { return m.Value.StringFixed(2) }

// MustParseDecimal parses a decimal string, returning zero on failure.
// For constants and test fixtures.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type GroupID string
type ExpenseID string
type SplitID string
type PaymentID string
type SettlementID string

// =============================================================================
// GROUP AND MEMBERSHIP
// =============================================================================

type GroupStatus string

const (
	GroupActive   GroupStatus = "active"
	GroupArchived GroupStatus = "archived"
	GroupDeleted  GroupStatus = "deleted"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberPending MemberStatus = "pending"
	MemberRemoved MemberStatus = "removed"
)

// Group is the container every event references. Currency is a label applied
// to the group's reporting, not an enforcement on its events.
type Group struct {
	ID          GroupID
	Name        string
	Description string
	CreatedBy   UserID
	Currency    string
	Status      GroupStatus
	JoinCode    string // 6 uppercase alphanumerics, unique across groups
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Membership links a user to a group.
//
// Balance is a materialized view of the balance calculator's output: it must
// equal CalculateBalance(group events, user) after any transaction that
// mutated the group's events commits. It is always recomputed from scratch,
// never incrementally patched. RecomputeAll is the repair operation for any
// detected drift.
type Membership struct {
	GroupID  GroupID
	UserID   UserID
	Role     Role
	Status   MemberStatus
	Balance  Money
	JoinedAt time.Time
}

// User is the minimal account record the engine needs: identity plus the
// fields summary rows display.
type User struct {
	ID        UserID
	Email     string
	Name      string
	CreatedAt time.Time
}

// DisplayName returns the user's name, falling back to the local part of the
// email address.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// =============================================================================
// EVENTS - The four inputs to the balance calculator
// =============================================================================

// Expense records that one member paid an amount on the group's behalf.
// The payer's contribution and the owed shares are separate records: an
// expense with no splits credits the payer and charges nobody.
type Expense struct {
	ID          ExpenseID
	GroupID     GroupID
	PaidBy      UserID
	Amount      Money
	Description string
	Date        time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExpenseSplit is one member's share of a single expense. At most one split
// exists per (expense, user) pair.
//
// When Percentage is supplied without an amount, the amount is resolved once
// at creation as expense.Amount * pct / 100. It is NOT re-derived if the
// expense amount later changes; edits to an expense do not cascade to its
// splits.
type ExpenseSplit struct {
	ID         SplitID
	ExpenseID  ExpenseID
	UserID     UserID
	Amount     Money
	Percentage *decimal.Decimal
	CreatedAt  time.Time
}

// Payment is a direct transfer between two users, outside the expense-split
// mechanism. Always immediately effective; there is no pending state.
// GroupID is empty for transfers not scoped to a group; ungrouped transfers
// never touch any group balance.
type Payment struct {
	ID          PaymentID
	FromUser    UserID
	ToUser      UserID
	GroupID     GroupID
	Amount      Money
	Description string
	Date        time.Time
	CreatedAt   time.Time
}

// Settlement is semantically a Payment for balance purposes, kept as a
// distinct record for reporting. Amount must be strictly positive.
type Settlement struct {
	ID          SettlementID
	FromUser    UserID
	ToUser      UserID
	GroupID     GroupID
	Amount      Money
	Description string
	SettledAt   time.Time
	CreatedAt   time.Time
}

// =============================================================================
// EVENT SET - A group's complete event log, loaded for calculation
// =============================================================================

// EventSet is everything the balance math consumes for one group. Splits are
// the splits of the contained expenses; the set is group-scoped so splits
// need no group key of their own.
type EventSet struct {
	Expenses    []Expense
	Splits      []ExpenseSplit
	Payments    []Payment
	Settlements []Settlement
}

// expensePayers indexes expense id -> payer for split attribution.
func (s EventSet) expensePayers() map[ExpenseID]UserID {
	payers := make(map[ExpenseID]UserID, len(s.Expenses))
	for _, e := range s.Expenses {
		payers[e.ID] = e.PaidBy
	}
	return payers
}
