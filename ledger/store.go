/*
store.go - Persistence interfaces for the ledger event store

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  treats storage as a queryable event log keyed by group plus the row of
  cached member balances; different implementations can use SQLite,
  PostgreSQL, or in-memory maps.

CONVENTIONS:
  - Get* methods return (nil, nil) when the record does not exist; callers
    translate that into NotFound where it matters.
  - Delete of an expense cascades to its splits.
  - UpdateMemberBalance touches exactly one (group, user) row; it is the
    only write the recomputation path performs, which is what keeps
    recomputation from ever looking like a new balance-affecting event.

TRANSACTIONS:
  TxStore.WithTx runs fn against a transaction-scoped Store view. The write
  path uses it so an event write and the resulting cached-balance updates
  commit together or not at all.

IMPLEMENTATIONS:
  - store/sqlite:     production persistence
  - ledger/store:     in-memory, for tests and dev servers
*/
package ledger

import "context"

// =============================================================================
// EVENT LOG
// =============================================================================

// EventStore loads a group's complete event set for balance calculation.
// The read is a plain scan; calculations never mutate events.
type EventStore interface {
	GroupEvents(ctx context.Context, groupID GroupID) (EventSet, error)
}

// ExpenseStore persists expenses and their splits.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e *Expense) error
	GetExpense(ctx context.Context, id ExpenseID) (*Expense, error)
	UpdateExpense(ctx context.Context, e *Expense) error
	// DeleteExpense removes the expense and cascades to its splits.
	DeleteExpense(ctx context.Context, id ExpenseID) error
	ListExpenses(ctx context.Context, groupID GroupID) ([]Expense, error)

	CreateSplit(ctx context.Context, s *ExpenseSplit) error
	DeleteSplit(ctx context.Context, id SplitID) error
	GetSplit(ctx context.Context, id SplitID) (*ExpenseSplit, error)
	ExpenseSplits(ctx context.Context, expenseID ExpenseID) ([]ExpenseSplit, error)
}

// TransferStore persists payments and settlements.
type TransferStore interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	DeletePayment(ctx context.Context, id PaymentID) error

	CreateSettlement(ctx context.Context, s *Settlement) error
	GetSettlement(ctx context.Context, id SettlementID) (*Settlement, error)
	DeleteSettlement(ctx context.Context, id SettlementID) error
}

// =============================================================================
// GROUPS, MEMBERS, USERS
// =============================================================================

type GroupStore interface {
	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id GroupID) (*Group, error)
	GetGroupByJoinCode(ctx context.Context, code string) (*Group, error)
	JoinCodeExists(ctx context.Context, code string) (bool, error)
}

type MembershipStore interface {
	CreateMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, groupID GroupID, userID UserID) (*Membership, error)
	// ActiveMembers returns memberships with status "active", in join order.
	ActiveMembers(ctx context.Context, groupID GroupID) ([]Membership, error)
	SetMemberStatus(ctx context.Context, groupID GroupID, userID UserID, status MemberStatus) error
	// UpdateMemberBalance writes the cached balance for one member row.
	UpdateMemberBalance(ctx context.Context, groupID GroupID, userID UserID, balance Money) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
}

// =============================================================================
// COMPOSITE STORE
// =============================================================================

// Store bundles everything the engine and the write path need.
type Store interface {
	EventStore
	ExpenseStore
	TransferStore
	GroupStore
	MembershipStore
	UserStore
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back; otherwise it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
