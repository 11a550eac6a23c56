/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for the shared-expense ledger. The same patterns
  apply to PostgreSQL; only minor SQL dialect differences.

KEY TABLES:
  users:           Account records
  groups:          Expense groups, join code unique
  group_members:   Membership with the cached balance column
  expenses:        One row per expense
  expense_splits:  Shares, UNIQUE(expense_id, user_id), FK cascade
  payments:        Direct transfers
  settlements:     Settle-up transfers

MONEY:
  Amounts are stored as decimal strings next to their currency code, never
  as floats. They round-trip through shopspring/decimal exactly.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.
  Multiple readers don't block; writes are serialized by SQLite's
  single-writer model, which is what makes the cached-balance UPDATE safe.

TRANSACTIONS:
  WithTx exposes a transaction-scoped ledger.Store view. The write path
  uses it so an event write and its balance recomputes commit together.

MIGRATION:
  Schema is auto-migrated on New(). For production at scale, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/evensteven/ledger-engine/ledger"
)

// Store implements ledger.TxStore on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		join_code TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL REFERENCES groups(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		role TEXT NOT NULL DEFAULT 'member',
		status TEXT NOT NULL DEFAULT 'active',
		balance TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL,
		joined_at TEXT NOT NULL,
		UNIQUE(group_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_members_group_status
		ON group_members(group_id, status);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id),
		paid_by TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_group
		ON expenses(group_id, date);

	CREATE TABLE IF NOT EXISTS expense_splits (
		id TEXT PRIMARY KEY,
		expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		percentage TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(expense_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_splits_expense
		ON expense_splits(expense_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		from_user TEXT NOT NULL,
		to_user TEXT NOT NULL,
		group_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_group
		ON payments(group_id);

	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		from_user TEXT NOT NULL,
		to_user TEXT NOT NULL,
		group_id TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		settled_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_group
		ON settlements(group_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EVENT LOG (ledger.EventStore)
// =============================================================================

func (s *Store) GroupEvents(ctx context.Context, groupID ledger.GroupID) (ledger.EventSet, error) {
	return groupEvents(ctx, s.db, groupID)
}

func groupEvents(ctx context.Context, q dbtx, groupID ledger.GroupID) (ledger.EventSet, error) {
	var set ledger.EventSet
	var err error

	if set.Expenses, err = listExpenses(ctx, q, groupID); err != nil {
		return set, err
	}
	if set.Splits, err = groupSplits(ctx, q, groupID); err != nil {
		return set, err
	}
	if set.Payments, err = groupPayments(ctx, q, groupID); err != nil {
		return set, err
	}
	if set.Settlements, err = groupSettlements(ctx, q, groupID); err != nil {
		return set, err
	}
	return set, nil
}

// =============================================================================
// EXPENSES AND SPLITS (ledger.ExpenseStore)
// =============================================================================

const expenseColumns = "id, group_id, paid_by, amount, currency, description, date, created_at, updated_at"

func (s *Store) CreateExpense(ctx context.Context, e *ledger.Expense) error {
	return createExpense(ctx, s.db, e)
}

func createExpense(ctx context.Context, q dbtx, e *ledger.Expense) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, e.PaidBy,
		e.Amount.Value.String(), e.Amount.Currency,
		e.Description, fmtTime(e.Date), fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	return getExpense(ctx, s.db, id)
}

func getExpense(ctx context.Context, q dbtx, id ledger.ExpenseID) (*ledger.Expense, error) {
	row := q.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e *ledger.Expense) error {
	return updateExpense(ctx, s.db, e)
}

func updateExpense(ctx context.Context, q dbtx, e *ledger.Expense) error {
	res, err := q.ExecContext(ctx, `
		UPDATE expenses
		SET paid_by = ?, amount = ?, currency = ?, description = ?, date = ?, updated_at = ?
		WHERE id = ?`,
		e.PaidBy, e.Amount.Value.String(), e.Amount.Currency,
		e.Description, fmtTime(e.Date), fmtTime(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return requireRow(res, "expense", string(e.ID))
}

func (s *Store) DeleteExpense(ctx context.Context, id ledger.ExpenseID) error {
	return deleteExpense(ctx, s.db, id)
}

func deleteExpense(ctx context.Context, q dbtx, id ledger.ExpenseID) error {
	// Splits go with it via ON DELETE CASCADE.
	res, err := q.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireRow(res, "expense", string(id))
}

func (s *Store) ListExpenses(ctx context.Context, groupID ledger.GroupID) ([]ledger.Expense, error) {
	return listExpenses(ctx, s.db, groupID)
}

func listExpenses(ctx context.Context, q dbtx, groupID ledger.GroupID) ([]ledger.Expense, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE group_id = ?
		ORDER BY date ASC, created_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []ledger.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*ledger.Expense, error) {
	var (
		e                         ledger.Expense
		amount                    string
		date, createdAt, updated  string
	)
	err := row.Scan(&e.ID, &e.GroupID, &e.PaidBy, &amount, &e.Amount.Currency,
		&e.Description, &date, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	e.Amount.Value = mustDecimal(amount)
	e.Date = parseTime(date)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

const splitColumns = "id, expense_id, user_id, amount, currency, percentage, created_at"

func (s *Store) CreateSplit(ctx context.Context, sp *ledger.ExpenseSplit) error {
	return createSplit(ctx, s.db, sp)
}

func createSplit(ctx context.Context, q dbtx, sp *ledger.ExpenseSplit) error {
	var pct any
	if sp.Percentage != nil {
		pct = sp.Percentage.String()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO expense_splits (`+splitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ExpenseID, sp.UserID,
		sp.Amount.Value.String(), sp.Amount.Currency, pct, fmtTime(sp.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateSplit
		}
		return fmt.Errorf("failed to insert split: %w", err)
	}
	return nil
}

func (s *Store) DeleteSplit(ctx context.Context, id ledger.SplitID) error {
	return deleteSplit(ctx, s.db, id)
}

func deleteSplit(ctx context.Context, q dbtx, id ledger.SplitID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM expense_splits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	return requireRow(res, "split", string(id))
}

func (s *Store) GetSplit(ctx context.Context, id ledger.SplitID) (*ledger.ExpenseSplit, error) {
	return getSplit(ctx, s.db, id)
}

func getSplit(ctx context.Context, q dbtx, id ledger.SplitID) (*ledger.ExpenseSplit, error) {
	row := q.QueryRowContext(ctx, `SELECT `+splitColumns+` FROM expense_splits WHERE id = ?`, id)
	sp, err := scanSplit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Store) ExpenseSplits(ctx context.Context, expenseID ledger.ExpenseID) ([]ledger.ExpenseSplit, error) {
	return querySplits(ctx, s.db, `
		SELECT `+splitColumns+` FROM expense_splits
		WHERE expense_id = ?
		ORDER BY created_at ASC`, expenseID)
}

func groupSplits(ctx context.Context, q dbtx, groupID ledger.GroupID) ([]ledger.ExpenseSplit, error) {
	return querySplits(ctx, q, `
		SELECT s.id, s.expense_id, s.user_id, s.amount, s.currency, s.percentage, s.created_at
		FROM expense_splits s
		JOIN expenses e ON e.id = s.expense_id
		WHERE e.group_id = ?
		ORDER BY s.created_at ASC`, groupID)
}

func querySplits(ctx context.Context, q dbtx, query string, args ...any) ([]ledger.ExpenseSplit, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query splits: %w", err)
	}
	defer rows.Close()

	var splits []ledger.ExpenseSplit
	for rows.Next() {
		sp, err := scanSplit(rows)
		if err != nil {
			return nil, err
		}
		splits = append(splits, *sp)
	}
	return splits, rows.Err()
}

func scanSplit(row scanner) (*ledger.ExpenseSplit, error) {
	var (
		sp        ledger.ExpenseSplit
		amount    string
		pct       sql.NullString
		createdAt string
	)
	err := row.Scan(&sp.ID, &sp.ExpenseID, &sp.UserID, &amount, &sp.Amount.Currency, &pct, &createdAt)
	if err != nil {
		return nil, err
	}
	sp.Amount.Value = mustDecimal(amount)
	if pct.Valid {
		p := mustDecimal(pct.String)
		sp.Percentage = &p
	}
	sp.CreatedAt = parseTime(createdAt)
	return &sp, nil
}

// =============================================================================
// PAYMENTS AND SETTLEMENTS (ledger.TransferStore)
// =============================================================================

const paymentColumns = "id, from_user, to_user, group_id, amount, currency, description, date, created_at"

func (s *Store) CreatePayment(ctx context.Context, p *ledger.Payment) error {
	return createPayment(ctx, s.db, p)
}

func createPayment(ctx context.Context, q dbtx, p *ledger.Payment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FromUser, p.ToUser, p.GroupID,
		p.Amount.Value.String(), p.Amount.Currency,
		p.Description, fmtTime(p.Date), fmtTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, q dbtx, id ledger.PaymentID) (*ledger.Payment, error) {
	var (
		p               ledger.Payment
		amount          string
		date, createdAt string
	)
	err := q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id).
		Scan(&p.ID, &p.FromUser, &p.ToUser, &p.GroupID, &amount, &p.Amount.Currency,
			&p.Description, &date, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Amount.Value = mustDecimal(amount)
	p.Date = parseTime(date)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *Store) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, q dbtx, id ledger.PaymentID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return requireRow(res, "payment", string(id))
}

func groupPayments(ctx context.Context, q dbtx, groupID ledger.GroupID) ([]ledger.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE group_id = ?
		ORDER BY date ASC, created_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		var (
			p               ledger.Payment
			amount          string
			date, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.FromUser, &p.ToUser, &p.GroupID, &amount,
			&p.Amount.Currency, &p.Description, &date, &createdAt); err != nil {
			return nil, err
		}
		p.Amount.Value = mustDecimal(amount)
		p.Date = parseTime(date)
		p.CreatedAt = parseTime(createdAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const settlementColumns = "id, from_user, to_user, group_id, amount, currency, description, settled_at, created_at"

func (s *Store) CreateSettlement(ctx context.Context, st *ledger.Settlement) error {
	return createSettlement(ctx, s.db, st)
}

func createSettlement(ctx context.Context, q dbtx, st *ledger.Settlement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settlements (`+settlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.FromUser, st.ToUser, st.GroupID,
		st.Amount.Value.String(), st.Amount.Currency,
		st.Description, fmtTime(st.SettledAt), fmtTime(st.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

func (s *Store) GetSettlement(ctx context.Context, id ledger.SettlementID) (*ledger.Settlement, error) {
	return getSettlement(ctx, s.db, id)
}

func getSettlement(ctx context.Context, q dbtx, id ledger.SettlementID) (*ledger.Settlement, error) {
	var (
		st                   ledger.Settlement
		amount               string
		settledAt, createdAt string
	)
	err := q.QueryRowContext(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, id).
		Scan(&st.ID, &st.FromUser, &st.ToUser, &st.GroupID, &amount, &st.Amount.Currency,
			&st.Description, &settledAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Amount.Value = mustDecimal(amount)
	st.SettledAt = parseTime(settledAt)
	st.CreatedAt = parseTime(createdAt)
	return &st, nil
}

func (s *Store) DeleteSettlement(ctx context.Context, id ledger.SettlementID) error {
	return deleteSettlement(ctx, s.db, id)
}

func deleteSettlement(ctx context.Context, q dbtx, id ledger.SettlementID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM settlements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return requireRow(res, "settlement", string(id))
}

func groupSettlements(ctx context.Context, q dbtx, groupID ledger.GroupID) ([]ledger.Settlement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE group_id = ?
		ORDER BY settled_at ASC, created_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var settlements []ledger.Settlement
	for rows.Next() {
		var (
			st                   ledger.Settlement
			amount               string
			settledAt, createdAt string
		)
		if err := rows.Scan(&st.ID, &st.FromUser, &st.ToUser, &st.GroupID, &amount,
			&st.Amount.Currency, &st.Description, &settledAt, &createdAt); err != nil {
			return nil, err
		}
		st.Amount.Value = mustDecimal(amount)
		st.SettledAt = parseTime(settledAt)
		st.CreatedAt = parseTime(createdAt)
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}

// =============================================================================
// GROUPS (ledger.GroupStore)
// =============================================================================

const groupColumns = "id, name, description, created_by, currency, status, join_code, created_at, updated_at"

func (s *Store) CreateGroup(ctx context.Context, g *ledger.Group) error {
	return createGroup(ctx, s.db, g)
}

func createGroup(ctx context.Context, q dbtx, g *ledger.Group) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.CreatedBy, g.Currency, g.Status,
		g.JoinCode, fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id ledger.GroupID) (*ledger.Group, error) {
	return getGroupWhere(ctx, s.db, "id = ?", id)
}

func (s *Store) GetGroupByJoinCode(ctx context.Context, code string) (*ledger.Group, error) {
	return getGroupWhere(ctx, s.db, "join_code = ?", code)
}

func getGroupWhere(ctx context.Context, q dbtx, where string, arg any) (*ledger.Group, error) {
	var (
		g                  ledger.Group
		createdAt, updated string
	)
	err := q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE `+where, arg).
		Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &g.Currency, &g.Status,
			&g.JoinCode, &createdAt, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updated)
	return &g, nil
}

func (s *Store) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	return joinCodeExists(ctx, s.db, code)
}

func joinCodeExists(ctx context.Context, q dbtx, code string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups WHERE join_code = ?`, code).Scan(&count)
	return count > 0, err
}

// =============================================================================
// MEMBERSHIP (ledger.MembershipStore)
// =============================================================================

const memberColumns = "group_id, user_id, role, status, balance, currency, joined_at"

func (s *Store) CreateMembership(ctx context.Context, m *ledger.Membership) error {
	return createMembership(ctx, s.db, m)
}

func createMembership(ctx context.Context, q dbtx, m *ledger.Membership) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO group_members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.GroupID, m.UserID, m.Role, m.Status,
		m.Balance.Value.String(), m.Balance.Currency, fmtTime(m.JoinedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Invalid("user_id", "already a member of the group", ledger.ErrForbidden)
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID) (*ledger.Membership, error) {
	return getMembership(ctx, s.db, groupID, userID)
}

func getMembership(ctx context.Context, q dbtx, groupID ledger.GroupID, userID ledger.UserID) (*ledger.Membership, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM group_members
		WHERE group_id = ? AND user_id = ?`, groupID, userID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) ActiveMembers(ctx context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	return activeMembers(ctx, s.db, groupID)
}

func activeMembers(ctx context.Context, q dbtx, groupID ledger.GroupID) ([]ledger.Membership, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM group_members
		WHERE group_id = ? AND status = 'active'
		ORDER BY joined_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []ledger.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func scanMembership(row scanner) (*ledger.Membership, error) {
	var (
		m        ledger.Membership
		balance  string
		joinedAt string
	)
	err := row.Scan(&m.GroupID, &m.UserID, &m.Role, &m.Status, &balance, &m.Balance.Currency, &joinedAt)
	if err != nil {
		return nil, err
	}
	m.Balance.Value = mustDecimal(balance)
	m.JoinedAt = parseTime(joinedAt)
	return &m, nil
}

func (s *Store) SetMemberStatus(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID, status ledger.MemberStatus) error {
	return setMemberStatus(ctx, s.db, groupID, userID, status)
}

func setMemberStatus(ctx context.Context, q dbtx, groupID ledger.GroupID, userID ledger.UserID, status ledger.MemberStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE group_members SET status = ?
		WHERE group_id = ? AND user_id = ?`, status, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member status: %w", err)
	}
	return requireRow(res, "member", string(userID))
}

func (s *Store) UpdateMemberBalance(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID, balance ledger.Money) error {
	return updateMemberBalance(ctx, s.db, groupID, userID, balance)
}

func updateMemberBalance(ctx context.Context, q dbtx, groupID ledger.GroupID, userID ledger.UserID, balance ledger.Money) error {
	res, err := q.ExecContext(ctx, `
		UPDATE group_members SET balance = ?, currency = ?
		WHERE group_id = ? AND user_id = ?`,
		balance.Value.String(), balance.Currency, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member balance: %w", err)
	}
	return requireRow(res, "member", string(userID))
}

// =============================================================================
// USERS (ledger.UserStore)
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u *ledger.User) error {
	return createUser(ctx, s.db, u)
}

func createUser(ctx context.Context, q dbtx, u *ledger.User) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, name, created_at)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, fmtTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.Invalid("email", "email already registered", ledger.ErrForbidden)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q dbtx, id ledger.UserID) (*ledger.User, error) {
	var (
		u         ledger.User
		createdAt string
	)
	err := q.QueryRowContext(ctx, `SELECT id, email, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transaction-scoped view handed to WithTx callbacks.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GroupEvents(ctx context.Context, groupID ledger.GroupID) (ledger.EventSet, error) {
	return groupEvents(ctx, ts.tx, groupID)
}

func (ts *txStore) CreateExpense(ctx context.Context, e *ledger.Expense) error {
	return createExpense(ctx, ts.tx, e)
}

func (ts *txStore) GetExpense(ctx context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	return getExpense(ctx, ts.tx, id)
}

func (ts *txStore) UpdateExpense(ctx context.Context, e *ledger.Expense) error {
	return updateExpense(ctx, ts.tx, e)
}

func (ts *txStore) DeleteExpense(ctx context.Context, id ledger.ExpenseID) error {
	return deleteExpense(ctx, ts.tx, id)
}

func (ts *txStore) ListExpenses(ctx context.Context, groupID ledger.GroupID) ([]ledger.Expense, error) {
	return listExpenses(ctx, ts.tx, groupID)
}

func (ts *txStore) CreateSplit(ctx context.Context, sp *ledger.ExpenseSplit) error {
	return createSplit(ctx, ts.tx, sp)
}

func (ts *txStore) DeleteSplit(ctx context.Context, id ledger.SplitID) error {
	return deleteSplit(ctx, ts.tx, id)
}

func (ts *txStore) GetSplit(ctx context.Context, id ledger.SplitID) (*ledger.ExpenseSplit, error) {
	return getSplit(ctx, ts.tx, id)
}

func (ts *txStore) ExpenseSplits(ctx context.Context, expenseID ledger.ExpenseID) ([]ledger.ExpenseSplit, error) {
	return querySplits(ctx, ts.tx, `
		SELECT `+splitColumns+` FROM expense_splits
		WHERE expense_id = ?
		ORDER BY created_at ASC`, expenseID)
}

func (ts *txStore) CreatePayment(ctx context.Context, p *ledger.Payment) error {
	return createPayment(ctx, ts.tx, p)
}

func (ts *txStore) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	return deletePayment(ctx, ts.tx, id)
}

func (ts *txStore) CreateSettlement(ctx context.Context, st *ledger.Settlement) error {
	return createSettlement(ctx, ts.tx, st)
}

func (ts *txStore) GetSettlement(ctx context.Context, id ledger.SettlementID) (*ledger.Settlement, error) {
	return getSettlement(ctx, ts.tx, id)
}

func (ts *txStore) DeleteSettlement(ctx context.Context, id ledger.SettlementID) error {
	return deleteSettlement(ctx, ts.tx, id)
}

func (ts *txStore) CreateGroup(ctx context.Context, g *ledger.Group) error {
	return createGroup(ctx, ts.tx, g)
}

func (ts *txStore) GetGroup(ctx context.Context, id ledger.GroupID) (*ledger.Group, error) {
	return getGroupWhere(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) GetGroupByJoinCode(ctx context.Context, code string) (*ledger.Group, error) {
	return getGroupWhere(ctx, ts.tx, "join_code = ?", code)
}

func (ts *txStore) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	return joinCodeExists(ctx, ts.tx, code)
}

func (ts *txStore) CreateMembership(ctx context.Context, m *ledger.Membership) error {
	return createMembership(ctx, ts.tx, m)
}

func (ts *txStore) GetMembership(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID) (*ledger.Membership, error) {
	return getMembership(ctx, ts.tx, groupID, userID)
}

func (ts *txStore) ActiveMembers(ctx context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	return activeMembers(ctx, ts.tx, groupID)
}

func (ts *txStore) SetMemberStatus(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID, status ledger.MemberStatus) error {
	return setMemberStatus(ctx, ts.tx, groupID, userID, status)
}

func (ts *txStore) UpdateMemberBalance(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID, balance ledger.Money) error {
	return updateMemberBalance(ctx, ts.tx, groupID, userID, balance)
}

func (ts *txStore) CreateUser(ctx context.Context, u *ledger.User) error {
	return createUser(ctx, ts.tx, u)
}

func (ts *txStore) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return getUser(ctx, ts.tx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// requireRow maps a zero-row write to NotFound.
func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.NotFound(resource, id)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
