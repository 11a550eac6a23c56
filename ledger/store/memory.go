// Package store provides in-memory ledger.Store implementations, used by
// tests and dev servers. Production persistence lives in store/sqlite.
package store

import (
	"context"
	"sync"

	"github.com/evensteven/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in insertion-order slices. Reads scan; at test
// scale that is simpler and no slower than indexing.
type Memory struct {
	mu          sync.RWMutex
	users       []ledger.User
	groups      []ledger.Group
	members     []ledger.Membership
	expenses    []ledger.Expense
	splits      []ledger.ExpenseSplit
	payments    []ledger.Payment
	settlements []ledger.Settlement
}

func NewMemory() *Memory {
	return &Memory{}
}

// -----------------------------------------------------------------------------
// Event log
// -----------------------------------------------------------------------------

func (m *Memory) GroupEvents(_ context.Context, groupID ledger.GroupID) (ledger.EventSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groupEventsLocked(groupID), nil
}

func (m *Memory) groupEventsLocked(groupID ledger.GroupID) ledger.EventSet {
	var set ledger.EventSet
	inGroup := make(map[ledger.ExpenseID]bool)
	for _, e := range m.expenses {
		if e.GroupID == groupID {
			set.Expenses = append(set.Expenses, e)
			inGroup[e.ID] = true
		}
	}
	for _, s := range m.splits {
		if inGroup[s.ExpenseID] {
			set.Splits = append(set.Splits, s)
		}
	}
	for _, p := range m.payments {
		if p.GroupID == groupID {
			set.Payments = append(set.Payments, p)
		}
	}
	for _, s := range m.settlements {
		if s.GroupID == groupID {
			set.Settlements = append(set.Settlements, s)
		}
	}
	return set
}

// -----------------------------------------------------------------------------
// Expenses and splits
// -----------------------------------------------------------------------------

func (m *Memory) CreateExpense(_ context.Context, e *ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, *e)
	return nil
}

func (m *Memory) GetExpense(_ context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExpenseLocked(id), nil
}

func (m *Memory) getExpenseLocked(id ledger.ExpenseID) *ledger.Expense {
	for i := range m.expenses {
		if m.expenses[i].ID == id {
			e := m.expenses[i]
			return &e
		}
	}
	return nil
}

func (m *Memory) UpdateExpense(_ context.Context, e *ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateExpenseLocked(e)
}

func (m *Memory) updateExpenseLocked(e *ledger.Expense) error {
	for i := range m.expenses {
		if m.expenses[i].ID == e.ID {
			m.expenses[i] = *e
			return nil
		}
	}
	return ledger.NotFound("expense", string(e.ID))
}

func (m *Memory) DeleteExpense(_ context.Context, id ledger.ExpenseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteExpenseLocked(id)
}

func (m *Memory) deleteExpenseLocked(id ledger.ExpenseID) error {
	kept := m.expenses[:0]
	found := false
	for _, e := range m.expenses {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	m.expenses = kept
	if !found {
		return ledger.NotFound("expense", string(id))
	}

	// Cascade to splits.
	keptSplits := m.splits[:0]
	for _, s := range m.splits {
		if s.ExpenseID != id {
			keptSplits = append(keptSplits, s)
		}
	}
	m.splits = keptSplits
	return nil
}

func (m *Memory) ListExpenses(_ context.Context, groupID ledger.GroupID) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.Expense
	for _, e := range m.expenses {
		if e.GroupID == groupID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) CreateSplit(_ context.Context, s *ledger.ExpenseSplit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSplitLocked(s)
}

func (m *Memory) createSplitLocked(s *ledger.ExpenseSplit) error {
	for _, existing := range m.splits {
		if existing.ExpenseID == s.ExpenseID && existing.UserID == s.UserID {
			return ledger.ErrDuplicateSplit
		}
	}
	m.splits = append(m.splits, *s)
	return nil
}

func (m *Memory) DeleteSplit(_ context.Context, id ledger.SplitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSplitLocked(id)
}

func (m *Memory) deleteSplitLocked(id ledger.SplitID) error {
	kept := m.splits[:0]
	found := false
	for _, s := range m.splits {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	m.splits = kept
	if !found {
		return ledger.NotFound("split", string(id))
	}
	return nil
}

func (m *Memory) GetSplit(_ context.Context, id ledger.SplitID) (*ledger.ExpenseSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSplitLocked(id), nil
}

func (m *Memory) getSplitLocked(id ledger.SplitID) *ledger.ExpenseSplit {
	for i := range m.splits {
		if m.splits[i].ID == id {
			s := m.splits[i]
			return &s
		}
	}
	return nil
}

func (m *Memory) ExpenseSplits(_ context.Context, expenseID ledger.ExpenseID) ([]ledger.ExpenseSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.ExpenseSplit
	for _, s := range m.splits {
		if s.ExpenseID == expenseID {
			result = append(result, s)
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Payments and settlements
// -----------------------------------------------------------------------------

func (m *Memory) CreatePayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, *p)
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentLocked(id), nil
}

func (m *Memory) getPaymentLocked(id ledger.PaymentID) *ledger.Payment {
	for i := range m.payments {
		if m.payments[i].ID == id {
			p := m.payments[i]
			return &p
		}
	}
	return nil
}

func (m *Memory) DeletePayment(_ context.Context, id ledger.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) deletePaymentLocked(id ledger.PaymentID) error {
	kept := m.payments[:0]
	found := false
	for _, p := range m.payments {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	m.payments = kept
	if !found {
		return ledger.NotFound("payment", string(id))
	}
	return nil
}

func (m *Memory) CreateSettlement(_ context.Context, s *ledger.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements = append(m.settlements, *s)
	return nil
}

func (m *Memory) GetSettlement(_ context.Context, id ledger.SettlementID) (*ledger.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSettlementLocked(id), nil
}

func (m *Memory) getSettlementLocked(id ledger.SettlementID) *ledger.Settlement {
	for i := range m.settlements {
		if m.settlements[i].ID == id {
			s := m.settlements[i]
			return &s
		}
	}
	return nil
}

func (m *Memory) DeleteSettlement(_ context.Context, id ledger.SettlementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSettlementLocked(id)
}

func (m *Memory) deleteSettlementLocked(id ledger.SettlementID) error {
	kept := m.settlements[:0]
	found := false
	for _, s := range m.settlements {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	m.settlements = kept
	if !found {
		return ledger.NotFound("settlement", string(id))
	}
	return nil
}

// -----------------------------------------------------------------------------
// Groups, members, users
// -----------------------------------------------------------------------------

func (m *Memory) CreateGroup(_ context.Context, g *ledger.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, *g)
	return nil
}

func (m *Memory) GetGroup(_ context.Context, id ledger.GroupID) (*ledger.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getGroupLocked(id), nil
}

func (m *Memory) getGroupLocked(id ledger.GroupID) *ledger.Group {
	for i := range m.groups {
		if m.groups[i].ID == id {
			g := m.groups[i]
			return &g
		}
	}
	return nil
}

func (m *Memory) GetGroupByJoinCode(_ context.Context, code string) (*ledger.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getGroupByJoinCodeLocked(code), nil
}

func (m *Memory) getGroupByJoinCodeLocked(code string) *ledger.Group {
	for i := range m.groups {
		if m.groups[i].JoinCode == code {
			g := m.groups[i]
			return &g
		}
	}
	return nil
}

func (m *Memory) JoinCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getGroupByJoinCodeLocked(code) != nil, nil
}

func (m *Memory) CreateMembership(_ context.Context, mb *ledger.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createMembershipLocked(mb)
}

func (m *Memory) createMembershipLocked(mb *ledger.Membership) error {
	for _, existing := range m.members {
		if existing.GroupID == mb.GroupID && existing.UserID == mb.UserID {
			return ledger.Invalid("user_id", "already a member of the group", ledger.ErrForbidden)
		}
	}
	m.members = append(m.members, *mb)
	return nil
}

func (m *Memory) GetMembership(_ context.Context, groupID ledger.GroupID, userID ledger.UserID) (*ledger.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getMembershipLocked(groupID, userID), nil
}

func (m *Memory) getMembershipLocked(groupID ledger.GroupID, userID ledger.UserID) *ledger.Membership {
	for i := range m.members {
		if m.members[i].GroupID == groupID && m.members[i].UserID == userID {
			mb := m.members[i]
			return &mb
		}
	}
	return nil
}

func (m *Memory) ActiveMembers(_ context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeMembersLocked(groupID), nil
}

func (m *Memory) activeMembersLocked(groupID ledger.GroupID) []ledger.Membership {
	var result []ledger.Membership
	for _, mb := range m.members {
		if mb.GroupID == groupID && mb.Status == ledger.MemberActive {
			result = append(result, mb)
		}
	}
	return result
}

func (m *Memory) SetMemberStatus(_ context.Context, groupID ledger.GroupID, userID ledger.UserID, status ledger.MemberStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setMemberStatusLocked(groupID, userID, status)
}

func (m *Memory) setMemberStatusLocked(groupID ledger.GroupID, userID ledger.UserID, status ledger.MemberStatus) error {
	for i := range m.members {
		if m.members[i].GroupID == groupID && m.members[i].UserID == userID {
			m.members[i].Status = status
			return nil
		}
	}
	return ledger.NotFound("member", string(userID))
}

func (m *Memory) UpdateMemberBalance(_ context.Context, groupID ledger.GroupID, userID ledger.UserID, balance ledger.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateMemberBalanceLocked(groupID, userID, balance)
}

func (m *Memory) updateMemberBalanceLocked(groupID ledger.GroupID, userID ledger.UserID, balance ledger.Money) error {
	for i := range m.members {
		if m.members[i].GroupID == groupID && m.members[i].UserID == userID {
			m.members[i].Balance = balance
			return nil
		}
	}
	return ledger.NotFound("member", string(userID))
}

func (m *Memory) CreateUser(_ context.Context, u *ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, *u)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getUserLocked(id), nil
}

func (m *Memory) getUserLocked(id ledger.UserID) *ledger.User {
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot taken up front and restored if fn errors.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	users       []ledger.User
	groups      []ledger.Group
	members     []ledger.Membership
	expenses    []ledger.Expense
	splits      []ledger.ExpenseSplit
	payments    []ledger.Payment
	settlements []ledger.Settlement
}

func (tm *TxMemory) snapshot() memorySnapshot {
	return memorySnapshot{
		users:       append([]ledger.User{}, tm.users...),
		groups:      append([]ledger.Group{}, tm.groups...),
		members:     append([]ledger.Membership{}, tm.members...),
		expenses:    append([]ledger.Expense{}, tm.expenses...),
		splits:      append([]ledger.ExpenseSplit{}, tm.splits...),
		payments:    append([]ledger.Payment{}, tm.payments...),
		settlements: append([]ledger.Settlement{}, tm.settlements...),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.users = s.users
	tm.groups = s.groups
	tm.members = s.members
	tm.expenses = s.expenses
	tm.splits = s.splits
	tm.payments = s.payments
	tm.settlements = s.settlements
}

// txMemoryView exposes the parent's unlocked internals; the parent's lock is
// held for the whole transaction.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GroupEvents(_ context.Context, groupID ledger.GroupID) (ledger.EventSet, error) {
	return tv.parent.groupEventsLocked(groupID), nil
}

func (tv *txMemoryView) CreateExpense(_ context.Context, e *ledger.Expense) error {
	tv.parent.expenses = append(tv.parent.expenses, *e)
	return nil
}

func (tv *txMemoryView) GetExpense(_ context.Context, id ledger.ExpenseID) (*ledger.Expense, error) {
	return tv.parent.getExpenseLocked(id), nil
}

func (tv *txMemoryView) UpdateExpense(_ context.Context, e *ledger.Expense) error {
	return tv.parent.updateExpenseLocked(e)
}

func (tv *txMemoryView) DeleteExpense(_ context.Context, id ledger.ExpenseID) error {
	return tv.parent.deleteExpenseLocked(id)
}

func (tv *txMemoryView) ListExpenses(_ context.Context, groupID ledger.GroupID) ([]ledger.Expense, error) {
	var result []ledger.Expense
	for _, e := range tv.parent.expenses {
		if e.GroupID == groupID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (tv *txMemoryView) CreateSplit(_ context.Context, s *ledger.ExpenseSplit) error {
	return tv.parent.createSplitLocked(s)
}

func (tv *txMemoryView) DeleteSplit(_ context.Context, id ledger.SplitID) error {
	return tv.parent.deleteSplitLocked(id)
}

func (tv *txMemoryView) GetSplit(_ context.Context, id ledger.SplitID) (*ledger.ExpenseSplit, error) {
	return tv.parent.getSplitLocked(id), nil
}

func (tv *txMemoryView) ExpenseSplits(_ context.Context, expenseID ledger.ExpenseID) ([]ledger.ExpenseSplit, error) {
	var result []ledger.ExpenseSplit
	for _, s := range tv.parent.splits {
		if s.ExpenseID == expenseID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (tv *txMemoryView) CreatePayment(_ context.Context, p *ledger.Payment) error {
	tv.parent.payments = append(tv.parent.payments, *p)
	return nil
}

func (tv *txMemoryView) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return tv.parent.getPaymentLocked(id), nil
}

func (tv *txMemoryView) DeletePayment(_ context.Context, id ledger.PaymentID) error {
	return tv.parent.deletePaymentLocked(id)
}

func (tv *txMemoryView) CreateSettlement(_ context.Context, s *ledger.Settlement) error {
	tv.parent.settlements = append(tv.parent.settlements, *s)
	return nil
}

func (tv *txMemoryView) GetSettlement(_ context.Context, id ledger.SettlementID) (*ledger.Settlement, error) {
	return tv.parent.getSettlementLocked(id), nil
}

func (tv *txMemoryView) DeleteSettlement(_ context.Context, id ledger.SettlementID) error {
	return tv.parent.deleteSettlementLocked(id)
}

func (tv *txMemoryView) CreateGroup(_ context.Context, g *ledger.Group) error {
	tv.parent.groups = append(tv.parent.groups, *g)
	return nil
}

func (tv *txMemoryView) GetGroup(_ context.Context, id ledger.GroupID) (*ledger.Group, error) {
	return tv.parent.getGroupLocked(id), nil
}

func (tv *txMemoryView) GetGroupByJoinCode(_ context.Context, code string) (*ledger.Group, error) {
	return tv.parent.getGroupByJoinCodeLocked(code), nil
}

func (tv *txMemoryView) JoinCodeExists(_ context.Context, code string) (bool, error) {
	return tv.parent.getGroupByJoinCodeLocked(code) != nil, nil
}

func (tv *txMemoryView) CreateMembership(_ context.Context, mb *ledger.Membership) error {
	return tv.parent.createMembershipLocked(mb)
}

func (tv *txMemoryView) GetMembership(_ context.Context, groupID ledger.GroupID, userID ledger.UserID) (*ledger.Membership, error) {
	return tv.parent.getMembershipLocked(groupID, userID), nil
}

func (tv *txMemoryView) ActiveMembers(_ context.Context, groupID ledger.GroupID) ([]ledger.Membership, error) {
	return tv.parent.activeMembersLocked(groupID), nil
}

func (tv *txMemoryView) SetMemberStatus(_ context.Context, groupID ledger.GroupID, userID ledger.UserID, status ledger.MemberStatus) error {
	return tv.parent.setMemberStatusLocked(groupID, userID, status)
}

func (tv *txMemoryView) UpdateMemberBalance(_ context.Context, groupID ledger.GroupID, userID ledger.UserID, balance ledger.Money) error {
	return tv.parent.updateMemberBalanceLocked(groupID, userID, balance)
}

func (tv *txMemoryView) CreateUser(_ context.Context, u *ledger.User) error {
	tv.parent.users = append(tv.parent.users, *u)
	return nil
}

func (tv *txMemoryView) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	return tv.parent.getUserLocked(id), nil
}
