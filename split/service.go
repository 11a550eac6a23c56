/*
Package split is the write path of the shared-expense system.

PURPOSE:
  Every mutation that can move a balance goes through this service: group
  and membership management, expenses and their splits, payments, and
  settlements. Each mutation validates, writes the event, and recomputes
  the cached balances of exactly the members it can affect, all inside one
  store transaction. Either the event and the fresh balances commit
  together or nothing does.

RECOMPUTE SETS:
  expense created/updated  -> payer + split users
  split added/removed      -> payer + the split's user
  expense deleted          -> all active members
  payment / settlement     -> both parties (when group-scoped)
  member removed           -> all remaining active members
  member reactivated       -> that member

FILES:
  service.go  - service type, group and membership operations
  expense.go  - expenses and splits
  transfer.go - payments and settlements

SEE ALSO:
  - ledger/recompute.go: the recompute mechanics this package drives
*/
package split

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evensteven/ledger-engine/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service coordinates validation, event writes, and balance recomputation.
type Service struct {
	store ledger.TxStore
	now   func() time.Time
}

func NewService(store ledger.TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the service clock. For tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store exposes the underlying store for read paths (summaries, lookups).
func (s *Service) Store() ledger.TxStore { return s.store }

// =============================================================================
// USERS
// =============================================================================

type CreateUserInput struct {
	Email string
	Name  string
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*ledger.User, error) {
	if in.Email == "" {
		return nil, ledger.Invalid("email", "email is required", ledger.ErrInvalidAmount)
	}
	u := &ledger.User{
		ID:        ledger.UserID(uuid.NewString()),
		Email:     in.Email,
		Name:      in.Name,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// =============================================================================
// GROUPS
// =============================================================================

type CreateGroupInput struct {
	Name        string
	Description string
	Currency    string
	CreatorID   ledger.UserID
}

// CreateGroup creates the group and enrolls the creator as an active admin
// with a zero balance.
func (s *Service) CreateGroup(ctx context.Context, in CreateGroupInput) (*ledger.Group, error) {
	if in.Name == "" {
		return nil, ledger.Invalid("name", "name is required", ledger.ErrInvalidAmount)
	}
	creator, err := s.store.GetUser(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ledger.NotFound("user", string(in.CreatorID))
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	code, err := s.uniqueJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	g := &ledger.Group{
		ID:          ledger.GroupID(uuid.NewString()),
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   in.CreatorID,
		Currency:    currency,
		Status:      ledger.GroupActive,
		JoinCode:    code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		return tx.CreateMembership(ctx, &ledger.Membership{
			GroupID:  g.ID,
			UserID:   in.CreatorID,
			Role:     ledger.RoleAdmin,
			Status:   ledger.MemberActive,
			Balance:  ledger.ZeroMoney(currency),
			JoinedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// uniqueJoinCode generates a 6-character code not used by any group.
func (s *Service) uniqueJoinCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		for i := range buf {
			buf[i] = joinCodeAlphabet[int(buf[i])%len(joinCodeAlphabet)]
		}
		code := string(buf)

		taken, err := s.store.JoinCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique join code")
}

// =============================================================================
// MEMBERSHIP
// =============================================================================

// JoinGroup enrolls the user in the group matching the join code, as an
// active member with a zero balance.
func (s *Service) JoinGroup(ctx context.Context, code string, userID ledger.UserID) (*ledger.Group, error) {
	group, err := s.store.GetGroupByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if group == nil || group.Status != ledger.GroupActive {
		return nil, ledger.NotFound("group", code)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledger.NotFound("user", string(userID))
	}

	existing, err := s.store.GetMembership(ctx, group.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == ledger.MemberActive {
			return nil, ledger.Invalid("user_id", "already a member of the group", ledger.ErrForbidden)
		}
		// Rejoining a group the user was removed from reactivates the row.
		return group, s.reactivateMember(ctx, group, userID)
	}

	err = s.store.CreateMembership(ctx, &ledger.Membership{
		GroupID:  group.ID,
		UserID:   userID,
		Role:     ledger.RoleMember,
		Status:   ledger.MemberActive,
		Balance:  ledger.ZeroMoney(group.Currency),
		JoinedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// AddMember directly enrolls a user; the actor must be an active admin.
func (s *Service) AddMember(ctx context.Context, groupID ledger.GroupID, actor, userID ledger.UserID, role ledger.Role) error {
	group, err := s.requireGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, groupID, actor); err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ledger.NotFound("user", string(userID))
	}
	if role == "" {
		role = ledger.RoleMember
	}
	return s.store.CreateMembership(ctx, &ledger.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		Status:   ledger.MemberActive,
		Balance:  ledger.ZeroMoney(group.Currency),
		JoinedAt: s.now(),
	})
}

// SetMemberStatus changes a member's status; the actor must be an active
// admin. Removal recomputes every remaining active member, since the removed
// member's events stay in the ledger. Reactivation recomputes the member.
func (s *Service) SetMemberStatus(ctx context.Context, groupID ledger.GroupID, actor, userID ledger.UserID, status ledger.MemberStatus) error {
	group, err := s.requireGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, groupID, actor); err != nil {
		return err
	}
	member, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ledger.NotFound("member", string(userID))
	}

	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SetMemberStatus(ctx, groupID, userID, status); err != nil {
			return err
		}
		rec := ledger.NewRecomputer(tx)
		switch status {
		case ledger.MemberRemoved:
			_, err := rec.RecomputeAll(ctx, group)
			return err
		case ledger.MemberActive:
			return rec.Recompute(ctx, group, userID)
		}
		return nil
	})
}

func (s *Service) reactivateMember(ctx context.Context, group *ledger.Group, userID ledger.UserID) error {
	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SetMemberStatus(ctx, group.ID, userID, ledger.MemberActive); err != nil {
			return err
		}
		return ledger.NewRecomputer(tx).Recompute(ctx, group, userID)
	})
}

// UpdateBalances is the manual repair operation: recompute every active
// member's cached balance. Admin only. Returns the recomputed user ids.
func (s *Service) UpdateBalances(ctx context.Context, groupID ledger.GroupID, actor ledger.UserID) ([]ledger.UserID, error) {
	group, err := s.requireGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, groupID, actor); err != nil {
		return nil, err
	}

	var ids []ledger.UserID
	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		var err error
		ids, err = ledger.NewRecomputer(tx).RecomputeAll(ctx, group)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// =============================================================================
// SHARED GUARDS
// =============================================================================

func (s *Service) requireGroup(ctx context.Context, groupID ledger.GroupID) (*ledger.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || group.Status == ledger.GroupDeleted {
		return nil, ledger.NotFound("group", string(groupID))
	}
	return group, nil
}

// requireActiveMember fails with Forbidden unless the user is an active
// member of the group.
func (s *Service) requireActiveMember(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID) (*ledger.Membership, error) {
	member, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.Status != ledger.MemberActive {
		return nil, ledger.Invalid("user_id", "not an active member of the group", ledger.ErrForbidden)
	}
	return member, nil
}

func (s *Service) requireAdmin(ctx context.Context, groupID ledger.GroupID, userID ledger.UserID) error {
	member, err := s.requireActiveMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member.Role != ledger.RoleAdmin {
		return ledger.Invalid("user_id", "admin role required", ledger.ErrForbidden)
	}
	return nil
}
