/*
dto.go - Request and response shapes for the HTTP API

PURPOSE:
  JSON structures exchanged with clients, kept separate from domain types.
  Request structs carry validator tags; response DTOs render Money as a
  two-decimal string next to its currency code, never as a float.
*/
package api

import (
	"time"

	"github.com/evensteven/ledger-engine/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

// Caller identity travels as an explicit user_id field (query parameter on
// GETs). Authentication is out of scope; the API trusts the declared id.

type CreateUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Currency    string `json:"currency" validate:"omitempty,len=3,uppercase"`
	UserID      string `json:"user_id" validate:"required"`
}

type JoinGroupRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6"`
	UserID   string `json:"user_id" validate:"required"`
}

type AddMemberRequest struct {
	UserID       string `json:"user_id" validate:"required"` // actor
	MemberUserID string `json:"member_user_id" validate:"required"`
	Role         string `json:"role" validate:"omitempty,oneof=admin member"`
}

type SetMemberStatusRequest struct {
	UserID string `json:"user_id" validate:"required"` // actor
	Status string `json:"status" validate:"required,oneof=active pending removed"`
}

type SplitRequest struct {
	UserID     string  `json:"user_id" validate:"required"`
	Amount     *string `json:"amount"`
	Percentage *string `json:"percentage"`
}

type CreateExpenseRequest struct {
	PaidBy      string         `json:"paid_by" validate:"required"`
	Amount      string         `json:"amount" validate:"required"`
	Description string         `json:"description"`
	Date        string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Splits      []SplitRequest `json:"splits" validate:"dive"`
}

type UpdateExpenseRequest struct {
	Amount      *string `json:"amount"`
	Description *string `json:"description"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type TransferRequest struct {
	FromUser    string `json:"from_user" validate:"required"`
	ToUser      string `json:"to_user" validate:"required"`
	GroupID     string `json:"group_id"`
	Amount      string `json:"amount" validate:"required"`
	Currency    string `json:"currency" validate:"omitempty,len=3,uppercase"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type UpdateBalancesRequest struct {
	UserID string `json:"user_id" validate:"required"` // actor, must be admin
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type GroupDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	JoinCode    string `json:"join_code"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
}

type ExpenseDTO struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	PaidBy      string     `json:"paid_by"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Splits      []SplitDTO `json:"splits,omitempty"`
}

type SplitDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Amount     string  `json:"amount"`
	Percentage *string `json:"percentage,omitempty"`
}

type TransferDTO struct {
	ID          string `json:"id"`
	FromUser    string `json:"from_user"`
	ToUser      string `json:"to_user"`
	GroupID     string `json:"group_id,omitempty"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type MemberBalanceDTO struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Balance        string `json:"balance,omitempty"`
	BalanceWithYou string `json:"balance_with_you,omitempty"`
	Status         string `json:"status"`
	IsViewer       bool   `json:"is_viewer,omitempty"`
}

type BalanceSummaryDTO struct {
	GroupID        string             `json:"group_id"`
	GroupName      string             `json:"group_name"`
	Currency       string             `json:"currency"`
	Members        []MemberBalanceDTO `json:"members"`
	TotalOwedToYou string             `json:"total_owed_to_you"`
	TotalYouOwe    string             `json:"total_you_owe"`
	YourNetBalance string             `json:"your_net_balance"`
}

type MyBalanceDTO struct {
	GroupID             string `json:"group_id"`
	UserID              string `json:"user_id"`
	Balance             string `json:"balance"`
	Currency            string `json:"currency"`
	ExpensesPaid        string `json:"expenses_paid"`
	ExpenseSharesOwed   string `json:"expense_shares_owed"`
	PaymentsMade        string `json:"payments_made"`
	PaymentsReceived    string `json:"payments_received"`
	SettlementsMade     string `json:"settlements_made"`
	SettlementsReceived string `json:"settlements_received"`
}

type UpdateBalancesDTO struct {
	GroupID        string   `json:"group_id"`
	UpdatedMembers []string `json:"updated_members"`
}

type SuggestionDTO struct {
	From     string `json:"from"`
	To       string `json:"to"`
	FromName string `json:"from_name"`
	ToName   string `json:"to_name"`
	Amount   string `json:"amount"`
}

type PaymentSummaryDTO struct {
	GroupID     string             `json:"group_id"`
	GroupName   string             `json:"group_name"`
	Currency    string             `json:"currency"`
	Members     []MemberBalanceDTO `json:"members"`
	TotalOwed   string             `json:"total_owed"`
	TotalOwing  string             `json:"total_owing"`
	NetBalance  string             `json:"net_balance"`
	Suggestions []SuggestionDTO    `json:"suggestions"`
}

// =============================================================================
// DTO CONSTRUCTORS
// =============================================================================

const dateLayout = "2006-01-02"

func toUserDTO(u *ledger.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toGroupDTO(g *ledger.Group) GroupDTO {
	return GroupDTO{
		ID:          string(g.ID),
		Name:        g.Name,
		Description: g.Description,
		Currency:    g.Currency,
		Status:      string(g.Status),
		JoinCode:    g.JoinCode,
		CreatedBy:   string(g.CreatedBy),
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
}

func toExpenseDTO(e *ledger.Expense, splits []ledger.ExpenseSplit) ExpenseDTO {
	dto := ExpenseDTO{
		ID:          string(e.ID),
		GroupID:     string(e.GroupID),
		PaidBy:      string(e.PaidBy),
		Amount:      e.Amount.StringFixed(),
		Currency:    e.Amount.Currency,
		Description: e.Description,
		Date:        e.Date.Format(dateLayout),
	}
	for _, sp := range splits {
		var pct *string
		if sp.Percentage != nil {
			p := sp.Percentage.String()
			pct = &p
		}
		dto.Splits = append(dto.Splits, SplitDTO{
			ID:         string(sp.ID),
			UserID:     string(sp.UserID),
			Amount:     sp.Amount.StringFixed(),
			Percentage: pct,
		})
	}
	return dto
}

func toPaymentDTO(p *ledger.Payment) TransferDTO {
	return TransferDTO{
		ID:          string(p.ID),
		FromUser:    string(p.FromUser),
		ToUser:      string(p.ToUser),
		GroupID:     string(p.GroupID),
		Amount:      p.Amount.StringFixed(),
		Currency:    p.Amount.Currency,
		Description: p.Description,
		Date:        p.Date.Format(dateLayout),
	}
}

func toSettlementDTO(s *ledger.Settlement) TransferDTO {
	return TransferDTO{
		ID:          string(s.ID),
		FromUser:    string(s.FromUser),
		ToUser:      string(s.ToUser),
		GroupID:     string(s.GroupID),
		Amount:      s.Amount.StringFixed(),
		Currency:    s.Amount.Currency,
		Description: s.Description,
		Date:        s.SettledAt.Format(dateLayout),
	}
}
