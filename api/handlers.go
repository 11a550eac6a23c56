/*
handlers.go - HTTP handlers for the shared-expense API

PURPOSE:
  Exposes the ledger engine and write path over REST. Handlers parse and
  validate the request, delegate to the split service or the ledger
  read-side, and serialize the response.

ENDPOINTS:
  Users:
    POST   /api/users                     Create user
    GET    /api/users/{id}                Get user

  Groups:
    POST   /api/groups                    Create group (creator becomes admin)
    GET    /api/groups/{id}               Get group
    POST   /api/groups/join               Join by code
    POST   /api/groups/{id}/members       Add member (admin)
    PUT    /api/groups/{id}/members/{userID}/status  Change status (admin)

  Expenses:
    POST   /api/groups/{id}/expenses      Create expense with splits
    GET    /api/groups/{id}/expenses      List expenses
    PUT    /api/expenses/{id}             Edit expense (splits untouched)
    DELETE /api/expenses/{id}             Delete expense (cascades)

  Transfers:
    POST   /api/payments                  Record payment
    DELETE /api/payments/{id}             Delete payment
    POST   /api/settlements               Record settlement
    DELETE /api/settlements/{id}          Delete settlement

  Balances:
    GET    /api/groups/{id}/balance-summary   Viewer-relative summary
    GET    /api/groups/{id}/my-balance        Balance with component sums
    POST   /api/groups/{id}/update-balances   Recompute all (admin)
    GET    /api/groups/{id}/payment-summary   Absolute summary + plan

ERROR HANDLING:
  Domain errors map onto HTTP statuses: validation 400, not-found 404,
  forbidden 403, everything else 500. The JSON body is {error, field?}.

SECURITY NOTE:
  No authentication. The caller declares identity via user_id; endpoints
  that need authorization check membership and role against the store.

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/evensteven/ledger-engine/ledger"
	"github.com/evensteven/ledger-engine/split"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *split.Service
	Store   ledger.TxStore
	Calc    *ledger.Calculator
	Agg     *ledger.Aggregator

	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler creates a handler around the write-path service.
func NewHandler(svc *split.Service, log *slog.Logger) *Handler {
	store := svc.Store()
	return &Handler{
		Service:  svc,
		Store:    store,
		Calc:     ledger.NewCalculator(store),
		Agg:      ledger.NewAggregator(store),
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.Service.CreateUser(r.Context(), split.CreateUserInput{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := ledger.UserID(chi.URLParam(r, "id"))
	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found", "")
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// =============================================================================
// GROUP HANDLERS
// =============================================================================

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	group, err := h.Service.CreateGroup(r.Context(), split.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Currency:    req.Currency,
		CreatorID:   ledger.UserID(req.UserID),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupDTO(group))
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := ledger.GroupID(chi.URLParam(r, "id"))
	group, err := h.Store.GetGroup(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found", "")
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(group))
}

func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	var req JoinGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	group, err := h.Service.JoinGroup(r.Context(), req.JoinCode, ledger.UserID(req.UserID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(group))
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	var req AddMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Service.AddMember(r.Context(), groupID,
		ledger.UserID(req.UserID), ledger.UserID(req.MemberUserID), ledger.Role(req.Role))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) SetMemberStatus(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	memberID := ledger.UserID(chi.URLParam(r, "userID"))
	var req SetMemberStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Service.SetMemberStatus(r.Context(), groupID,
		ledger.UserID(req.UserID), memberID, ledger.MemberStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	var req CreateExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", "amount")
		return
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return
	}

	in := split.CreateExpenseInput{
		GroupID:     groupID,
		PaidBy:      ledger.UserID(req.PaidBy),
		Amount:      amount,
		Description: req.Description,
		Date:        date,
	}
	for _, sr := range req.Splits {
		si := split.SplitInput{UserID: ledger.UserID(sr.UserID)}
		if sr.Amount != nil {
			a, err := decimal.NewFromString(*sr.Amount)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid split amount", "splits")
				return
			}
			si.Amount = &a
		}
		if sr.Percentage != nil {
			p, err := decimal.NewFromString(*sr.Percentage)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid split percentage", "splits")
				return
			}
			si.Percentage = &p
		}
		in.Splits = append(in.Splits, si)
	}

	expense, err := h.Service.CreateExpense(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	splits, err := h.Store.ExpenseSplits(r.Context(), expense.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(expense, splits))
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	expenses, err := h.Store.ListExpenses(r.Context(), groupID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]ExpenseDTO, 0, len(expenses))
	for i := range expenses {
		splits, err := h.Store.ExpenseSplits(r.Context(), expenses[i].ID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		dtos = append(dtos, toExpenseDTO(&expenses[i], splits))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := ledger.ExpenseID(chi.URLParam(r, "id"))
	var req UpdateExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}

	var in split.UpdateExpenseInput
	if req.Amount != nil {
		a, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount", "amount")
			return
		}
		in.Amount = &a
	}
	in.Description = req.Description
	if req.Date != nil {
		d, ok := h.parseDate(w, *req.Date)
		if !ok {
			return
		}
		in.Date = &d
	}

	expense, err := h.Service.UpdateExpense(r.Context(), id, in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	splits, err := h.Store.ExpenseSplits(r.Context(), expense.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(expense, splits))
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := ledger.ExpenseID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteExpense(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

func (h *Handler) transferInput(w http.ResponseWriter, req TransferRequest) (split.TransferInput, bool) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", "amount")
		return split.TransferInput{}, false
	}
	date, ok := h.parseDate(w, req.Date)
	if !ok {
		return split.TransferInput{}, false
	}
	return split.TransferInput{
		FromUser:    ledger.UserID(req.FromUser),
		ToUser:      ledger.UserID(req.ToUser),
		GroupID:     ledger.GroupID(req.GroupID),
		Amount:      amount,
		Currency:    req.Currency,
		Description: req.Description,
		Date:        date,
	}, true
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, ok := h.transferInput(w, req)
	if !ok {
		return
	}

	payment, err := h.Service.RecordPayment(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	if err := h.Service.DeletePayment(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, ok := h.transferInput(w, req)
	if !ok {
		return
	}

	settlement, err := h.Service.RecordSettlement(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementDTO(settlement))
}

func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	id := ledger.SettlementID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteSettlement(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// requireViewer loads the group and checks that the user_id query parameter
// names an active member.
func (h *Handler) requireViewer(w http.ResponseWriter, r *http.Request) (*ledger.Group, ledger.UserID, bool) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	viewer := ledger.UserID(r.URL.Query().Get("user_id"))
	if viewer == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required", "user_id")
		return nil, "", false
	}

	group, err := h.Store.GetGroup(r.Context(), groupID)
	if err != nil {
		h.writeDomainError(w, err)
		return nil, "", false
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found", "")
		return nil, "", false
	}

	member, err := h.Store.GetMembership(r.Context(), groupID, viewer)
	if err != nil {
		h.writeDomainError(w, err)
		return nil, "", false
	}
	if member == nil || member.Status != ledger.MemberActive {
		writeError(w, http.StatusForbidden, "not an active member of the group", "user_id")
		return nil, "", false
	}
	return group, viewer, true
}

// BalanceSummary returns the group seen from the viewer's perspective.
func (h *Handler) BalanceSummary(w http.ResponseWriter, r *http.Request) {
	group, viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}

	summary, err := h.Agg.ViewerSummary(r.Context(), group, viewer)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := BalanceSummaryDTO{
		GroupID:        string(summary.GroupID),
		GroupName:      summary.GroupName,
		Currency:       summary.Currency,
		Members:        make([]MemberBalanceDTO, 0, len(summary.Members)),
		TotalOwedToYou: summary.TotalOwedToYou.StringFixed(),
		TotalYouOwe:    summary.TotalYouOwe.StringFixed(),
		YourNetBalance: summary.YourNetBalance.StringFixed(),
	}
	for _, m := range summary.Members {
		dto.Members = append(dto.Members, MemberBalanceDTO{
			UserID:         string(m.UserID),
			Email:          m.Email,
			Name:           m.Name,
			BalanceWithYou: m.BalanceWithYou.StringFixed(),
			Status:         string(m.Standing),
			IsViewer:       m.IsViewer,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// MyBalance returns the viewer's balance with its six component sums.
func (h *Handler) MyBalance(w http.ResponseWriter, r *http.Request) {
	group, viewer, ok := h.requireViewer(w, r)
	if !ok {
		return
	}

	breakdown, err := h.Calc.MemberBreakdown(r.Context(), group, viewer)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MyBalanceDTO{
		GroupID:             string(group.ID),
		UserID:              string(viewer),
		Balance:             breakdown.Net().StringFixed(),
		Currency:            group.Currency,
		ExpensesPaid:        breakdown.ExpensesPaid.StringFixed(),
		ExpenseSharesOwed:   breakdown.ExpenseSharesOwed.StringFixed(),
		PaymentsMade:        breakdown.PaymentsMade.StringFixed(),
		PaymentsReceived:    breakdown.PaymentsReceived.StringFixed(),
		SettlementsMade:     breakdown.SettlementsMade.StringFixed(),
		SettlementsReceived: breakdown.SettlementsReceived.StringFixed(),
	})
}

// UpdateBalances recomputes every active member's cached balance. Admin only.
func (h *Handler) UpdateBalances(w http.ResponseWriter, r *http.Request) {
	groupID := ledger.GroupID(chi.URLParam(r, "id"))
	var req UpdateBalancesRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids, err := h.Service.UpdateBalances(r.Context(), groupID, ledger.UserID(req.UserID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := UpdateBalancesDTO{GroupID: string(groupID), UpdatedMembers: make([]string, 0, len(ids))}
	for _, id := range ids {
		dto.UpdatedMembers = append(dto.UpdatedMembers, string(id))
	}
	writeJSON(w, http.StatusOK, dto)
}

// PaymentSummary returns the absolute group summary plus a settlement plan.
func (h *Handler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	group, _, ok := h.requireViewer(w, r)
	if !ok {
		return
	}

	summary, err := h.Agg.GroupSummary(r.Context(), group)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	balances := make([]ledger.NetBalance, 0, len(summary.Members))
	dto := PaymentSummaryDTO{
		GroupID:     string(summary.GroupID),
		GroupName:   summary.GroupName,
		Currency:    summary.Currency,
		Members:     make([]MemberBalanceDTO, 0, len(summary.Members)),
		TotalOwed:   summary.TotalOwed.StringFixed(),
		TotalOwing:  summary.TotalOwing.StringFixed(),
		NetBalance:  summary.NetBalance.StringFixed(),
		Suggestions: []SuggestionDTO{},
	}
	for _, m := range summary.Members {
		dto.Members = append(dto.Members, MemberBalanceDTO{
			UserID:  string(m.UserID),
			Email:   m.Email,
			Name:    m.Name,
			Balance: m.Balance.StringFixed(),
			Status:  string(m.Standing),
		})
		balances = append(balances, ledger.NetBalance{
			UserID:  m.UserID,
			Name:    m.Name,
			Balance: m.Balance,
		})
	}

	for _, s := range ledger.SuggestSettlements(balances, group.Currency) {
		dto.Suggestions = append(dto.Suggestions, SuggestionDTO{
			From:     string(s.From),
			To:       string(s.To),
			FromName: s.FromName,
			ToName:   s.ToName,
			Amount:   s.Amount.StringFixed(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates the JSON body, writing the error response
// itself. Returns false when the request was rejected.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "validation failed on "+verrs[0].Field(), verrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "validation failed", "")
		return false
	}
	return true
}

// parseDate accepts an empty string as "no date given".
func (h *Handler) parseDate(w http.ResponseWriter, s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)", "date")
		return time.Time{}, false
	}
	return d, true
}

// writeDomainError maps service errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	field := ""
	if errors.As(err, &verr) {
		field = verr.Field
	}

	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), field)
	case errors.Is(err, ledger.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), field)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), field)
	default:
		h.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, field string) {
	writeJSON(w, status, ErrorResponse{Error: message, Field: field})
}
