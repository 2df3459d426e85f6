package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// GOAL ENDPOINTS
// =============================================================================

// ListGoals returns every goal of the company.
// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Store.ListGoals(r.Context(), claims(r).CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		dtos = append(dtos, toGoalDTO(g))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGoal creates a spending goal in epoch 0.
// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	var req GoalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.now()
	g := req.apply(finance.Goal{
		ID:        uuid.New().String(),
		CompanyID: c.CompanyID,
		Type:      finance.TxExpense,
		Status:    finance.GoalActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := g.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.CreateGoal(ctx, g); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditCreateGoal,
		fmt.Sprintf("goal %s: %s %s in %s", g.ID, g.Category, money(g.TargetAmount), g.Window()))

	writeJSON(w, http.StatusCreated, toGoalDTO(g))
}

// GetGoal returns one goal.
// GET /api/goals/{id}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.Store.GetGoal(r.Context(), claims(r).CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(g))
}

// UpdateGoal edits a goal. Changing the category, type, target or window
// starts a new epoch, so the edited goal can alert again.
// PUT /api/goals/{id}
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	var req GoalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.Store.GetGoal(ctx, c.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	next := req.apply(existing)
	if err := next.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if existing.CrossingChanged(next) {
		next = next.Reset(h.now())
	} else {
		next.UpdatedAt = h.now()
	}

	if err := h.Store.UpdateGoal(ctx, next); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditUpdateGoal,
		fmt.Sprintf("goal %s updated (epoch %d)", next.ID, next.Epoch))

	writeJSON(w, http.StatusOK, toGoalDTO(next))
}

// DeleteGoal removes a goal. Its alerts are kept.
// DELETE /api/goals/{id}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteGoal(ctx, c.CompanyID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditDeleteGoal, "deleted goal "+id)
	w.WriteHeader(http.StatusNoContent)
}

// GoalProgress reports the window total against the target.
// GET /api/goals/{id}/progress
func (h *Handler) GoalProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	g, err := h.Store.GetGoal(ctx, c.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	spent, err := h.Store.SumExpenses(ctx, finance.ExpenseQuery{
		CompanyID: g.CompanyID,
		Category:  g.Category,
		Window:    g.Window(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	epoch := g.Epoch
	fired, err := h.Store.ListAlerts(ctx, finance.AlertFilter{
		CompanyID: g.CompanyID,
		GoalID:    g.ID,
		Epoch:     &epoch,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, progress(g, spent, len(fired) > 0))
}

func progress(g finance.Goal, spent finance.Money, alerted bool) GoalProgressDTO {
	remaining := g.TargetAmount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	percent := decimal.Zero
	if g.TargetAmount.IsPositive() {
		percent = spent.Mul(decimal.NewFromInt(100)).Div(g.TargetAmount)
	}
	return GoalProgressDTO{
		Goal:      toGoalDTO(g),
		Spent:     money(spent),
		Remaining: money(remaining),
		Percent:   percent.StringFixed(2),
		Reached:   spent.GreaterThanOrEqual(g.TargetAmount),
		Alerted:   alerted,
	}
}

// ResetGoal starts the next epoch and reactivates the goal.
// POST /api/goals/{id}/reset
func (h *Handler) ResetGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	g, err := h.Store.GetGoal(ctx, c.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	g = g.Reset(h.now())
	if err := h.Store.UpdateGoal(ctx, g); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditResetGoal,
		fmt.Sprintf("goal %s reset to epoch %d", g.ID, g.Epoch))

	writeJSON(w, http.StatusOK, toGoalDTO(g))
}
