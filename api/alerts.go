package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// ALERT ENDPOINTS
// =============================================================================

// ListAlerts returns the company's alerts, newest first.
// GET /api/alerts?unread=true
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListAlerts(r.Context(), finance.AlertFilter{
		CompanyID:  claims(r).CompanyID,
		GoalID:     r.URL.Query().Get("goal_id"),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]AlertDTO, 0, len(list))
	for _, a := range list {
		dtos = append(dtos, toAlertDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkAlertRead flags an alert as read.
// POST /api/alerts/{id}/read
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)
	id := chi.URLParam(r, "id")

	if err := h.Store.MarkAlertRead(ctx, c.CompanyID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditReadAlert, "read alert "+id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteAlert hides an alert. The crossing stays recorded, so the same
// epoch never alerts again.
// DELETE /api/alerts/{id}
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteAlert(ctx, c.CompanyID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditDeleteAlert, "deleted alert "+id)
	w.WriteHeader(http.StatusNoContent)
}
