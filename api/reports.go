package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// AUDIT AND REPORT ENDPOINTS
// =============================================================================

// ListAudit returns the company's audit log, newest first.
// GET /api/audit?action=LOGIN,CREATE_GOAL&limit=100
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	filter := finance.AuditFilter{CompanyID: claims(r).CompanyID, Limit: limit}
	if raw := r.URL.Query().Get("action"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, finance.AuditAction(strings.ToUpper(a)))
			}
		}
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Summary totals revenue and expenses for a date range, per category.
// Without from/to it covers the current month.
// GET /api/reports/summary?from=2026-10-01&to=2026-10-31
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	window, err := queryWindow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if window.Start.IsZero() && window.End.IsZero() {
		window = finance.MonthOf(finance.DateOf(h.now()))
	}

	txs, err := h.Store.ListTransactions(r.Context(), finance.TransactionFilter{
		CompanyID: claims(r).CompanyID,
		Window:    window,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summarize(window, txs))
}

func summarize(window finance.Window, txs []finance.Transaction) SummaryDTO {
	type totals struct{ revenue, expenses decimal.Decimal }

	var all totals
	byCategory := make(map[string]*totals)
	for _, tx := range txs {
		cat, ok := byCategory[tx.Category]
		if !ok {
			cat = &totals{}
			byCategory[tx.Category] = cat
		}
		switch tx.Type {
		case finance.TxRevenue:
			all.revenue = all.revenue.Add(tx.Amount)
			cat.revenue = cat.revenue.Add(tx.Amount)
		case finance.TxExpense:
			all.expenses = all.expenses.Add(tx.Amount)
			cat.expenses = cat.expenses.Add(tx.Amount)
		}
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]CategorySummaryDTO, 0, len(names))
	for _, name := range names {
		t := byCategory[name]
		categories = append(categories, CategorySummaryDTO{
			Category: name,
			Revenue:  money(t.revenue),
			Expenses: money(t.expenses),
		})
	}

	return SummaryDTO{
		From:       window.Start,
		To:         window.End,
		Revenue:    money(all.revenue),
		Expenses:   money(all.expenses),
		Balance:    money(all.revenue.Sub(all.expenses)),
		Count:      len(txs),
		Categories: categories,
	}
}
