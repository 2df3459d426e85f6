package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// ListTransactions returns the company's transactions, newest date first.
// GET /api/transactions?type=&category=&client_id=&from=&to=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	q := r.URL.Query()

	filter := finance.TransactionFilter{
		CompanyID: c.CompanyID,
		Category:  q.Get("category"),
		ClientID:  q.Get("client_id"),
	}
	if t := q.Get("type"); t != "" {
		filter.Type = finance.TransactionType(t)
		if !filter.Type.Valid() {
			h.fail(w, r, &finance.FieldError{Field: "type", Reason: "must be revenue or expense"})
			return
		}
	}

	var err error
	if filter.Window, err = queryWindow(r); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.Limit == 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		h.fail(w, r, err)
		return
	}

	txs, err := h.Store.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// CreateTransaction records a revenue or expense. Expenses are evaluated
// against the company's spending goals by the ledger's commit hook.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	var req CreateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !req.Amount.Set {
		h.fail(w, r, &finance.FieldError{Field: "amount", Reason: "required"})
		return
	}
	if err := h.checkClient(ctx, c.CompanyID, req.ClientID); err != nil {
		h.fail(w, r, err)
		return
	}

	tx, err := h.Ledger.Record(ctx, finance.Transaction{
		CompanyID:   c.CompanyID,
		UserID:      c.UserID,
		ClientID:    req.ClientID,
		Category:    strings.TrimSpace(req.Category),
		Type:        finance.TransactionType(req.Type),
		Amount:      req.Amount.Value,
		Date:        req.Date,
		Description: req.Description,
		Attachment:  req.Attachment,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// GetTransaction returns one transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Store.GetTransaction(r.Context(), claims(r).CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// UpdateTransaction edits description, client and attachment. Amount,
// type, category and date are fixed once recorded.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	var req UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if field := req.immutableField(); field != "" {
		h.fail(w, r, fmt.Errorf("%w: %s", finance.ErrImmutableField, field))
		return
	}
	if req.ClientID != nil {
		if err := h.checkClient(ctx, c.CompanyID, *req.ClientID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	tx, err := h.Ledger.Update(ctx, c.CompanyID, c.UserID, chi.URLParam(r, "id"), finance.TransactionPatch{
		Description: req.Description,
		ClientID:    req.ClientID,
		Attachment:  req.Attachment,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction removes a transaction. Alerts it produced are kept.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	if err := h.Ledger.Delete(r.Context(), c.CompanyID, c.UserID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkClient verifies that a referenced client belongs to the company.
func (h *Handler) checkClient(ctx context.Context, companyID, clientID string) error {
	if clientID == "" {
		return nil
	}
	if _, err := h.Store.GetClient(ctx, companyID, clientID); err != nil {
		if finance.IsNotFound(err) {
			return &finance.FieldError{Field: "client_id", Reason: "unknown client"}
		}
		return err
	}
	return nil
}
