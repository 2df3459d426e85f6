package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// CLIENT ENDPOINTS
// =============================================================================

// ListClients returns the company's customers ordered by name.
// GET /api/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListClients(r.Context(), claims(r).CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]ClientDTO, 0, len(list))
	for _, c := range list {
		dtos = append(dtos, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient adds a customer.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	var req ClientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.now()
	client := req.apply(finance.Client{
		ID:        uuid.New().String(),
		CompanyID: c.CompanyID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := client.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.CreateClient(ctx, client); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditCreateClient, "created client "+client.Name)

	writeJSON(w, http.StatusCreated, toClientDTO(client))
}

// GetClient returns one customer.
// GET /api/clients/{id}
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.Store.GetClient(r.Context(), claims(r).CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// UpdateClient replaces a customer's details.
// PUT /api/clients/{id}
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	var req ClientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := h.Store.GetClient(ctx, c.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	client := req.apply(existing)
	client.UpdatedAt = h.now()
	if err := client.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.UpdateClient(ctx, client); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditUpdateClient, "updated client "+client.Name)

	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// DeleteClient removes a customer. Transactions keep the dangling id.
// DELETE /api/clients/{id}
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteClient(ctx, c.CompanyID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, c.CompanyID, c.UserID, finance.AuditDeleteClient, "deleted client "+id)
	w.WriteHeader(http.StatusNoContent)
}

func (r ClientRequest) apply(c finance.Client) finance.Client {
	c.Name = strings.TrimSpace(r.Name)
	c.Email = strings.TrimSpace(r.Email)
	c.Phone = strings.TrimSpace(r.Phone)
	c.Document = strings.TrimSpace(r.Document)
	c.Notes = r.Notes
	return c
}
