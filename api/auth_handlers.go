package api

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/smartgestao/smart-gestao/auth"
	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// Register creates a company with its owner and returns a token.
// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case strings.TrimSpace(req.CompanyName) == "":
		h.fail(w, r, &finance.FieldError{Field: "company_name", Reason: "required"})
		return
	case strings.TrimSpace(req.Name) == "":
		h.fail(w, r, &finance.FieldError{Field: "name", Reason: "required"})
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		h.fail(w, r, &finance.FieldError{Field: "email", Reason: "must be a valid address"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.now()
	company := finance.Company{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.CompanyName),
		Document:  strings.TrimSpace(req.Document),
		CreatedAt: now,
	}
	owner := finance.User{
		ID:           uuid.New().String(),
		CompanyID:    company.ID,
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         finance.RoleOwner,
		CreatedAt:    now,
	}
	if err := h.Store.CreateCompany(ctx, company, owner); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, company.ID, owner.ID, finance.AuditRegister, "registered company "+company.Name)

	h.respondWithToken(w, r, http.StatusCreated, owner, company)
}

// Login exchanges email and password for a token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.Store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if finance.IsNotFound(err) {
		h.fail(w, r, finance.ErrInvalidCredentials)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		h.fail(w, r, finance.ErrInvalidCredentials)
		return
	}

	company, err := h.Store.GetCompany(ctx, user.CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(ctx, user.CompanyID, user.ID, finance.AuditLogin, "login "+user.Email)

	h.respondWithToken(w, r, http.StatusOK, user, company)
}

// Me returns the caller and their company.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := claims(r)

	user, err := h.Store.GetUser(ctx, c.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user.CompanyID != c.CompanyID {
		h.fail(w, r, finance.ErrNotFound)
		return
	}
	company, err := h.Store.GetCompany(ctx, user.CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    toUserDTO(user),
		"company": toCompanyDTO(company),
	})
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u finance.User, c finance.Company) {
	token, expires, err := h.Issuer.Issue(u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, AuthResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      toUserDTO(u),
		Company:   toCompanyDTO(c),
	})
}
