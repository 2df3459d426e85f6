/*
handlers.go - HTTP API handlers for the expense tracker

PURPOSE:
  Exposes the finance domain via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger and the stores.

ENDPOINTS (one file per resource):
  auth_handlers.go:  register, login, me
  transactions.go:   revenue and expense CRUD, alert evaluation on create
  goals.go:          spending goals, progress, reset
  alerts.go:         list, mark read, delete
  clients.go:        customer CRUD
  reports.go:        audit log and summary report
  ws.go:             websocket alert push

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store:  every persistence interface (finance.Store)
  - Ledger: the only write path for transactions; it runs the alert hook
  - Issuer: JWT signing and parsing
  - Hub:    websocket notifications (optional)

REQUEST FLOW:
  1. Take company and user from the token claims
  2. Parse and validate input
  3. Call domain logic (ledger, stores)
  4. Serialize response
  5. Map errors with fail()

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token, bad credentials
  - 404: Resource not found, including ids of another company
  - 409: Conflict (duplicate email)
  - 500: Internal errors (logged, details hidden)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartgestao/smart-gestao/auth"
	"github.com/smartgestao/smart-gestao/finance"
	"github.com/smartgestao/smart-gestao/logger"
	"github.com/smartgestao/smart-gestao/notify"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  finance.Store
	Ledger *finance.Ledger
	Issuer *auth.Issuer
	Hub    *notify.Hub // nil disables /api/ws
	Log    zerolog.Logger

	now func() time.Time
}

// NewHandler creates a handler. The ledger must write to the same store.
func NewHandler(store finance.Store, ledger *finance.Ledger, issuer *auth.Issuer, hub *notify.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		Store:  store,
		Ledger: ledger,
		Issuer: issuer,
		Hub:    hub,
		Log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads the request body into v. Malformed bodies are
// validation errors.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, finance.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", finance.ErrValidation, err)
	}
	return nil
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, finance.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, finance.ErrDuplicate):
		writeError(w, http.StatusConflict, "Already exists", err)
	case errors.Is(err, finance.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, finance.ErrValidation), errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		logger.FromContext(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, http.StatusUnauthorized, "Unauthorized", err)
}

// claims returns the token claims. Only called behind auth.Middleware.
func claims(r *http.Request) *auth.Claims {
	c, _ := auth.ClaimsFromContext(r.Context())
	return c
}

// audit writes an entry for the caller's company. A failed audit write is
// logged and never fails the request.
func (h *Handler) audit(ctx context.Context, companyID, userID string, action finance.AuditAction, desc string) {
	err := h.Store.Record(ctx, finance.AuditEntry{
		ID:          uuid.New().String(),
		CompanyID:   companyID,
		UserID:      userID,
		Action:      action,
		Description: desc,
		CreatedAt:   h.now(),
	})
	if err != nil {
		logger.FromContext(ctx).Warn().
			Err(err).
			Str("action", string(action)).
			Str("company_id", companyID).
			Msg("failed to write audit entry")
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &finance.FieldError{Field: key, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (finance.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return finance.Date{}, nil
	}
	d, err := finance.ParseDate(raw)
	if err != nil {
		return finance.Date{}, &finance.FieldError{Field: key, Reason: "use YYYY-MM-DD"}
	}
	return d, nil
}

// queryWindow reads "from" and "to".
func queryWindow(r *http.Request) (finance.Window, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return finance.Window{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return finance.Window{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return finance.Window{}, fmt.Errorf("%w: to %s before from %s", finance.ErrInvalidWindow, to, from)
	}
	return finance.Window{Start: from, End: to}, nil
}
