package api

import (
	"net/http"

	"github.com/smartgestao/smart-gestao/logger"
)

// Websocket subscribes the caller to alert notifications of their company.
// Browsers pass the token as ?token= since they cannot set headers here.
// GET /api/ws
func (h *Handler) Websocket(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Notifications disabled", nil)
		return
	}
	c := claims(r)
	if err := h.Hub.ServeCompany(w, r, c.CompanyID, c.UserID); err != nil {
		// The upgrader has already answered the client.
		logger.FromContext(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
	}
}
