// Package notify pushes alert notifications to connected browsers over
// websockets (olahol/melody). Sessions are tagged with their company at
// upgrade time and a broadcast only reaches sessions of the alert's
// company.
package notify

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/olahol/melody"
	"github.com/rs/zerolog"

	"github.com/smartgestao/smart-gestao/finance"
)

const (
	keyCompany = "company_id"
	keyUser    = "user_id"
)

// Message is the envelope written to the socket.
type Message struct {
	Type  string        `json:"type"`
	Alert *AlertPayload `json:"alert,omitempty"`
}

type AlertPayload struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	Epoch     int       `json:"epoch"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Hub struct {
	m   *melody.Melody
	log zerolog.Logger
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(log zerolog.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	m := melody.New()
	m.Config.MaxMessageSize = 4 * 1024 // clients only send pings
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	m.Upgrader.CheckOrigin = checkOrigin

	h := &Hub{m: m, log: log.With().Str("component", "notify").Logger()}

	m.HandleConnect(func(s *melody.Session) {
		company, _ := s.Get(keyCompany)
		h.log.Debug().Interface("company_id", company).Msg("websocket connected")
	})
	m.HandleDisconnect(func(s *melody.Session) {
		company, _ := s.Get(keyCompany)
		h.log.Debug().Interface("company_id", company).Msg("websocket disconnected")
	})
	m.HandleError(func(s *melody.Session, err error) {
		h.log.Debug().Err(err).Msg("websocket error")
	})
	return h
}

// ServeCompany upgrades the request and subscribes it to companyID.
func (h *Hub) ServeCompany(w http.ResponseWriter, r *http.Request, companyID, userID string) error {
	return h.m.HandleRequestWithKeys(w, r, map[string]any{
		keyCompany: companyID,
		keyUser:    userID,
	})
}

// AlertCreated implements alerts.Notifier.
func (h *Hub) AlertCreated(a finance.Alert) {
	msg, err := json.Marshal(Message{
		Type: "alert",
		Alert: &AlertPayload{
			ID:        a.ID,
			GoalID:    a.GoalID,
			Epoch:     a.Epoch,
			UserID:    a.UserID,
			Type:      string(a.Type),
			Message:   a.Message,
			Read:      a.Read,
			CreatedAt: a.CreatedAt,
		},
	})
	if err != nil {
		h.log.Error().Err(err).Str("alert_id", a.ID).Msg("failed to encode alert")
		return
	}
	h.broadcast(a.CompanyID, msg)
}

func (h *Hub) broadcast(companyID string, msg []byte) {
	err := h.m.BroadcastFilter(msg, func(s *melody.Session) bool {
		id, ok := s.Get(keyCompany)
		return ok && id == companyID
	})
	if err != nil {
		h.log.Warn().Err(err).Str("company_id", companyID).Msg("broadcast failed")
	}
}

// Len returns the number of open sessions.
func (h *Hub) Len() int { return h.m.Len() }

func (h *Hub) Close() error { return h.m.Close() }
