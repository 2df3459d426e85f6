package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgestao/smart-gestao/finance"
)

func dial(t *testing.T, srv *httptest.Server, company string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?company=" + company
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsToCompanyOnly(t *testing.T) {
	// GIVEN: One socket for acme, one for globex
	// WHEN: An acme alert is created
	// THEN: Only the acme socket receives it

	hub := NewHub(zerolog.Nop(), nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		company := r.URL.Query().Get("company")
		_ = hub.ServeCompany(w, r, company, "user-"+company)
	}))
	defer srv.Close()

	acme := dial(t, srv, "acme")
	globex := dial(t, srv, "globex")
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.AlertCreated(finance.Alert{
		ID:        "alert-1",
		CompanyID: "acme",
		GoalID:    "goal-1",
		Type:      finance.AlertLimitReached,
		Message:   `Spending goal for "Food" reached`,
		CreatedAt: time.Now().UTC(),
	})

	require.NoError(t, acme.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := acme.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "alert", msg.Type)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, "alert-1", msg.Alert.ID)
	assert.Equal(t, "goal-1", msg.Alert.GoalID)
	assert.Contains(t, msg.Alert.Message, "Food")

	require.NoError(t, globex.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = globex.ReadMessage()
	assert.Error(t, err, "globex must not receive acme alerts")
}
