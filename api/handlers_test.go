/*
handlers_test.go - End-to-end tests for the HTTP API

Each test runs the full router (auth middleware, ledger, alert evaluator,
in-memory store) behind httptest.Server.
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgestao/smart-gestao/alerts"
	"github.com/smartgestao/smart-gestao/auth"
	"github.com/smartgestao/smart-gestao/finance"
	"github.com/smartgestao/smart-gestao/finance/store"
	"github.com/smartgestao/smart-gestao/notify"
	"github.com/smartgestao/smart-gestao/store/sqlite"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testAPI struct {
	srv   *httptest.Server
	store finance.Store
	hub   *notify.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWith(t, store.NewMemory())
}

func newTestAPIWith(t *testing.T, mem finance.Store) *testAPI {
	t.Helper()
	log := zerolog.Nop()
	hub := notify.NewHub(log, nil)

	evaluator := alerts.NewEvaluator(mem, log)
	evaluator.Notifier = hub

	ledger := finance.NewLedger(mem, mem, log)
	ledger.OnCommit(evaluator)

	h := NewHandler(mem, ledger, auth.NewIssuer("test-secret", time.Hour), hub, log)
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return &testAPI{srv: srv, store: mem, hub: hub}
}

// do sends body as JSON and returns the status and raw response body.
func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// decode is do plus a status check and JSON decoding into v.
func (a *testAPI) decode(t *testing.T, method, path, token string, body any, wantStatus int, v any) {
	t.Helper()
	status, out := a.do(t, method, path, token, body)
	require.Equal(t, wantStatus, status, "%s %s: %s", method, path, out)
	if v != nil {
		require.NoError(t, json.Unmarshal(out, v), string(out))
	}
}

func (a *testAPI) register(t *testing.T, company, email string) AuthResponse {
	t.Helper()
	var resp AuthResponse
	a.decode(t, "POST", "/api/auth/register", "", RegisterRequest{
		CompanyName: company,
		Name:        "Owner of " + company,
		Email:       email,
		Password:    "correct-horse",
	}, http.StatusCreated, &resp)
	require.NotEmpty(t, resp.Token)
	return resp
}

func (a *testAPI) createGoal(t *testing.T, token, category, target string) GoalDTO {
	t.Helper()
	var g GoalDTO
	a.decode(t, "POST", "/api/goals", token, map[string]any{
		"category":      category,
		"target_amount": target,
		"start_date":    "2026-10-01",
		"deadline":      "2026-10-31",
	}, http.StatusCreated, &g)
	return g
}

func (a *testAPI) expense(t *testing.T, token, category, amount, date string) TransactionDTO {
	t.Helper()
	var tx TransactionDTO
	a.decode(t, "POST", "/api/transactions", token, map[string]any{
		"category": category,
		"type":     "expense",
		"amount":   amount,
		"date":     date,
	}, http.StatusCreated, &tx)
	return tx
}

func (a *testAPI) alerts(t *testing.T, token, query string) []AlertDTO {
	t.Helper()
	var list []AlertDTO
	a.decode(t, "GET", "/api/alerts"+query, token, nil, http.StatusOK, &list)
	return list
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_Health(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAPI_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	for _, token := range []string{"", "not-a-jwt"} {
		status, body := api.do(t, "GET", "/api/transactions", token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, "Unauthorized", resp.Error)
	}

	other := auth.NewIssuer("other-secret", time.Hour)
	forged, _, err := other.Issue(finance.User{ID: "u1", CompanyID: "acme", Role: finance.RoleOwner})
	require.NoError(t, err)
	status, _ := api.do(t, "GET", "/api/transactions", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	// GIVEN: A registered company
	// WHEN: The owner logs in, with the right and then wrong password
	// THEN: Login returns a usable token, bad credentials return 401

	api := newTestAPI(t)
	reg := api.register(t, "Acme", "owner@acme.test")
	assert.Equal(t, "owner", reg.User.Role)
	assert.Equal(t, reg.Company.ID, reg.User.CompanyID)

	var login AuthResponse
	api.decode(t, "POST", "/api/auth/login", "", LoginRequest{
		Email:    "OWNER@acme.test",
		Password: "correct-horse",
	}, http.StatusOK, &login)
	assert.Equal(t, reg.User.ID, login.User.ID)

	var me struct {
		User    UserDTO    `json:"user"`
		Company CompanyDTO `json:"company"`
	}
	api.decode(t, "GET", "/api/me", login.Token, nil, http.StatusOK, &me)
	assert.Equal(t, "Acme", me.Company.Name)
	assert.Equal(t, "owner@acme.test", me.User.Email)

	status, _ := api.do(t, "POST", "/api/auth/login", "", LoginRequest{
		Email:    "owner@acme.test",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(t, "POST", "/api/auth/login", "", LoginRequest{
		Email:    "nobody@acme.test",
		Password: "correct-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_RegisterRejects(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Acme", "owner@acme.test")

	tests := []struct {
		name   string
		req    RegisterRequest
		status int
	}{
		{"duplicate email, other case", RegisterRequest{CompanyName: "Globex", Name: "G", Email: "Owner@Acme.test", Password: "correct-horse"}, http.StatusConflict},
		{"weak password", RegisterRequest{CompanyName: "Globex", Name: "G", Email: "g@globex.test", Password: "short"}, http.StatusBadRequest},
		{"bad email", RegisterRequest{CompanyName: "Globex", Name: "G", Email: "not-an-email", Password: "correct-horse"}, http.StatusBadRequest},
		{"missing company", RegisterRequest{Name: "G", Email: "g@globex.test", Password: "correct-horse"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := api.do(t, "POST", "/api/auth/register", "", tt.req)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	status, _ := api.do(t, "POST", "/api/auth/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestAPI_TransactionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token

	var client ClientDTO
	api.decode(t, "POST", "/api/clients", token, ClientRequest{Name: "Maria"}, http.StatusCreated, &client)

	var tx TransactionDTO
	api.decode(t, "POST", "/api/transactions", token, map[string]any{
		"category":  "Sales",
		"type":      "revenue",
		"amount":    1200.5, // numbers are accepted too
		"date":      "2026-10-05",
		"client_id": client.ID,
	}, http.StatusCreated, &tx)
	assert.Equal(t, "1200.50", tx.Amount)
	assert.Equal(t, "2026-10-05", tx.Date.String())
	assert.Equal(t, client.ID, tx.ClientID)

	// Soft fields are editable
	var updated TransactionDTO
	api.decode(t, "PUT", "/api/transactions/"+tx.ID, token, map[string]any{
		"description": "October invoice",
	}, http.StatusOK, &updated)
	assert.Equal(t, "October invoice", updated.Description)
	assert.Equal(t, "1200.50", updated.Amount)

	// Amount, type, category and date are not
	for _, field := range []string{"amount", "type", "category", "date"} {
		status, body := api.do(t, "PUT", "/api/transactions/"+tx.ID, token, map[string]any{field: "x"})
		assert.Equal(t, http.StatusBadRequest, status, field)
		assert.Contains(t, string(body), field)
	}

	var got TransactionDTO
	api.decode(t, "GET", "/api/transactions/"+tx.ID, token, nil, http.StatusOK, &got)
	assert.Equal(t, "October invoice", got.Description)

	api.decode(t, "DELETE", "/api/transactions/"+tx.ID, token, nil, http.StatusNoContent, nil)
	status, _ := api.do(t, "GET", "/api/transactions/"+tx.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_TransactionValidation(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token

	valid := func() map[string]any {
		return map[string]any{"category": "Food", "type": "expense", "amount": "10", "date": "2026-10-05"}
	}
	tests := map[string]func(map[string]any){
		"negative amount": func(b map[string]any) { b["amount"] = "-1" },
		"missing amount":  func(b map[string]any) { delete(b, "amount") },
		"bad amount":      func(b map[string]any) { b["amount"] = "ten" },
		"bad type":        func(b map[string]any) { b["type"] = "transfer" },
		"empty category":  func(b map[string]any) { b["category"] = " " },
		"bad date":        func(b map[string]any) { b["date"] = "05/10/2026" },
		"missing date":    func(b map[string]any) { delete(b, "date") },
		"unknown client":  func(b map[string]any) { b["client_id"] = "nope" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			body := valid()
			mutate(body)
			status, out := api.do(t, "POST", "/api/transactions", token, body)
			assert.Equal(t, http.StatusBadRequest, status, string(out))
		})
	}

	var list []TransactionDTO
	api.decode(t, "GET", "/api/transactions", token, nil, http.StatusOK, &list)
	assert.Empty(t, list)
}

func TestAPI_ListTransactionsFilters(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token

	api.expense(t, token, "Food", "10", "2026-09-30")
	api.expense(t, token, "Food", "20", "2026-10-10")
	api.expense(t, token, "Rent", "30", "2026-10-15")

	var list []TransactionDTO
	api.decode(t, "GET", "/api/transactions?from=2026-10-01&to=2026-10-31", token, nil, http.StatusOK, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Rent", list[0].Category, "newest date first")

	api.decode(t, "GET", "/api/transactions?category=Food", token, nil, http.StatusOK, &list)
	assert.Len(t, list, 2)

	api.decode(t, "GET", "/api/transactions?limit=1&offset=1", token, nil, http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "20.00", list[0].Amount)

	for _, q := range []string{"?type=transfer", "?limit=-1", "?from=2026-10-31&to=2026-10-01", "?from=yesterday"} {
		status, _ := api.do(t, "GET", "/api/transactions"+q, token, nil)
		assert.Equal(t, http.StatusBadRequest, status, q)
	}
}

func TestAPI_TenantIsolation(t *testing.T) {
	// GIVEN: Two companies, acme owning a transaction, goal and client
	// WHEN: globex addresses them by id
	// THEN: Every lookup is 404, and lists are empty

	api := newTestAPI(t)
	acme := api.register(t, "Acme", "owner@acme.test").Token
	globex := api.register(t, "Globex", "owner@globex.test").Token

	tx := api.expense(t, acme, "Food", "10", "2026-10-10")
	goal := api.createGoal(t, acme, "Food", "100")
	var client ClientDTO
	api.decode(t, "POST", "/api/clients", acme, ClientRequest{Name: "Maria"}, http.StatusCreated, &client)

	paths := []struct{ method, path string }{
		{"GET", "/api/transactions/" + tx.ID},
		{"PUT", "/api/transactions/" + tx.ID},
		{"DELETE", "/api/transactions/" + tx.ID},
		{"GET", "/api/goals/" + goal.ID},
		{"PUT", "/api/goals/" + goal.ID},
		{"DELETE", "/api/goals/" + goal.ID},
		{"GET", "/api/goals/" + goal.ID + "/progress"},
		{"POST", "/api/goals/" + goal.ID + "/reset"},
		{"GET", "/api/clients/" + client.ID},
		{"DELETE", "/api/clients/" + client.ID},
	}
	for _, p := range paths {
		status, _ := api.do(t, p.method, p.path, globex, map[string]any{})
		assert.Equal(t, http.StatusNotFound, status, "%s %s", p.method, p.path)
	}

	var list []TransactionDTO
	api.decode(t, "GET", "/api/transactions", globex, nil, http.StatusOK, &list)
	assert.Empty(t, list)

	// A globex client id cannot be attached to an acme transaction
	var globexClient ClientDTO
	api.decode(t, "POST", "/api/clients", globex, ClientRequest{Name: "Joe"}, http.StatusCreated, &globexClient)
	status, _ := api.do(t, "PUT", "/api/transactions/"+tx.ID, acme, map[string]any{"client_id": globexClient.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	// acme's records are untouched
	api.decode(t, "GET", "/api/transactions/"+tx.ID, acme, nil, http.StatusOK, nil)
	api.decode(t, "GET", "/api/goals/"+goal.ID, acme, nil, http.StatusOK, nil)
}

// =============================================================================
// GOALS AND ALERTS
// =============================================================================

func TestAPI_GoalCrossingCreatesExactlyOneAlert(t *testing.T) {
	// GIVEN: A Food goal of 100 for October
	// WHEN: Expenses of 80, 30 and 50 are recorded
	// THEN: Only the 30 crosses the target, so exactly one alert exists

	api := newTestAPI(t)
	reg := api.register(t, "Acme", "owner@acme.test")
	goal := api.createGoal(t, reg.Token, "Food", "100")
	assert.Equal(t, 0, goal.Epoch)
	assert.Equal(t, "active", goal.Status)
	assert.Equal(t, "expense", goal.Type)

	api.expense(t, reg.Token, "Food", "80", "2026-10-05")
	assert.Empty(t, api.alerts(t, reg.Token, ""))

	api.expense(t, reg.Token, "Food", "30", "2026-10-06")
	api.expense(t, reg.Token, "Food", "50", "2026-10-07")

	list := api.alerts(t, reg.Token, "")
	require.Len(t, list, 1)
	assert.Equal(t, goal.ID, list[0].GoalID)
	assert.Equal(t, "limit_reached", list[0].Type)
	assert.Equal(t, reg.User.ID, list[0].UserID)
	assert.False(t, list[0].Read)

	var p GoalProgressDTO
	api.decode(t, "GET", "/api/goals/"+goal.ID+"/progress", reg.Token, nil, http.StatusOK, &p)
	assert.Equal(t, "160.00", p.Spent)
	assert.Equal(t, "0.00", p.Remaining)
	assert.Equal(t, "160.00", p.Percent)
	assert.True(t, p.Reached)
	assert.True(t, p.Alerted)
}

func TestAPI_SQLiteEndToEnd(t *testing.T) {
	// Same crossing scenario on a real SQLite database.
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	api := newTestAPIWith(t, db)
	token := api.register(t, "Acme", "owner@acme.test").Token
	goal := api.createGoal(t, token, "Food", "100")

	api.expense(t, token, "Food", "80", "2026-10-05")
	api.expense(t, token, "Food", "30", "2026-10-06")
	api.expense(t, token, "Food", "50", "2026-10-07")

	list := api.alerts(t, token, "")
	require.Len(t, list, 1)
	assert.Equal(t, goal.ID, list[0].GoalID)

	status, _ := api.do(t, "POST", "/api/auth/register", "", RegisterRequest{
		CompanyName: "Other", Name: "O", Email: "OWNER@acme.test", Password: "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_GoalValidation(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token

	bodies := map[string]map[string]any{
		"zero target":     {"category": "Food", "target_amount": "0", "start_date": "2026-10-01", "deadline": "2026-10-31"},
		"inverted window": {"category": "Food", "target_amount": "100", "start_date": "2026-10-31", "deadline": "2026-10-01"},
		"no category":     {"target_amount": "100", "start_date": "2026-10-01", "deadline": "2026-10-31"},
		"no deadline":     {"category": "Food", "target_amount": "100", "start_date": "2026-10-01"},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			status, out := api.do(t, "POST", "/api/goals", token, body)
			assert.Equal(t, http.StatusBadRequest, status, string(out))
		})
	}
}

func TestAPI_UpdateGoal(t *testing.T) {
	// GIVEN: A crossed goal (160 of 100)
	// WHEN: Only the description changes
	// THEN: The epoch stays
	// WHEN: The target is raised to 200 and another 50 is spent
	// THEN: A new epoch starts and the new crossing alerts again

	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token
	goal := api.createGoal(t, token, "Food", "100")
	api.expense(t, token, "Food", "80", "2026-10-05")
	api.expense(t, token, "Food", "80", "2026-10-06")
	require.Len(t, api.alerts(t, token, ""), 1)

	var updated GoalDTO
	api.decode(t, "PUT", "/api/goals/"+goal.ID, token, map[string]any{
		"description": "groceries",
	}, http.StatusOK, &updated)
	assert.Equal(t, 0, updated.Epoch)
	assert.Equal(t, "groceries", updated.Description)
	assert.Equal(t, "100.00", updated.TargetAmount)

	api.decode(t, "PUT", "/api/goals/"+goal.ID, token, map[string]any{
		"target_amount": "200",
	}, http.StatusOK, &updated)
	assert.Equal(t, 1, updated.Epoch)
	assert.Equal(t, "200.00", updated.TargetAmount)
	assert.Equal(t, "groceries", updated.Description, "omitted fields are kept")

	api.expense(t, token, "Food", "50", "2026-10-07")

	list := api.alerts(t, token, "")
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Epoch, "newest first")
	assert.Equal(t, 0, list[1].Epoch)

	status, _ := api.do(t, "PUT", "/api/goals/"+goal.ID, token, map[string]any{"deadline": "2026-09-01"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPI_ResetGoal(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token
	goal := api.createGoal(t, token, "Food", "100")
	api.expense(t, token, "Food", "120", "2026-10-05")
	require.Len(t, api.alerts(t, token, ""), 1)

	var reset GoalDTO
	api.decode(t, "POST", "/api/goals/"+goal.ID+"/reset", token, nil, http.StatusOK, &reset)
	assert.Equal(t, 1, reset.Epoch)
	assert.Equal(t, "active", reset.Status)

	var p GoalProgressDTO
	api.decode(t, "GET", "/api/goals/"+goal.ID+"/progress", token, nil, http.StatusOK, &p)
	assert.True(t, p.Reached)
	assert.False(t, p.Alerted, "no alert yet in the new epoch")

	// The window is already past the target, so further spending is not
	// a crossing: prior is already >= target.
	api.expense(t, token, "Food", "1", "2026-10-06")
	assert.Len(t, api.alerts(t, token, ""), 1)
}

func TestAPI_DeleteGoal(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token
	goal := api.createGoal(t, token, "Food", "100")

	api.decode(t, "DELETE", "/api/goals/"+goal.ID, token, nil, http.StatusNoContent, nil)
	api.expense(t, token, "Food", "150", "2026-10-05")
	assert.Empty(t, api.alerts(t, token, ""))

	var goals []GoalDTO
	api.decode(t, "GET", "/api/goals", token, nil, http.StatusOK, &goals)
	assert.Empty(t, goals)
}

func TestAPI_AlertReadAndDelete(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token
	api.createGoal(t, token, "Food", "100")
	api.expense(t, token, "Food", "150", "2026-10-05")

	list := api.alerts(t, token, "?unread=true")
	require.Len(t, list, 1)
	id := list[0].ID

	api.decode(t, "POST", "/api/alerts/"+id+"/read", token, nil, http.StatusOK, nil)
	assert.Empty(t, api.alerts(t, token, "?unread=true"))
	list = api.alerts(t, token, "")
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	api.decode(t, "DELETE", "/api/alerts/"+id, token, nil, http.StatusNoContent, nil)
	assert.Empty(t, api.alerts(t, token, ""))

	// Deleting the alert does not reopen the crossing
	api.expense(t, token, "Food", "10", "2026-10-06")
	assert.Empty(t, api.alerts(t, token, ""))

	status, _ := api.do(t, "POST", "/api/alerts/missing/read", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_WebsocketReceivesAlert(t *testing.T) {
	// GIVEN: acme and globex connected to /api/ws
	// WHEN: acme crosses a goal
	// THEN: Only acme's socket receives the alert

	api := newTestAPI(t)
	acme := api.register(t, "Acme", "owner@acme.test").Token
	globex := api.register(t, "Globex", "owner@globex.test").Token

	dial := func(token string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/api/ws?token=" + token
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	acmeConn := dial(acme)
	globexConn := dial(globex)
	require.Eventually(t, func() bool { return api.hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	goal := api.createGoal(t, acme, "Food", "100")
	api.expense(t, acme, "Food", "150", "2026-10-05")

	require.NoError(t, acmeConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg notify.Message
	require.NoError(t, acmeConn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, goal.ID, msg.Alert.GoalID)

	require.NoError(t, globexConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := globexConn.ReadMessage()
	assert.Error(t, err, "globex must not receive acme's alert")

	// Without a token the upgrade is refused
	url := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =============================================================================
// CLIENTS, AUDIT, REPORTS
// =============================================================================

func TestAPI_Clients(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token

	var c ClientDTO
	api.decode(t, "POST", "/api/clients", token, ClientRequest{Name: " Maria ", Email: "maria@example.com"}, http.StatusCreated, &c)
	assert.Equal(t, "Maria", c.Name)

	status, _ := api.do(t, "POST", "/api/clients", token, ClientRequest{Email: "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)

	api.decode(t, "PUT", "/api/clients/"+c.ID, token, ClientRequest{Name: "Maria Silva", Phone: "555"}, http.StatusOK, &c)
	assert.Equal(t, "Maria Silva", c.Name)
	assert.Equal(t, "555", c.Phone)

	var list []ClientDTO
	api.decode(t, "GET", "/api/clients", token, nil, http.StatusOK, &list)
	require.Len(t, list, 1)

	api.decode(t, "DELETE", "/api/clients/"+c.ID, token, nil, http.StatusNoContent, nil)
	api.decode(t, "GET", "/api/clients", token, nil, http.StatusOK, &list)
	assert.Empty(t, list)
}

func TestAPI_AuditLog(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token
	api.createGoal(t, token, "Food", "100")
	api.expense(t, token, "Food", "150", "2026-10-05")

	var entries []AuditEntryDTO
	api.decode(t, "GET", "/api/audit", token, nil, http.StatusOK, &entries)

	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"AUTO_CREATE_ALERT", "CREATE_TRANSACTION", "CREATE_GOAL", "REGISTER"}, actions)

	api.decode(t, "GET", "/api/audit?action=register,create_goal&limit=1", token, nil, http.StatusOK, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "CREATE_GOAL", entries[0].Action)

	// Other companies see nothing of it
	other := api.register(t, "Globex", "owner@globex.test").Token
	api.decode(t, "GET", "/api/audit", other, nil, http.StatusOK, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "REGISTER", entries[0].Action)
}

func TestAPI_Summary(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "Acme", "owner@acme.test").Token

	api.decode(t, "POST", "/api/transactions", token, map[string]any{
		"category": "Sales", "type": "revenue", "amount": "1000", "date": "2026-10-01",
	}, http.StatusCreated, nil)
	api.expense(t, token, "Rent", "200", "2026-10-02")
	api.expense(t, token, "Food", "100.10", "2026-10-03")
	api.expense(t, token, "Food", "199.90", "2026-10-04")
	api.expense(t, token, "Food", "999", "2026-11-01") // outside the range

	var s SummaryDTO
	api.decode(t, "GET", "/api/reports/summary?from=2026-10-01&to=2026-10-31", token, nil, http.StatusOK, &s)
	assert.Equal(t, "1000.00", s.Revenue)
	assert.Equal(t, "500.00", s.Expenses)
	assert.Equal(t, "500.00", s.Balance)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, []CategorySummaryDTO{
		{Category: "Food", Revenue: "0.00", Expenses: "300.00"},
		{Category: "Rent", Revenue: "0.00", Expenses: "200.00"},
		{Category: "Sales", Revenue: "1000.00", Expenses: "0.00"},
	}, s.Categories)
}
