package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/nodevault/custody-service/internal/app"
	"github.com/nodevault/custody-service/pkg/logger"
)

// captureSender keeps the last tokens so tests can walk the mail flows.
type captureSender struct {
	verificationToken string
	resetToken        string
}

func (s *captureSender) SendVerification(to, name, token string) error {
	s.verificationToken = token
	return nil
}

func (s *captureSender) SendPasswordReset(to, name, token string) error {
	s.resetToken = token
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *captureSender) {
	t.Helper()
	log := logger.NewDefault("httpapi-test")
	log.SetOutput(io.Discard)

	sender := &captureSender{}
	application, err := app.New(app.Options{JWTSecret: "test-secret", Sender: sender}, log)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	handler := NewHandler(application, nil, Config{
		JWTSecret:    "test-secret",
		AllowOrigins: []string{"*"},
	}, log)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, sender
}

// doJSON issues a request and decodes the response body into a generic map.
func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// List endpoints return arrays; wrap them for uniform access.
			var list []interface{}
			if err := json.Unmarshal(raw, &list); err != nil {
				t.Fatalf("decode response %q: %v", raw, err)
			}
			decoded = map[string]interface{}{"items": list}
		}
	}
	return resp.StatusCode, decoded
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error body, got %v", body)
	}
	code, _ := detail["code"].(string)
	return code
}

func signup(t *testing.T, server *httptest.Server, sender *captureSender, email string) string {
	t.Helper()
	status, _ := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "Test User",
		"email":    email,
		"password": "s3cret-password",
	})
	if status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}
	status, _ = doJSON(t, server, http.MethodPost, "/api/auth/verify-email", "", map[string]interface{}{
		"token": sender.verificationToken,
	})
	if status != http.StatusOK {
		t.Fatalf("verify-email returned %d", status)
	}
	status, body := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "s3cret-password",
	})
	if status != http.StatusOK {
		t.Fatalf("login returned %d", status)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token
}

func TestAuthRequired(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := doJSON(t, server, http.MethodGet, "/api/server-nodes", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if code := errorCode(t, body); code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", code)
	}

	status, _ = doJSON(t, server, http.MethodGet, "/api/server-nodes", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", status)
	}
}

func TestRegisterValidation(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "Test",
		"email":    "bad email",
		"password": "s3cret-password",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if code := errorCode(t, body); code != "invalid_argument" {
		t.Fatalf("expected invalid_argument, got %q", code)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	server, _ := newTestServer(t)

	status, _ := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "Test User",
		"email":    "pending@example.com",
		"password": "s3cret-password",
	})
	if status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}
	status, body := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email":    "pending@example.com",
		"password": "s3cret-password",
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 before verification, got %d", status)
	}
	if code := errorCode(t, body); code != "forbidden" {
		t.Fatalf("expected forbidden, got %q", code)
	}
}

func TestNodeLifecycle(t *testing.T) {
	server, sender := newTestServer(t)
	token := signup(t, server, sender, "nodes@example.com")

	status, created := doJSON(t, server, http.MethodPost, "/api/server-nodes", token, map[string]interface{}{
		"name": "rig-1",
		"Wh":   750.0,
	})
	if status != http.StatusCreated {
		t.Fatalf("create node returned %d: %v", status, created)
	}
	if created["Wh"] != 750.0 {
		t.Fatalf("expected flattened Wh 750, got %v", created["Wh"])
	}
	id := int64(created["id"].(float64))

	status, listed := doJSON(t, server, http.MethodGet, "/api/server-nodes", token, nil)
	if status != http.StatusOK || len(listed["items"].([]interface{})) != 1 {
		t.Fatalf("list returned %d: %v", status, listed)
	}

	status, updated := doJSON(t, server, http.MethodPut, fmt.Sprintf("/api/server-nodes/%d", id), token, map[string]interface{}{
		"name": "rig-renamed",
	})
	if status != http.StatusOK || updated["name"] != "rig-renamed" {
		t.Fatalf("update returned %d: %v", status, updated)
	}

	status, _ = doJSON(t, server, http.MethodDelete, fmt.Sprintf("/api/server-nodes/%d", id), token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete returned %d", status)
	}
	status, _ = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/server-nodes/%d", id), token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}

	status, deleted := doJSON(t, server, http.MethodGet, "/api/server-nodes/deleted", token, nil)
	if status != http.StatusOK || len(deleted["items"].([]interface{})) != 1 {
		t.Fatalf("deleted listing returned %d: %v", status, deleted)
	}

	status, restored := doJSON(t, server, http.MethodPost, fmt.Sprintf("/api/server-nodes/%d/activate", id), token, nil)
	if status != http.StatusOK {
		t.Fatalf("activate returned %d: %v", status, restored)
	}
	if restored["Wh"] != 750.0 {
		t.Fatalf("history lost across delete/activate: %v", restored["Wh"])
	}
}

func TestPowerTimelineOverHTTP(t *testing.T) {
	server, sender := newTestServer(t)
	token := signup(t, server, sender, "powers@example.com")

	_, created := doJSON(t, server, http.MethodPost, "/api/server-nodes", token, map[string]interface{}{"name": "rig-1"})
	nodeID := created["id"].(float64)

	status, first := doJSON(t, server, http.MethodPost, "/api/server-node-powers", token, map[string]interface{}{
		"serverNodeId":  nodeID,
		"Wh":            500.0,
		"effectiveFrom": "2024-01-01T00:00:00Z",
	})
	if status != http.StatusCreated {
		t.Fatalf("create power returned %d: %v", status, first)
	}

	// Later open entry supersedes the first.
	status, _ = doJSON(t, server, http.MethodPost, "/api/server-node-powers", token, map[string]interface{}{
		"serverNodeId":  nodeID,
		"Wh":            750.0,
		"effectiveFrom": "2024-03-01T00:00:00Z",
	})
	if status != http.StatusCreated {
		t.Fatalf("superseding create returned %d", status)
	}

	// An open insert whose start does not advance past the open entry is
	// rejected.
	status, body := doJSON(t, server, http.MethodPost, "/api/server-node-powers", token, map[string]interface{}{
		"serverNodeId":  nodeID,
		"Wh":            900.0,
		"effectiveFrom": "2024-03-01T00:00:00Z",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if code := errorCode(t, body); code != "overlap_conflict" {
		t.Fatalf("expected overlap_conflict, got %q", code)
	}

	// Neither is one that would engulf existing history from an earlier
	// start.
	status, body = doJSON(t, server, http.MethodPost, "/api/server-node-powers", token, map[string]interface{}{
		"serverNodeId":  nodeID,
		"Wh":            900.0,
		"effectiveFrom": "2024-02-01T00:00:00Z",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for engulfing insert, got %d", status)
	}
	if code := errorCode(t, body); code != "overlap_conflict" {
		t.Fatalf("expected overlap_conflict, got %q", code)
	}

	// A closed range may not touch existing history.
	status, body = doJSON(t, server, http.MethodPost, "/api/server-node-powers", token, map[string]interface{}{
		"serverNodeId":  nodeID,
		"Wh":            900.0,
		"effectiveFrom": "2024-01-10T00:00:00Z",
		"effectiveTo":   "2024-01-20T00:00:00Z",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for closed-range collision, got %d", status)
	}
	if code := errorCode(t, body); code != "overlap_conflict" {
		t.Fatalf("expected overlap_conflict, got %q", code)
	}

	// Inverted range is rejected.
	status, body = doJSON(t, server, http.MethodPost, "/api/server-node-powers", token, map[string]interface{}{
		"serverNodeId":  nodeID,
		"Wh":            900.0,
		"effectiveFrom": "2024-06-01T00:00:00Z",
		"effectiveTo":   "2024-05-01T00:00:00Z",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if code := errorCode(t, body); code != "invalid_range" {
		t.Fatalf("expected invalid_range, got %q", code)
	}

	// The first entry is now closed one millisecond before the successor.
	status, listed := doJSON(t, server, http.MethodGet,
		fmt.Sprintf("/api/server-node-powers?serverNodeId=%.0f", nodeID), token, nil)
	if status != http.StatusOK {
		t.Fatalf("list returned %d", status)
	}
	items := listed["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(items))
	}
	open := items[0].(map[string]interface{})
	closed := items[1].(map[string]interface{})
	if open["effectiveTo"] != nil {
		t.Fatalf("open entry should sort first, got %v", open)
	}
	if closed["effectiveTo"] != "2024-02-29T23:59:59.999Z" {
		t.Fatalf("unexpected auto-close bound: %v", closed["effectiveTo"])
	}

	// Point-in-time projection.
	status, current := doJSON(t, server, http.MethodGet,
		fmt.Sprintf("/api/server-node-powers/current?serverNodeId=%.0f&at=2024-01-15T00:00:00Z", nodeID), token, nil)
	if status != http.StatusOK || current["Wh"] != 500.0 {
		t.Fatalf("current at 2024-01-15 returned %d: %v", status, current)
	}

	// Pagination validation.
	status, body = doJSON(t, server, http.MethodGet,
		fmt.Sprintf("/api/server-node-powers?serverNodeId=%.0f&page=1", nodeID), token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for page without perPage, got %d", status)
	}
	if code := errorCode(t, body); code != "invalid_argument" {
		t.Fatalf("expected invalid_argument, got %q", code)
	}
	status, body = doJSON(t, server, http.MethodGet,
		fmt.Sprintf("/api/server-node-powers?serverNodeId=%.0f&page=0&perPage=10", nodeID), token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for page=0, got %d", status)
	}
	if code := errorCode(t, body); code != "invalid_argument" {
		t.Fatalf("expected invalid_argument, got %q", code)
	}
	status, body = doJSON(t, server, http.MethodGet,
		fmt.Sprintf("/api/server-node-powers?serverNodeId=%.0f&page=0", nodeID), token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for lone page=0, got %d", status)
	}
	if code := errorCode(t, body); code != "invalid_argument" {
		t.Fatalf("expected invalid_argument, got %q", code)
	}
}

func TestNonNumericIDsAreBadRequests(t *testing.T) {
	server, sender := newTestServer(t)
	token := signup(t, server, sender, "ids@example.com")

	paths := []string{
		"/api/server-nodes/abc",
		"/api/cryptos/abc",
		"/api/crypto-addresses/abc",
		"/api/crypto-inflows/abc",
		"/api/server-node-powers/abc",
		"/api/server-nodes/0",
	}
	for _, path := range paths {
		status, body := doJSON(t, server, http.MethodGet, path, token, nil)
		if status != http.StatusBadRequest {
			t.Fatalf("GET %s: expected 400, got %d", path, status)
		}
		if code := errorCode(t, body); code != "invalid_argument" {
			t.Fatalf("GET %s: expected invalid_argument, got %q", path, code)
		}
	}
}

func TestCryptoReadyFlagForms(t *testing.T) {
	server, sender := newTestServer(t)
	token := signup(t, server, sender, "cryptos@example.com")

	cases := []struct {
		value interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{1, true},
		{"0", false},
		{nil, false},
	}
	for i, tc := range cases {
		status, body := doJSON(t, server, http.MethodPost, "/api/cryptos", token, map[string]interface{}{
			"name":    fmt.Sprintf("Coin %d", i),
			"symbol":  fmt.Sprintf("C%d", i),
			"isReady": tc.value,
		})
		if status != http.StatusCreated {
			t.Fatalf("create crypto %v returned %d: %v", tc.value, status, body)
		}
		if body["isReady"] != tc.want {
			t.Fatalf("isReady %v: expected %v, got %v", tc.value, tc.want, body["isReady"])
		}
	}

	status, body := doJSON(t, server, http.MethodPost, "/api/cryptos", token, map[string]interface{}{
		"name":    "Bad",
		"symbol":  "BAD",
		"isReady": "maybe",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparseable isReady, got %d: %v", status, body)
	}
}

func TestAddressAndInflowScoping(t *testing.T) {
	server, sender := newTestServer(t)
	alice := signup(t, server, sender, "alice@example.com")
	bob := signup(t, server, sender, "bob@example.com")

	_, crypto := doJSON(t, server, http.MethodPost, "/api/cryptos", alice, map[string]interface{}{
		"name": "Bitcoin", "symbol": "BTC", "isReady": true,
	})
	cryptoID := crypto["id"].(float64)

	status, address := doJSON(t, server, http.MethodPost, "/api/crypto-addresses", alice, map[string]interface{}{
		"cryptoId": cryptoID,
		"address":  "bc1qxyz",
		"label":    "cold storage",
	})
	if status != http.StatusCreated {
		t.Fatalf("create address returned %d: %v", status, address)
	}
	addressID := address["id"].(float64)
	if address["crypto"].(map[string]interface{})["symbol"] != "BTC" {
		t.Fatalf("expected hydrated crypto, got %v", address["crypto"])
	}

	// A dangling cryptoId is a bad request.
	status, body := doJSON(t, server, http.MethodPost, "/api/crypto-addresses", alice, map[string]interface{}{
		"cryptoId": 999999, "address": "bc1qother",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown cryptoId, got %d", status)
	}
	if code := errorCode(t, body); code != "invalid_argument" {
		t.Fatalf("expected invalid_argument, got %q", code)
	}

	// Duplicate (user, address) is a conflict.
	status, body = doJSON(t, server, http.MethodPost, "/api/crypto-addresses", alice, map[string]interface{}{
		"cryptoId": cryptoID, "address": "bc1qxyz",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate address, got %d", status)
	}
	if code := errorCode(t, body); code != "conflict" {
		t.Fatalf("expected conflict, got %q", code)
	}

	status, inflow := doJSON(t, server, http.MethodPost, "/api/crypto-inflows", alice, map[string]interface{}{
		"addressId": addressID,
		"txHash":    "0xabc",
		"amount":    "1.5",
	})
	if status != http.StatusCreated {
		t.Fatalf("create inflow returned %d: %v", status, inflow)
	}
	inflowID := inflow["id"].(float64)
	if inflow["amount"] != "1.5" {
		t.Fatalf("expected decimal string amount, got %v", inflow["amount"])
	}

	// Another user cannot see or use Alice's records.
	status, _ = doJSON(t, server, http.MethodGet, fmt.Sprintf("/api/crypto-inflows/%.0f", inflowID), bob, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign inflow, got %d", status)
	}
	status, _ = doJSON(t, server, http.MethodPost, "/api/crypto-inflows", bob, map[string]interface{}{
		"addressId": addressID, "txHash": "0xdef", "amount": "1",
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 creating inflow on foreign address, got %d", status)
	}

	// Duplicate txHash is global.
	status, _ = doJSON(t, server, http.MethodPost, "/api/crypto-inflows", alice, map[string]interface{}{
		"addressId": addressID, "txHash": "0xabc", "amount": "2",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate txHash, got %d", status)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	status, body := doJSON(t, server, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz returned %d: %v", status, body)
	}
}
