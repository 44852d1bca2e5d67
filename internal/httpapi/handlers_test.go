package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/naijago/internal/config"
	"github.com/example/naijago/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.ServerConfig{
		JWTSecret:           "test-secret",
		TokenTTL:            time.Hour,
		RideTick:            time.Hour, // keep countdowns out of the way
		CourierTick:         time.Hour,
		DriverSimTick:       time.Hour,
		DriverRequestTTL:    30 * time.Second,
		DriverRequestChance: 0.4,
	}
	s, err := NewServer(cfg, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = s.Close() })
	return ts
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
	guest string
}

func (c *apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.guest != "" {
		req.Header.Set("X-Guest-Session", c.guest)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func (c *apiClient) waitForState(path, want string) map[string]any {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, snap := c.do("GET", path, nil); status == 200 && snap["state"] == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.t.Fatalf("timed out waiting for state %q", want)
	return nil
}

func TestGuestSearchThenLoginAndBook(t *testing.T) {
	ts := newTestServer(t)
	c := &apiClient{t: t, base: ts.URL, guest: "g-123"}

	status, _ := c.do("POST", "/api/v1/booking/search", map[string]any{
		"service": "ride", "pickup": "Ikeja", "dropoff": "Lekki",
	})
	if status != http.StatusAccepted {
		t.Fatalf("search status = %d, want 202", status)
	}
	snap := c.waitForState("/api/v1/booking", "results_ready")
	opts, _ := snap["ride_options"].([]any)
	if len(opts) != 3 {
		t.Fatalf("got %d ride options, want 3", len(opts))
	}

	// selecting without a login is refused, state untouched
	status, body := c.do("POST", "/api/v1/booking/select", map[string]any{"index": 1})
	if status != http.StatusUnauthorized {
		t.Fatalf("guest select status = %d (%v), want 401", status, body)
	}
	if _, snap := c.do("GET", "/api/v1/booking", nil); snap["state"] != "results_ready" {
		t.Fatalf("state changed by refused select: %v", snap["state"])
	}

	status, body = c.do("POST", "/api/v1/auth/signup", map[string]any{
		"name": "Ada Obi", "email": "ada@example.com", "password": "secret1", "role": "rider",
	})
	if status != http.StatusOK {
		t.Fatalf("signup status = %d (%v)", status, body)
	}
	c.token, _ = body["token"].(string)
	if c.token == "" {
		t.Fatal("signup returned no token")
	}

	// same guest session, now authenticated
	if status, body = c.do("POST", "/api/v1/booking/select", map[string]any{"index": 1}); status != http.StatusOK {
		t.Fatalf("select status = %d (%v)", status, body)
	}
	if body["state"] != "confirm_pending" {
		t.Fatalf("state = %v, want confirm_pending", body["state"])
	}

	if status, body = c.do("POST", "/api/v1/booking/confirm", nil); status != http.StatusOK {
		t.Fatalf("confirm status = %d (%v)", status, body)
	}
	if body["state"] != "active_ride" {
		t.Fatalf("state = %v, want active_ride", body["state"])
	}

	if status, body = c.do("POST", "/api/v1/booking/complete", map[string]any{"rating": 5}); status != http.StatusOK {
		t.Fatalf("complete status = %d (%v)", status, body)
	}
	if body["state"] != "idle" {
		t.Fatalf("state = %v, want idle", body["state"])
	}

	status, body = c.do("GET", "/api/v1/history", nil)
	if status != http.StatusOK {
		t.Fatalf("history status = %d", status)
	}
	entries, _ := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("got %d history entries, want 1", len(entries))
	}
}

func TestCompleteWithoutBookingConflicts(t *testing.T) {
	ts := newTestServer(t)
	c := &apiClient{t: t, base: ts.URL, guest: "g-409"}

	status, _ := c.do("POST", "/api/v1/booking/complete", nil)
	if status != http.StatusConflict {
		t.Fatalf("complete from idle status = %d, want 409", status)
	}
}

func TestSearchValidationStatus(t *testing.T) {
	ts := newTestServer(t)
	c := &apiClient{t: t, base: ts.URL, guest: "g-400"}

	status, body := c.do("POST", "/api/v1/booking/search", map[string]any{
		"service": "courier", "pickup": "Ikeja", "dropoff": "Lekki",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("courier without package note: status = %d (%v), want 400", status, body)
	}
}

func TestDriverEndpoints(t *testing.T) {
	ts := newTestServer(t)
	c := &apiClient{t: t, base: ts.URL}

	// rider tokens cannot reach driver endpoints
	status, body := c.do("POST", "/api/v1/auth/signup", map[string]any{
		"name": "Ada Obi", "email": "ada@example.com", "password": "secret1", "role": "rider",
	})
	if status != http.StatusOK {
		t.Fatalf("rider signup: %d (%v)", status, body)
	}
	c.token = body["token"].(string)
	if status, _ = c.do("POST", "/api/v1/driver/online", nil); status != http.StatusForbidden {
		t.Fatalf("rider on driver endpoint: status = %d, want 403", status)
	}

	status, body = c.do("POST", "/api/v1/auth/signup", map[string]any{
		"name": "Emeka Okafor", "email": "emeka@example.com", "password": "secret1", "role": "driver",
		"vehicleMake": "Toyota", "vehicleModel": "Corolla", "vehicleYear": "2019", "licensePlate": "LSD 482 KJ",
	})
	if status != http.StatusOK {
		t.Fatalf("driver signup: %d (%v)", status, body)
	}
	c.token = body["token"].(string)

	if status, body = c.do("POST", "/api/v1/driver/online", nil); status != http.StatusOK || body["online"] != true {
		t.Fatalf("go online: %d (%v)", status, body)
	}
	if status, body = c.do("GET", "/api/v1/driver/dashboard", nil); status != http.StatusOK || body["online"] != true {
		t.Fatalf("dashboard: %d (%v)", status, body)
	}
	if status, _ = c.do("POST", "/api/v1/driver/requests/nope/accept", nil); status != http.StatusNotFound {
		t.Fatalf("accept unknown request: status = %d, want 404", status)
	}
	if status, body = c.do("POST", "/api/v1/driver/offline", nil); status != http.StatusOK || body["online"] != false {
		t.Fatalf("go offline: %d (%v)", status, body)
	}

	if status, body = c.do("PUT", "/api/v1/driver/payouts", map[string]any{
		"bank_name": "GTBank", "account_number": "0123456789", "account_name": "Emeka Okafor",
	}); status != http.StatusOK {
		t.Fatalf("payouts: %d (%v)", status, body)
	}
}

func TestLogoutClearsHistoryAndResetsSession(t *testing.T) {
	ts := newTestServer(t)
	c := &apiClient{t: t, base: ts.URL, guest: "g-logout"}

	status, body := c.do("POST", "/api/v1/auth/signup", map[string]any{
		"name": "Ada Obi", "email": "ada@example.com", "password": "secret1", "role": "rider",
	})
	if status != http.StatusOK {
		t.Fatalf("signup: %d (%v)", status, body)
	}
	c.token = body["token"].(string)

	if status, _ = c.do("POST", "/api/v1/booking/search", map[string]any{
		"service": "ride", "pickup": "Ikeja", "dropoff": "Lekki",
	}); status != http.StatusAccepted {
		t.Fatalf("search status = %d", status)
	}
	c.waitForState("/api/v1/booking", "results_ready")
	if status, body = c.do("POST", "/api/v1/booking/select", map[string]any{"index": 0}); status != http.StatusOK {
		t.Fatalf("select: %d (%v)", status, body)
	}
	if status, body = c.do("POST", "/api/v1/booking/confirm", nil); status != http.StatusOK {
		t.Fatalf("confirm: %d (%v)", status, body)
	}
	if status, body = c.do("POST", "/api/v1/booking/complete", map[string]any{"rating": 4}); status != http.StatusOK {
		t.Fatalf("complete: %d (%v)", status, body)
	}
	if _, body = c.do("GET", "/api/v1/history", nil); len(body["entries"].([]any)) != 1 {
		t.Fatalf("expected 1 history entry before logout, got %v", body["entries"])
	}

	// leave a second booking in flight so logout has timers to cancel
	if status, _ = c.do("POST", "/api/v1/booking/search", map[string]any{
		"service": "courier", "pickup": "Yaba", "dropoff": "Ajah", "package_note": "documents",
	}); status != http.StatusAccepted {
		t.Fatalf("second search status = %d", status)
	}
	c.waitForState("/api/v1/booking", "results_ready")
	if status, _ = c.do("POST", "/api/v1/booking/select", map[string]any{"index": 0}); status != http.StatusOK {
		t.Fatal("courier select failed")
	}
	if status, _ = c.do("POST", "/api/v1/booking/confirm", nil); status != http.StatusOK {
		t.Fatal("courier confirm failed")
	}

	if status, _ = c.do("POST", "/api/v1/auth/logout", nil); status != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", status)
	}

	status, body = c.do("GET", "/api/v1/history", nil)
	if status != http.StatusOK {
		t.Fatalf("history after logout: %d", status)
	}
	if entries, _ := body["entries"].([]any); len(entries) != 0 {
		t.Fatalf("history survived logout: %v", entries)
	}
	if _, body = c.do("GET", "/api/v1/booking", nil); body["state"] != "idle" {
		t.Fatalf("active booking survived logout, state = %v", body["state"])
	}

	// the client drops its token on logout; the guest session must be
	// de-authenticated again
	c.token = ""
	if status, _ = c.do("POST", "/api/v1/booking/search", map[string]any{
		"service": "ride", "pickup": "Ikeja", "dropoff": "Lekki",
	}); status != http.StatusAccepted {
		t.Fatalf("post-logout search status = %d", status)
	}
	c.waitForState("/api/v1/booking", "results_ready")
	if status, _ = c.do("POST", "/api/v1/booking/select", map[string]any{"index": 0}); status != http.StatusUnauthorized {
		t.Fatalf("post-logout select status = %d, want 401", status)
	}
}

func TestUnauthenticatedDriverEndpoint(t *testing.T) {
	ts := newTestServer(t)
	c := &apiClient{t: t, base: ts.URL}
	if status, _ := c.do("GET", "/api/v1/driver/dashboard", nil); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}
