package kumo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

type memoryBlobStore struct {
	data []byte
}

func (m *memoryBlobStore) Load(_ context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, ErrBlobNotFound
	}
	return m.data, nil
}

func (m *memoryBlobStore) Save(_ context.Context, data []byte) error {
	m.data = data
	return nil
}

func TestClientFlow(t *testing.T) {
	var loginRequests int
	var commandBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			loginRequests++
			if r.Method != http.MethodPost {
				t.Fatalf("expected POST to /v3/login, got %s", r.Method)
			}
			if r.Header.Get("x-app-version") != "3.0.9" {
				t.Fatalf("unexpected app version header: %s", r.Header.Get("x-app-version"))
			}
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"username":"user@example.com"`) {
				t.Fatalf("expected username in login body, got %s", string(body))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"token":{"access":"test-token","refresh":"test-refresh"}}`)
			return
		case "/v3/accounts/me":
			assertAuth(t, r)
			_, _ = io.WriteString(w, `{"id":"acct-1","username":"user@example.com"}`)
			return
		case "/v3/sites/":
			assertAuth(t, r)
			_, _ = io.WriteString(w, `[{"id":"site-1","name":"Home"}]`)
			return
		case "/v3/sites/site-1/zones":
			assertAuth(t, r)
			_, _ = io.WriteString(w, `[{"id":"zone-1","name":"Living Room","adapter":{"deviceSerial":"SER123","connected":true,"roomTemp":21.5,"operationMode":"cool","power":1,"spCool":22.5}}]`)
			return
		case "/v3/devices/SER123":
			assertAuth(t, r)
			_, _ = io.WriteString(w, `{"serialNumber":"SER123","modelNumber":"MSZ-GL12NA","connected":true,"roomTemp":21,"operationMode":"cool","power":1,"spCool":22.5,"model":{"materialDescription":"Wall mounted unit","isSwing":false}}`)
			return
		case "/v3/devices/SER123/profile":
			assertAuth(t, r)
			_, _ = io.WriteString(w, `[{"numberOfFanSpeeds":3,"hasFanSpeedAuto":true,"hasModeHeat":true,"minimumSetPoints":{"heat":10,"cool":19},"maximumSetPoints":{"heat":28,"cool":31}}]`)
			return
		case "/v3/devices/send-command":
			assertAuth(t, r)
			body, _ := io.ReadAll(r.Body)
			commandBody = string(body)
			_, _ = io.WriteString(w, `{}`)
			return
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	account, err := client.Account(ctx)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if account["username"] != "user@example.com" {
		t.Fatalf("unexpected account: %+v", account)
	}

	sites, err := client.Sites(ctx)
	if err != nil {
		t.Fatalf("Sites: %v", err)
	}
	if len(sites) != 1 || sites[0].ID != "site-1" {
		t.Fatalf("unexpected sites: %+v", sites)
	}

	zones, err := client.Zones(ctx, "site-1")
	if err != nil {
		t.Fatalf("Zones: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != "zone-1" {
		t.Fatalf("unexpected zones: %+v", zones)
	}
	adapter := zones[0].Adapter
	if adapter == nil || adapter.DeviceSerial != "SER123" {
		t.Fatalf("unexpected adapter: %+v", adapter)
	}
	if adapter.RoomTemp == nil || *adapter.RoomTemp != 21.5 {
		t.Fatalf("unexpected room temperature: %v", adapter.RoomTemp)
	}
	if adapter.SpHeat != nil {
		t.Fatalf("expected absent spHeat to stay nil, got %v", *adapter.SpHeat)
	}

	detail, err := client.DeviceDetails(ctx, "SER123")
	if err != nil {
		t.Fatalf("DeviceDetails: %v", err)
	}
	if detail.SerialNumber != "SER123" || detail.ModelNumber != "MSZ-GL12NA" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.SpCool == nil || *detail.SpCool != 22.5 {
		t.Fatalf("unexpected cool setpoint: %v", detail.SpCool)
	}
	if detail.Model.IsSwing == nil || *detail.Model.IsSwing {
		t.Fatalf("unexpected swing flag: %v", detail.Model.IsSwing)
	}

	profiles, err := client.DeviceProfiles(ctx, "SER123")
	if err != nil {
		t.Fatalf("DeviceProfiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].NumberOfFanSpeeds != 3 {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}
	if profiles[0].MinimumSetPoints.Cool == nil || *profiles[0].MinimumSetPoints.Cool != 19 {
		t.Fatalf("unexpected minimum setpoints: %+v", profiles[0].MinimumSetPoints)
	}

	if err := client.SendCommand(ctx, "SER123", Command{"operationMode": "heat", "spHeat": 21.5}); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if !strings.Contains(commandBody, `"deviceSerial":"SER123"`) {
		t.Fatalf("expected device serial in command payload: %s", commandBody)
	}
	if !strings.Contains(commandBody, `"operationMode":"heat"`) || !strings.Contains(commandBody, `"spHeat":21.5`) {
		t.Fatalf("unexpected command payload: %s", commandBody)
	}

	if loginRequests != 1 {
		t.Fatalf("expected a single login, got %d", loginRequests)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	err := client.Login(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid username or password") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestTokenRefresh(t *testing.T) {
	var refreshRequests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			_, _ = io.WriteString(w, `{"token":{"access":"access-1","refresh":"refresh-1"}}`)
			return
		case "/v3/refresh":
			refreshRequests++
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"refresh":"refresh-1"`) {
				t.Fatalf("expected refresh token in body, got %s", string(body))
			}
			_, _ = io.WriteString(w, `{"access":"access-2","refresh":"refresh-2"}`)
			return
		case "/v3/accounts/me":
			if auth := r.Header.Get("Authorization"); auth != "Bearer access-2" {
				t.Fatalf("expected refreshed token, got %s", auth)
			}
			_, _ = io.WriteString(w, `{"id":"acct-1"}`)
			return
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := client.RefreshToken(ctx); err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if _, err := client.Account(ctx); err != nil {
		t.Fatalf("Account: %v", err)
	}
	if refreshRequests != 1 {
		t.Fatalf("expected a single refresh, got %d", refreshRequests)
	}
}

func TestRefreshTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			_, _ = io.WriteString(w, `{"token":{"access":"access-1","refresh":"refresh-1"}}`)
		case "/v3/refresh":
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	err := client.RefreshToken(ctx)
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !strings.Contains(err.Error(), "refresh token expired") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestRefreshTokenWithoutSession(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	err := client.RefreshToken(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no refresh token available") {
		t.Fatalf("unexpected error message: %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected no requests without a refresh token, got %d", requests)
	}
}

func TestConnectRestoresPersistedSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			t.Fatalf("unexpected login with a valid persisted session")
		case "/v3/accounts/me":
			if auth := r.Header.Get("Authorization"); auth != "Bearer stored-access" {
				t.Fatalf("expected stored token, got %s", auth)
			}
			_, _ = io.WriteString(w, `{"id":"acct-1"}`)
		}
	}))
	defer server.Close()

	statePath := filepath.Join(t.TempDir(), "session.json")
	if err := WriteState(statePath, State{
		Username:     "user@example.com",
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
	}); err != nil {
		t.Fatalf("write state: %v", err)
	}

	client := newTestClient(t, Config{BaseURL: server.URL, StateFile: statePath})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestConnectFallsBackToLogin(t *testing.T) {
	var loginRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			loginRequests++
			_, _ = io.WriteString(w, `{"token":{"access":"new-access","refresh":"new-refresh"}}`)
		case "/v3/accounts/me":
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	statePath := filepath.Join(t.TempDir(), "session.json")
	if err := WriteState(statePath, State{
		Username:     "user@example.com",
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
	}); err != nil {
		t.Fatalf("write state: %v", err)
	}

	client := newTestClient(t, Config{BaseURL: server.URL, StateFile: statePath})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if loginRequests != 1 {
		t.Fatalf("expected fallback login, got %d requests", loginRequests)
	}

	state, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state.AccessToken != "new-access" || state.RefreshToken != "new-refresh" {
		t.Fatalf("expected persisted state to carry fresh tokens: %+v", state)
	}
}

func TestConnectRestoresSessionFromBlob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			t.Fatalf("unexpected login with a valid blob session")
		case "/v3/accounts/me":
			if auth := r.Header.Get("Authorization"); auth != "Bearer blob-access" {
				t.Fatalf("expected blob token, got %s", auth)
			}
			_, _ = io.WriteString(w, `{"id":"acct-1"}`)
		}
	}))
	defer server.Close()

	store := &memoryBlobStore{}
	seed, err := json.Marshal(State{
		SchemaVersion: StateSchemaVersion,
		Username:      "user@example.com",
		AccessToken:   "blob-access",
		RefreshToken:  "blob-refresh",
	})
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	if err := store.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	client := newTestClient(t, Config{BaseURL: server.URL, Blob: store})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestLoginMirrorsSessionToBlob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/login" {
			_, _ = io.WriteString(w, `{"token":{"access":"fresh-access","refresh":"fresh-refresh"}}`)
		}
	}))
	defer server.Close()

	store := &memoryBlobStore{}
	client := newTestClient(t, Config{BaseURL: server.URL, Blob: store})

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	state, err := DecodeState(store.data)
	if err != nil {
		t.Fatalf("decode blob state: %v", err)
	}
	if state.AccessToken != "fresh-access" || state.RefreshToken != "fresh-refresh" {
		t.Fatalf("expected blob to carry fresh tokens: %+v", state)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/login":
			_, _ = io.WriteString(w, `{"token":{"access":"test-token","refresh":"test-refresh"}}`)
		case "/v3/accounts/me":
			w.WriteHeader(http.StatusUnauthorized)
		case "/v3/sites/":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
		}
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err := client.Account(ctx)
	if !IsAuthError(err) {
		t.Fatalf("expected auth error for 401, got %v", err)
	}

	_, err = client.Sites(ctx)
	if !IsConnectionError(err) {
		t.Fatalf("expected connection error for 500, got %v", err)
	}
	var ce ConnectionError
	if !errors.As(err, &ce) || ce.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected connection error: %v", err)
	}
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.Username == "" {
		cfg.Username = "user@example.com"
	}
	if cfg.Password == "" {
		cfg.Password = "hunter2"
	}
	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func assertAuth(t *testing.T, r *http.Request) {
	t.Helper()
	if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
		t.Fatalf("unexpected auth header: %s", auth)
	}
	if version := r.Header.Get("x-app-version"); version != "3.0.9" {
		t.Fatalf("unexpected app version header: %s", version)
	}
}
