package kumo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBaseURL = "https://app-prod.kumocloud.com"
	apiVersion     = "v3"
	appVersion     = "3.0.9"

	requestTimeout    = 10 * time.Second
	requestsPerMinute = 60

	// Access token lifetime as the mobile app observes it. A refresh is
	// issued once the remaining lifetime drops under the margin.
	tokenTTL      = 20 * time.Minute
	refreshMargin = 5 * time.Minute
)

// Config carries what the client needs to reach the cloud service.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	StateFile string
	Blob      BlobStore
}

// Client talks to the Kumo Cloud REST API.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	session    *session
	refreshing singleflight.Group
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: guardHTTP(&http.Client{Timeout: requestTimeout}, requestsPerMinute),
		session:    newSession(cfg.Username, cfg.StateFile, cfg.Blob, log),
		log:        log,
	}, nil
}

// Connect restores a persisted session when one exists, verifying it with
// an account probe, and falls back to a credential login.
func (c *Client) Connect(ctx context.Context) error {
	if c.session.restore(ctx) {
		_, err := c.Account(ctx)
		if err == nil {
			c.log.Info("session restored", zap.String("username", c.username))
			return nil
		}
		if !IsAuthError(err) {
			return err
		}
		c.log.Info("restored session rejected, logging in")
	}
	return c.Login(ctx)
}

// Login exchanges the configured credentials for a fresh token pair.
func (c *Client) Login(ctx context.Context) error {
	resp, err := c.postPlain(ctx, "login", "/login", map[string]string{
		"username":   c.username,
		"password":   c.password,
		"appVersion": appVersion,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return AuthError{Op: "login", Msg: "invalid username or password"}
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(resp.Body)
		return ConnectionError{Op: "login", Status: resp.StatusCode, Body: string(data)}
	}

	var out struct {
		Token struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		} `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return APIError{Op: "login", Msg: fmt.Sprintf("decode response: %v", err)}
	}
	if out.Token.Access == "" || out.Token.Refresh == "" {
		return APIError{Op: "login", Msg: "response missing token pair"}
	}

	c.session.store(ctx, out.Token.Access, out.Token.Refresh)
	c.log.Info("logged in", zap.String("username", c.username))
	return nil
}

// RefreshToken exchanges the refresh token for a new pair. Concurrent
// callers share a single exchange.
func (c *Client) RefreshToken(ctx context.Context) error {
	_, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		return nil, c.refreshOnce(ctx)
	})
	return err
}

func (c *Client) refreshOnce(ctx context.Context) error {
	refresh, ok := c.session.refreshToken()
	if !ok {
		return AuthError{Op: "refresh", Msg: "no refresh token available"}
	}

	resp, err := c.postPlain(ctx, "refresh", "/refresh", map[string]string{
		"refresh": refresh,
	})
	if err != nil {
		refreshFailure.Inc()
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		refreshFailure.Inc()
		sessionValid.Set(0)
		return AuthError{Op: "refresh", Msg: "refresh token expired"}
	case resp.StatusCode >= 300:
		refreshFailure.Inc()
		data, _ := io.ReadAll(resp.Body)
		return ConnectionError{Op: "refresh", Status: resp.StatusCode, Body: string(data)}
	}

	// Unlike login, the refresh response carries the pair at the top level.
	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		refreshFailure.Inc()
		return APIError{Op: "refresh", Msg: fmt.Sprintf("decode response: %v", err)}
	}
	if out.Access == "" || out.Refresh == "" {
		refreshFailure.Inc()
		return APIError{Op: "refresh", Msg: "response missing token pair"}
	}

	c.session.store(ctx, out.Access, out.Refresh)
	refreshSuccess.Inc()
	c.log.Debug("access token refreshed")
	return nil
}

// Account fetches the authenticated account profile. The payload shape is
// loosely specified by the service, so it is passed through as-is.
func (c *Client) Account(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "account", "/accounts/me", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var out []Site
	// The trailing slash matters here.
	if err := c.getJSON(ctx, "sites", "/sites/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Zones(ctx context.Context, siteID string) ([]Zone, error) {
	var out []Zone
	if err := c.getJSON(ctx, "zones", fmt.Sprintf("/sites/%s/zones", siteID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeviceDetails(ctx context.Context, serial string) (DeviceDetail, error) {
	var out DeviceDetail
	if err := c.getJSON(ctx, "device", fmt.Sprintf("/devices/%s", serial), &out); err != nil {
		return DeviceDetail{}, err
	}
	return out, nil
}

func (c *Client) DeviceProfiles(ctx context.Context, serial string) ([]DeviceProfile, error) {
	var out []DeviceProfile
	if err := c.getJSON(ctx, "profile", fmt.Sprintf("/devices/%s/profile", serial), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendCommand writes a partial settings update to one device.
func (c *Client) SendCommand(ctx context.Context, serial string, cmd Command) error {
	body, err := json.Marshal(map[string]any{
		"deviceSerial": serial,
		"commands":     cmd,
	})
	if err != nil {
		return err
	}

	resp, err := c.doRequest(ctx, "send-command", http.MethodPost, "/devices/send-command", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.doRequest(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return APIError{Op: op, Msg: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// doRequest issues an authenticated request, refreshing the access token
// first when it is close to expiry.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body io.Reader) (*http.Response, error) {
	if err := c.ensureValid(ctx); err != nil {
		return nil, err
	}
	access, _ := c.session.accessToken()

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-app-version", appVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ConnectionError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		sessionValid.Set(0)
		return nil, AuthError{Op: op, Msg: "authentication failed"}
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, ConnectionError{Op: op, Status: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

// postPlain issues an unauthenticated POST; login and refresh use it.
// Status mapping is left to the caller.
func (c *Client) postPlain(ctx context.Context, op, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-app-version", appVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ConnectionError{Op: op, Err: err}
	}
	return resp, nil
}

func (c *Client) ensureValid(ctx context.Context) error {
	if _, ok := c.session.accessToken(); !ok {
		return AuthError{Op: "request", Msg: "not logged in"}
	}
	if c.session.expiringWithin(refreshMargin) {
		return c.RefreshToken(ctx)
	}
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + apiVersion + path
}
