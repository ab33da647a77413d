package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jmorrell/homedeck/internal/chat"
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/infrastructure/config"
	"github.com/jmorrell/homedeck/internal/ota"
	"github.com/jmorrell/homedeck/internal/sensor"
)

// Client errors.
var (
	ErrUnauthorized = errors.New("dashboard: unauthorized")
	ErrNotFound     = errors.New("dashboard: not found")
	ErrConflict     = errors.New("dashboard: conflict")
	ErrUnavailable  = errors.New("dashboard: server unavailable")
)

// defaultRequestTimeout bounds each API round trip.
const defaultRequestTimeout = 10 * time.Second

// Client is the HTTP client for the HomeDeck REST API.
//
// It logs in with the configured dev credentials, caches the JWT, and
// transparently re-authenticates once when a request comes back 401
// (token expiry).
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client

	token   string
	tokenMu sync.Mutex
}

// NewClient creates an API client from the panel configuration.
func NewClient(cfg config.PanelConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Login authenticates against the server and caches the access token.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding login response: %w", err)
	}

	c.tokenMu.Lock()
	c.token = out.AccessToken
	c.tokenMu.Unlock()
	return nil
}

// do performs an authenticated request, decoding a JSON response into out
// when out is non-nil. A 401 triggers one re-login and retry.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	status, data, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		if err := c.Login(ctx); err != nil {
			return err
		}
		status, data, err = c.roundTrip(ctx, method, path, body)
		if err != nil {
			return err
		}
	}

	if err := statusError(status, data); err != nil {
		return err
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.tokenMu.Lock()
	token := c.token
	c.tokenMu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// statusError maps a non-2xx response to a sentinel error carrying the
// server's message.
func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := serverMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("server returned status %d: %s", status, msg)
	}
}

func serverMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return "no detail"
}

// ListDevices fetches the full device list.
func (c *Client) ListDevices(ctx context.Context) ([]device.Device, error) {
	var out struct {
		Devices []device.Device `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// ControlDevice sends a partial state patch and returns the
// server-authoritative device after the merge.
func (c *Client) ControlDevice(ctx context.Context, id string, patch device.State) (*device.Device, error) {
	var out device.Device
	if err := c.do(ctx, http.MethodPost, "/api/v1/devices/"+id+"/control", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSensors fetches the registered sensor fleet.
func (c *Client) ListSensors(ctx context.Context) ([]sensor.Device, error) {
	var out struct {
		Sensors []sensor.Device `json:"sensors"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors", nil, &out); err != nil {
		return nil, err
	}
	return out.Sensors, nil
}

// SensorSummary fetches the fleet-level telemetry summary.
func (c *Client) SensorSummary(ctx context.Context) (*sensor.Summary, error) {
	var out sensor.Summary
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveAlerts fetches unacknowledged active alerts.
func (c *Client) ActiveAlerts(ctx context.Context) ([]sensor.Alert, error) {
	var out struct {
		Alerts []sensor.Alert `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors/alerts?active_only=true", nil, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}

// AcknowledgeAlert marks an alert as seen. Acknowledgement is one-way.
func (c *Client) AcknowledgeAlert(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sensors/alerts/"+id+"/acknowledge", nil, nil)
}

// StartUpdate kicks off a firmware rollout for a sensor.
func (c *Client) StartUpdate(ctx context.Context, deviceID, firmwareVersion string, opts ota.Options) (*ota.Update, error) {
	body := map[string]any{
		"firmware_version": firmwareVersion,
		"backup_config":    opts.BackupConfig,
		"auto_restart":     opts.AutoRestart,
		"safe_mode":        opts.SafeMode,
	}
	var out ota.Update
	if err := c.do(ctx, http.MethodPost, "/api/v1/sensors/"+deviceID+"/ota", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus fetches the most recent update record for a sensor.
// Returns ErrNotFound when the sensor has never been updated.
func (c *Client) UpdateStatus(ctx context.Context, deviceID string) (*ota.Update, error) {
	var out ota.Update
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors/"+deviceID+"/ota/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelUpdate aborts the active update for a sensor.
func (c *Client) CancelUpdate(ctx context.Context, deviceID string) (*ota.Update, error) {
	var out ota.Update
	if err := c.do(ctx, http.MethodPost, "/api/v1/sensors/"+deviceID+"/ota/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat relays a natural-language message with optional client-side history.
func (c *Client) Chat(ctx context.Context, message string, history []chat.Message) (*chat.Reply, error) {
	body := map[string]any{
		"message": message,
		"context": map[string]any{"history": history},
	}
	var out chat.Reply
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
