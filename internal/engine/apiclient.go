package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIClient implements the Baseline, Writeback, ReleaseSource and
// Preferences collaborators over the REST API, for sessions running
// outside the server process (see cmd/agent).
type APIClient struct {
	baseURL string
	token   string
	userID  uint
	client  *http.Client
}

// NewAPIClient creates a client for the given API base URL and JWT.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Login obtains and stores a JWT for the given credentials.
func (c *APIClient) Login(ctx context.Context, username, password string) error {
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Token   string `json:"token"`
		User    struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &result); err != nil {
		return err
	}
	if result.Token == "" {
		return fmt.Errorf("login: no token in response")
	}
	c.token = result.Token
	c.userID = result.User.ID
	return nil
}

// UserID returns the id of the authenticated user, zero before Login.
func (c *APIClient) UserID() uint {
	return c.userID
}

// FetchBaseline retrieves the notification baseline for the current user.
func (c *APIClient) FetchBaseline(ctx context.Context) ([]Notification, error) {
	var result struct {
		Success       bool           `json:"success"`
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &result); err != nil {
		return nil, err
	}
	return result.Notifications, nil
}

// MarkRead marks one notification as read.
func (c *APIClient) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/"+id+"/read", nil, nil)
}

// MarkAllRead marks every notification of the current user as read.
func (c *APIClient) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/read-all", nil, nil)
}

// Acknowledge acknowledges a critical notification.
func (c *APIClient) Acknowledge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+id+"/acknowledge", nil, nil)
}

// LatestRelease returns the latest published release, or nil if none.
func (c *APIClient) LatestRelease(ctx context.Context) (*Release, error) {
	var result struct {
		Success bool     `json:"success"`
		Release *Release `json:"release"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/releases/latest", nil, &result); err != nil {
		return nil, err
	}
	return result.Release, nil
}

// Load retrieves the persisted per-user preferences.
func (c *APIClient) Load(ctx context.Context) (Prefs, error) {
	var result struct {
		Success     bool  `json:"success"`
		Preferences Prefs `json:"preferences"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/preferences", nil, &result); err != nil {
		return Prefs{}, err
	}
	return result.Preferences, nil
}

// SetLastSeenVersion persists the version gate marker.
func (c *APIClient) SetLastSeenVersion(ctx context.Context, version string) error {
	return c.do(ctx, http.MethodPut, "/api/preferences", map[string]interface{}{
		"last_seen_version": version,
	}, nil)
}

// SetMuted persists the audio cue preference.
func (c *APIClient) SetMuted(ctx context.Context, muted bool) error {
	return c.do(ctx, http.MethodPut, "/api/preferences", map[string]interface{}{
		"muted": muted,
	}, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Message != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, envelope.Message, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
