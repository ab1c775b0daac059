package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pond-status-backend/internal/store"
)

// statusEnvelope models the wire format of the pond-status endpoint.
type statusEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		PondID    int64  `json:"pondId"`
		Status    int    `json:"status"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

// Client is a thin REST client for the pond-status API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given server base URL. A nil
// httpClient falls back to a 10 second timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// GetStatus fetches the current lift-net status for a pond. A pond that
// has never reported yields PhaseNone.
func (c *Client) GetStatus(ctx context.Context, pondID int64) (store.Phase, time.Time, error) {
	url := fmt.Sprintf("%s/api/pond-status/%d", c.baseURL, pondID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return store.PhaseNone, time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return store.PhaseNone, time.Time{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return store.PhaseNone, time.Time{}, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return store.PhaseNone, time.Time{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return store.PhaseNone, time.Time{}, fmt.Errorf("failed to unmarshal status response: %w", err)
	}

	if env.Data.Status == 0 {
		return store.PhaseNone, time.Time{}, nil
	}
	phase, err := store.PhaseFromWire(env.Data.Status)
	if err != nil {
		return store.PhaseNone, time.Time{}, err
	}

	var ts time.Time
	if env.Data.Timestamp != "" {
		ts, _ = time.Parse(time.RFC3339, env.Data.Timestamp)
	}
	return phase, ts, nil
}

// ReportStatus posts a status code for a pond; this is the device-side
// write used by controllers and tests.
func (c *Client) ReportStatus(ctx context.Context, pondID int64, phase store.Phase) error {
	payload, err := json.Marshal(map[string]int{"status": phase.Wire()})
	if err != nil {
		return fmt.Errorf("failed to marshal status payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/pond-status/%d", c.baseURL, pondID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}
	return nil
}
