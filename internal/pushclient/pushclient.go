package pushclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Permission mirrors the browser Notification permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Prompter asks the user for notification permission. In a browser this
// is Notification.requestPermission; tests and embedded UIs provide their
// own implementation.
type Prompter interface {
	RequestPermission(ctx context.Context) (Permission, error)
}

// Subscription is the endpoint/key triple produced by a push provider.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Provider creates and destroys push subscriptions against a push
// service, the PushManager role in a browser.
type Provider interface {
	Subscribe(ctx context.Context, vapidPublicKey string) (*Subscription, error)
	Unsubscribe(ctx context.Context, endpoint string) error
}

// Flow drives the permission → subscribe → backend-registration sequence.
// A failure at any step surfaces through Err() and leaves the flow state
// unchanged; there is no automatic retry, the caller must re-trigger.
type Flow struct {
	baseURL  string
	token    string
	http     *http.Client
	prompter Prompter
	provider Provider
	logger   *zap.Logger

	mu         sync.Mutex
	permission Permission
	sub        *Subscription
	lastErr    string
}

// NewFlow creates a push subscription flow against the given backend.
// token is the Bearer token forwarded on subscribe/unsubscribe calls.
func NewFlow(baseURL, token string, prompter Prompter, provider Provider, httpClient *http.Client, logger *zap.Logger) *Flow {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		baseURL:    baseURL,
		token:      token,
		http:       httpClient,
		prompter:   prompter,
		provider:   provider,
		logger:     logger.Named("pushclient"),
		permission: PermissionDefault,
	}
}

// RequestPermission runs the permission prompt. Returns true when the
// user granted notifications.
func (f *Flow) RequestPermission(ctx context.Context) bool {
	perm, err := f.prompter.RequestPermission(ctx)
	if err != nil {
		f.setErr(fmt.Sprintf("failed to request permission: %v", err))
		return false
	}

	f.mu.Lock()
	f.permission = perm
	f.mu.Unlock()

	if perm != PermissionGranted {
		f.setErr("Permission denied for push notifications")
		return false
	}
	f.clearErr()
	return true
}

// Subscribe registers a push subscription for the given ponds: fetch the
// VAPID public key, subscribe with the provider, then hand the endpoint
// and keys to the backend. Requires granted permission.
func (f *Flow) Subscribe(ctx context.Context, pondIDs []int64) bool {
	f.mu.Lock()
	perm := f.permission
	f.mu.Unlock()
	if perm != PermissionGranted {
		f.setErr("Push notifications permission not granted")
		return false
	}

	vapidKey, err := f.fetchVAPIDKey(ctx)
	if err != nil {
		f.setErr(fmt.Sprintf("failed to get VAPID keys: %v", err))
		return false
	}

	sub, err := f.provider.Subscribe(ctx, vapidKey)
	if err != nil {
		f.setErr(fmt.Sprintf("failed to subscribe: %v", err))
		return false
	}

	if err := f.registerSubscription(ctx, sub, pondIDs); err != nil {
		f.setErr(fmt.Sprintf("failed to subscribe to push notifications: %v", err))
		return false
	}

	f.mu.Lock()
	f.sub = sub
	f.mu.Unlock()
	f.clearErr()
	f.logger.Info("push subscription registered", zap.String("endpoint", sub.Endpoint))
	return true
}

// Unsubscribe tears the subscription down. The provider unsubscribe must
// succeed; the backend delete is best-effort and a failure there does not
// roll back the local unsubscribe.
func (f *Flow) Unsubscribe(ctx context.Context) bool {
	f.mu.Lock()
	sub := f.sub
	f.mu.Unlock()
	if sub == nil {
		f.setErr("No active subscription to unsubscribe")
		return false
	}

	if err := f.provider.Unsubscribe(ctx, sub.Endpoint); err != nil {
		f.setErr(fmt.Sprintf("failed to unsubscribe: %v", err))
		return false
	}

	f.mu.Lock()
	f.sub = nil
	f.mu.Unlock()
	f.clearErr()

	if err := f.deleteSubscription(ctx, sub.Endpoint); err != nil {
		// Local state stays authoritative.
		f.logger.Warn("backend unsubscribe failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
	}
	return true
}

// Permission returns the current permission state.
func (f *Flow) Permission() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

// Subscribed reports whether an active subscription exists.
func (f *Flow) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sub != nil
}

// Subscription returns the active subscription, or nil.
func (f *Flow) Subscription() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sub
}

// Err returns the last error message, or "" when none.
func (f *Flow) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *Flow) setErr(msg string) {
	f.logger.Warn("push flow error", zap.String("error", msg))
	f.mu.Lock()
	f.lastErr = msg
	f.mu.Unlock()
}

func (f *Flow) clearErr() {
	f.mu.Lock()
	f.lastErr = ""
	f.mu.Unlock()
}

func (f *Flow) fetchVAPIDKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/vapid_public_key", nil)
	if err != nil {
		return "", err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var payload struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if payload.PublicKey == "" {
		return "", fmt.Errorf("empty VAPID public key")
	}
	return payload.PublicKey, nil
}

func (f *Flow) registerSubscription(ctx context.Context, sub *Subscription, pondIDs []int64) error {
	payload, err := json.Marshal(map[string]any{
		"endpoint":         sub.Endpoint,
		"p256dh":           sub.P256DH,
		"auth":             sub.Auth,
		"subscribed_ponds": pondIDs,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, f.baseURL+"/api/subscriptions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}

func (f *Flow) deleteSubscription(ctx context.Context, endpoint string) error {
	payload, err := json.Marshal(map[string]string{"endpoint": endpoint})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, f.baseURL+"/api/subscriptions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}
