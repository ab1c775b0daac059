package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pond-status-backend/internal/api"
	"pond-status-backend/internal/db"
	"pond-status-backend/internal/model"
	"pond-status-backend/internal/notification"
	"pond-status-backend/internal/poller"
	"pond-status-backend/internal/store"
)

// recordingSender captures every push the worker pool sends.
type recordingSender struct {
	mu        sync.Mutex
	endpoints []string
	payloads  [][]byte
}

func (s *recordingSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append(s.endpoints, sub.Endpoint)
	s.payloads = append(s.payloads, payload)
	return &http.Response{StatusCode: http.StatusCreated, Body: http.NoBody}, nil
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.endpoints...)
}

// TestLiftNetLifecycle drives a full lift-net operation through the real
// HTTP stack: a device reports status codes 1 through 5, a poller observes
// each transition, and completion fans out to the recorded subscription.
func TestLiftNetLifecycle(t *testing.T) {
	testDB, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &recordingSender{}
	pool := notification.NewWorkerPool(2, testDB, &webpush.Options{}, nil)
	pool.SetSender(sender)
	pool.Start(ctx)

	statuses := store.NewMemoryStore(0)
	handler := api.NewHandler(statuses, testDB, &webpush.Options{}, pool, nil)
	router := api.NewRouter(handler, api.RouterOptions{RateLimitPerSec: 1000, RateLimitBurst: 1000})
	server := httptest.NewServer(router)
	defer server.Close()

	// Register a pond and a subscription watching it.
	resp, err := http.Post(server.URL+"/api/ponds", "application/json",
		bytes.NewBufferString(`{"name":"Pond A","location":"north field"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data model.Pond `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	pondID := created.Data.ID

	subBody := fmt.Sprintf(`{"endpoint":"https://push.example.com/lifecycle","p256dh":"k","auth":"a","subscribed_ponds":[%d]}`, pondID)
	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/subscriptions", bytes.NewBufferString(subBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Observe the operation through a poller, like the operator UI does.
	var mu sync.Mutex
	var updates []store.Phase
	completed := make(chan struct{})

	client := poller.NewClient(server.URL, nil)
	p := poller.New(client, pondID, poller.Options{
		Interval: 10 * time.Millisecond,
		Ceiling:  2 * time.Second,
		OnStatusUpdate: func(phase store.Phase) {
			mu.Lock()
			updates = append(updates, phase)
			mu.Unlock()
		},
		OnStatusComplete: func() { close(completed) },
	})
	require.True(t, p.Start(ctx))

	// The device walks through the five status codes.
	for code := 1; code <= 5; code++ {
		phase, err := store.PhaseFromWire(code)
		require.NoError(t, err)
		require.NoError(t, client.ReportStatus(ctx, pondID, phase))
		time.Sleep(30 * time.Millisecond)
	}

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never observed the terminal status")
	}

	mu.Lock()
	assert.Equal(t, []store.Phase{
		store.PhasePreparing, store.PhaseLifting, store.PhaseCaptured, store.PhaseAwaitingData,
	}, updates)
	mu.Unlock()
	assert.True(t, p.IsCompleted())
	assert.False(t, p.IsProcessing())

	// The read endpoint serves the final state.
	resp, err = http.Get(fmt.Sprintf("%s/api/pond-status/%d", server.URL, pondID))
	require.NoError(t, err)
	var statusResp struct {
		Data struct {
			Status int `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statusResp))
	resp.Body.Close()
	assert.Equal(t, 5, statusResp.Data.Status)

	// Every report was archived, newest first.
	var events []model.LiftEvent
	require.NoError(t, testDB.Where("pond_id = ?", pondID).Order("observed_at desc").Find(&events).Error)
	require.Len(t, events, 5)
	assert.Equal(t, 5, events[0].Status)
	assert.Equal(t, 1, events[4].Status)

	// Completion recorded an alert and pushed it to the subscriber.
	assert.Eventually(t, func() bool {
		return len(sender.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"https://push.example.com/lifecycle"}, sender.sent())

	var alerts []model.Alert
	require.NoError(t, testDB.Where("pond_id = ?", pondID).Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertStatusUnread, alerts[0].Status)
	assert.Contains(t, alerts[0].Body, "Pond A")
}

// TestInvalidReportLeavesRecordUnchanged exercises the write path's
// validation through the full stack.
func TestInvalidReportLeavesRecordUnchanged(t *testing.T) {
	testDB, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	statuses := store.NewMemoryStore(0)
	handler := api.NewHandler(statuses, testDB, nil, nil, nil)
	router := api.NewRouter(handler, api.RouterOptions{RateLimitPerSec: 1000, RateLimitBurst: 1000})
	server := httptest.NewServer(router)
	defer server.Close()

	client := poller.NewClient(server.URL, nil)
	require.NoError(t, client.ReportStatus(context.Background(), 7, store.PhaseLifting))

	// Out-of-range and malformed reports are rejected.
	for _, body := range []string{`{"status":9}`, `{"status":0}`, `{"note":"x"}`, `not json`} {
		resp, err := http.Post(server.URL+"/api/pond-status/7", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
		resp.Body.Close()
	}

	phase, _, err := client.GetStatus(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, store.PhaseLifting, phase, "rejected reports must not clobber the record")

	// One archived event from the single valid report.
	var count int64
	require.NoError(t, testDB.Model(&model.LiftEvent{}).Where("pond_id = ?", 7).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
