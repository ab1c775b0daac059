package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pond-status-backend/internal/model"
)

func subscriptionRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/api/subscriptions", h.GetSubscription)
	r.PUT("/api/subscriptions", h.PutSubscription)
	r.DELETE("/api/subscriptions", h.DeleteSubscription)
	return r
}

func TestPutSubscription_MissingFields(t *testing.T) {
	h, _ := newTestHandler(t)
	r := subscriptionRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/api/subscriptions",
		bytes.NewBufferString(`{"endpoint":"https://push.example/abc"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	h, db := newTestHandler(t)
	r := subscriptionRouter(h)

	require.NoError(t, db.Create(&model.Pond{ID: 1, Name: "Pond A"}).Error)
	require.NoError(t, db.Create(&model.Pond{ID: 2, Name: "Pond B"}).Error)

	endpoint := "https://push.example/sub-1"
	put := func(body string) int {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPut, "/api/subscriptions", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w.Code
	}

	// Create subscribing to both ponds.
	code := put(`{"endpoint":"` + endpoint + `","p256dh":"k1","auth":"a1","subscribed_ponds":[1,2]}`)
	require.Equal(t, http.StatusCreated, code)

	get := func() (int, []int64) {
		w := httptest.NewRecorder()
		// The handler compares the raw query value, so the endpoint goes
		// in unescaped.
		req, _ := http.NewRequest(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, nil)
		r.ServeHTTP(w, req)
		var resp struct {
			SubscribedPonds []int64 `json:"subscribed_ponds"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return w.Code, resp.SubscribedPonds
	}

	status, ponds := get()
	require.Equal(t, http.StatusOK, status)
	assert.ElementsMatch(t, []int64{1, 2}, ponds)

	// Replace: new keys, only one pond.
	code = put(`{"endpoint":"` + endpoint + `","p256dh":"k2","auth":"a2","subscribed_ponds":[2]}`)
	require.Equal(t, http.StatusCreated, code)

	status, ponds = get()
	require.Equal(t, http.StatusOK, status)
	assert.ElementsMatch(t, []int64{2}, ponds)

	var stored model.PushSubscription
	require.NoError(t, db.First(&stored, "endpoint = ?", endpoint).Error)
	assert.Equal(t, "k2", stored.P256DH)
	assert.Equal(t, "a2", stored.Auth)

	// Delete.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/api/subscriptions",
		bytes.NewBufferString(`{"endpoint":"`+endpoint+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	status, _ = get()
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetSubscription_RequiresEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	r := subscriptionRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"endpoint is required"}`, w.Body.String())
}
