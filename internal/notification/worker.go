package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pond-status-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is the JSON body delivered to the service worker.
type pushPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	PondID int64  `json:"pond_id"`
}

// WorkerPool manages a pool of workers that record completion alerts and
// deliver web push notifications when a pond's lift-net operation finishes.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool. Jobs are pond identifiers.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.Named("notification"),
	}
}

// SetSender replaces the push sender; used by tests.
func (wp *WorkerPool) SetSender(s Sender) { wp.sender = s }

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Info("worker started", zap.Int("worker", id))
	for {
		select {
		case pondID := <-wp.jobs:
			wp.logger.Debug("processing pond", zap.Int("worker", id), zap.Int64("pond_id", pondID))
			wp.notifyPondCompleted(ctx, pondID)
		case <-ctx.Done():
			wp.logger.Info("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(pondID int64) {
	wp.jobs <- pondID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// notifyPondCompleted records a completion alert and pushes it to every
// subscription watching the pond.
func (wp *WorkerPool) notifyPondCompleted(ctx context.Context, pondID int64) {
	pondLabel := fmt.Sprintf("%d", pondID)
	var pond model.Pond
	if err := wp.db.WithContext(ctx).Select("name").First(&pond, pondID).Error; err != nil {
		wp.logger.Warn("could not fetch pond", zap.Int64("pond_id", pondID), zap.Error(err))
	} else if pond.Name != "" {
		pondLabel = pond.Name
	}

	payload := pushPayload{
		Title:  "Lift-net operation completed",
		Body:   fmt.Sprintf("Pond %s has finished the lift-net operation.", pondLabel),
		PondID: pondID,
	}

	alert := model.Alert{
		ID:        uuid.NewString(),
		PondID:    pondID,
		Type:      "liftnet_completed",
		Title:     payload.Title,
		Body:      payload.Body,
		Severity:  model.SeverityLow,
		Status:    model.AlertStatusUnread,
		CreatedAt: time.Now().UTC(),
	}
	if err := wp.db.WithContext(ctx).Create(&alert).Error; err != nil {
		wp.logger.Error("failed to record alert", zap.Int64("pond_id", pondID), zap.Error(err))
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_pond_mapping spm ON spm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("spm.pond_id = ?", pondID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Error("failed to fetch subscriptions", zap.Int64("pond_id", pondID), zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		wp.logger.Error("failed to marshal push payload", zap.Error(err))
		return
	}

	wp.logger.Info("sending notifications",
		zap.Int("count", len(subscriptions)), zap.Int64("pond_id", pondID))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
