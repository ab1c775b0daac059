package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pond-status-backend/internal/notification"
	"pond-status-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	statuses store.StatusStore
	db       *gorm.DB
	webpush  *webpush.Options
	pool     *notification.WorkerPool
	logger   *zap.Logger
}

// NewHandler creates a new API handler. pool may be nil when push
// notifications are not configured.
func NewHandler(statuses store.StatusStore, db *gorm.DB, webpushOptions *webpush.Options, pool *notification.WorkerPool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		statuses: statuses,
		db:       db,
		webpush:  webpushOptions,
		pool:     pool,
		logger:   logger.Named("api"),
	}
}
