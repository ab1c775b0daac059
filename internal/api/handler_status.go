package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pond-status-backend/internal/model"
	"pond-status-backend/internal/store"
)

type reportStatusRequest struct {
	Status int `json:"status"`
}

var reportStatusSchema = z.Struct(z.Shape{
	"Status": z.Int().Required(),
})

// statusData is the payload returned for status reads and writes.
type statusData struct {
	PondID    int64  `json:"pondId"`
	Status    int    `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
}

// ReportPondStatus handles POST /api/pond-status/:pond_id, the write
// endpoint used by the raspi controller during a lift-net operation.
func (h *Handler) ReportPondStatus(c *gin.Context) {
	pondID, err := strconv.ParseInt(c.Param("pond_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pond ID"})
		return
	}

	var req reportStatusRequest
	if errs := reportStatusSchema.Parse(zhttp.Request(c.Request), &req); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required and must be a number"})
		return
	}

	phase, err := store.PhaseFromWire(req.Status)
	if err != nil {
		if errors.Is(err, store.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be between 1 and 5"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rec, err := h.statuses.Set(pondID, phase)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("pond status updated",
		zap.Int64("pond_id", pondID),
		zap.Int("status", phase.Wire()),
		zap.String("message", phase.Message()))

	h.archiveLiftEvent(c, rec)

	if phase.Terminal() && h.pool != nil {
		h.pool.Dispatch(pondID)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": statusData{
			PondID:    rec.PondID,
			Status:    rec.Phase.Wire(),
			Message:   rec.Phase.Message(),
			Timestamp: rec.Timestamp.Format(time.RFC3339),
			Source:    "raspi",
		},
	})
}

// GetPondStatus handles GET /api/pond-status/:pond_id, the read endpoint
// polled by clients. It never fails for a well-formed request; an
// identifier that does not parse is treated as never reported.
func (h *Handler) GetPondStatus(c *gin.Context) {
	pondID, err := strconv.ParseInt(c.Param("pond_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    statusData{Status: store.PhaseNone.Wire(), Message: store.PhaseNone.Message()},
		})
		return
	}

	rec, found := h.statuses.Get(pondID)
	if !found {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": statusData{
				PondID:  pondID,
				Status:  store.PhaseNone.Wire(),
				Message: store.PhaseNone.Message(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": statusData{
			PondID:    rec.PondID,
			Status:    rec.Phase.Wire(),
			Timestamp: rec.Timestamp.Format(time.RFC3339),
		},
	})
}

// archiveLiftEvent appends the accepted write to the lift_events history.
// Archive failures are logged, not surfaced; the in-memory record already
// serves the polling clients.
func (h *Handler) archiveLiftEvent(c *gin.Context, rec store.Record) {
	if h.db == nil {
		return
	}
	event := model.LiftEvent{
		PondID:     rec.PondID,
		Status:     rec.Phase.Wire(),
		Message:    rec.Phase.Message(),
		Source:     "raspi",
		ObservedAt: rec.Timestamp,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&event).Error; err != nil {
		h.logger.Error("failed to archive lift event",
			zap.Int64("pond_id", rec.PondID), zap.Error(err))
	}
}

// GetLiftEvents handles GET /api/ponds/:pond_id/lift-events, returning the
// archived status reports newest-first.
func (h *Handler) GetLiftEvents(c *gin.Context) {
	pondID, err := strconv.ParseInt(c.Param("pond_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pond ID"})
		return
	}

	var events []model.LiftEvent
	if err := h.db.WithContext(c.Request.Context()).
		Where("pond_id = ?", pondID).
		Order("observed_at DESC").
		Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve lift events"})
		return
	}

	c.JSON(http.StatusOK, events)
}
