package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pond-status-backend/internal/model"
)

// GetPondAlerts handles GET /api/ponds/:pond_id/alerts.
func (h *Handler) GetPondAlerts(c *gin.Context) {
	pondID, err := strconv.ParseInt(c.Param("pond_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pond ID"})
		return
	}

	var alerts []model.Alert
	if err := h.db.WithContext(c.Request.Context()).
		Where("pond_id = ?", pondID).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alerts"})
		return
	}

	var unread int64
	h.db.WithContext(c.Request.Context()).
		Model(&model.Alert{}).
		Where("pond_id = ? AND status = ?", pondID, model.AlertStatusUnread).
		Count(&unread)

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"alerts":       alerts,
		"total_count":  len(alerts),
		"unread_count": unread,
	})
}

// MarkAlertRead handles POST /api/alerts/:alert_id/read.
func (h *Handler) MarkAlertRead(c *gin.Context) {
	alertID := c.Param("alert_id")

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).
		Model(&model.Alert{}).
		Where("id = ?", alertID).
		Updates(map[string]any{"status": model.AlertStatusRead, "read_at": &now})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
