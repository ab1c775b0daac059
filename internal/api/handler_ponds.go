package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pond-status-backend/internal/model"
)

type createPondRequest struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

// GetPonds handles the GET /api/ponds request.
func (h *Handler) GetPonds(c *gin.Context) {
	var ponds []model.Pond
	if err := h.db.WithContext(c.Request.Context()).Order("id").Find(&ponds).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve ponds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ponds})
}

// GetPond handles the GET /api/ponds/:pond_id request.
func (h *Handler) GetPond(c *gin.Context) {
	pondID, err := strconv.ParseInt(c.Param("pond_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pond ID"})
		return
	}

	var pond model.Pond
	if err := h.db.WithContext(c.Request.Context()).First(&pond, pondID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "pond not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve pond"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pond})
}

// CreatePond handles the POST /api/ponds request.
func (h *Handler) CreatePond(c *gin.Context) {
	var req createPondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pond := model.Pond{Name: req.Name, Location: req.Location}
	if err := h.db.WithContext(c.Request.Context()).Create(&pond).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pond"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": pond})
}
