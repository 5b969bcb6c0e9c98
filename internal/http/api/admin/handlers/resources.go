package handlers

import (
	"net/http"
	"strings"

	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ResourceHandler exposes the metered resource registry to the console.
type ResourceHandler struct {
	db *gorm.DB
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(db *gorm.DB) *ResourceHandler {
	return &ResourceHandler{db: db}
}

// resourceListQuery defines filters for the resource list view.
type resourceListQuery struct {
	Page   int    `form:"page,default=1"`   // Page number.
	Limit  int    `form:"limit,default=20"` // Page size.
	UserID uint64 `form:"user_id"`          // Owner filter.
	Type   string `form:"type"`             // Resource type filter.
	Status string `form:"status"`           // Lifecycle status filter.
}

// List returns registered resources with paging and filters.
func (h *ResourceHandler) List(c *gin.Context) {
	var q resourceListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	ctx := c.Request.Context()
	base := h.db.WithContext(ctx).Model(&models.MeteredResource{})
	if q.UserID != 0 {
		base = base.Where("user_id = ?", q.UserID)
	}
	if typeQ := strings.TrimSpace(q.Type); typeQ != "" {
		base = base.Where("type = ?", typeQ)
	}
	if statusQ := strings.TrimSpace(q.Status); statusQ != "" {
		base = base.Where("status = ?", statusQ)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count resources"})
		return
	}

	var rows []models.MeteredResource
	if errFind := base.
		Order("id DESC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load resources"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":             row.ID,
			"user_id":        row.UserID,
			"type":           row.Type,
			"external_id":    row.ExternalID,
			"name":           row.Name,
			"status":         row.Status,
			"size_gb":        row.SizeGB,
			"last_billed_at": row.LastBilledAt,
			"paused_at":      row.PausedAt,
			"created_at":     row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"resources": out,
		"total":     total,
		"page":      q.Page,
		"limit":     q.Limit,
	})
}
