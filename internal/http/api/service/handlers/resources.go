package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ResourceHandler maintains the metered resource registry on behalf of
// the sandbox orchestration layer.
type ResourceHandler struct {
	db *gorm.DB
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(db *gorm.DB) *ResourceHandler {
	return &ResourceHandler{db: db}
}

var validResourceTypes = map[string]bool{
	models.ResourceTypeSandbox:    true,
	models.ResourceTypeDatabase:   true,
	models.ResourceTypeDeployment: true,
	models.ResourceTypeStorage:    true,
}

// registerRequest defines the request body for resource registration.
type registerRequest struct {
	UserID     uint64          `json:"user_id"`
	Type       string          `json:"type"`
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	SizeGB     decimal.Decimal `json:"size_gb"`
}

// Register adds a resource to the billing registry. Re-registering an
// existing external ID refreshes its name and size and reactivates it.
func (h *ResourceHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	externalID := strings.TrimSpace(body.ExternalID)
	resourceType := strings.TrimSpace(body.Type)
	if body.UserID == 0 || externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and external_id are required"})
		return
	}
	if !validResourceTypes[resourceType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown resource type"})
		return
	}
	if body.SizeGB.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size_gb must not be negative"})
		return
	}

	ctx := c.Request.Context()
	var resource models.MeteredResource
	errFind := h.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&resource).Error
	switch {
	case errFind == nil:
		updates := map[string]any{
			"name":       strings.TrimSpace(body.Name),
			"size_gb":    body.SizeGB,
			"status":     models.ResourceStatusActive,
			"paused_at":  nil,
			"updated_at": time.Now().UTC(),
		}
		if errUpdate := h.db.WithContext(ctx).
			Model(&models.MeteredResource{}).
			Where("id = ?", resource.ID).
			Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update resource"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": resource.ID, "external_id": externalID, "status": models.ResourceStatusActive})
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		resource = models.MeteredResource{
			UserID:     body.UserID,
			Type:       resourceType,
			ExternalID: externalID,
			Name:       strings.TrimSpace(body.Name),
			SizeGB:     body.SizeGB,
			Status:     models.ResourceStatusActive,
		}
		if errCreate := h.db.WithContext(ctx).Create(&resource).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register resource"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": resource.ID, "external_id": externalID, "status": resource.Status})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load resource"})
	}
}

// Stop removes a resource from billing. Stopped resources are skipped by
// every sweep; the record is kept for audit.
func (h *ResourceHandler) Stop(c *gin.Context) {
	externalID := strings.TrimSpace(c.Param("id"))
	if externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resource id is required"})
		return
	}

	ctx := c.Request.Context()
	result := h.db.WithContext(ctx).
		Model(&models.MeteredResource{}).
		Where("external_id = ? AND status <> ?", externalID, models.ResourceStatusStopped).
		Updates(map[string]any{
			"status":     models.ResourceStatusStopped,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop resource"})
		return
	}
	if result.RowsAffected == 0 {
		var existing models.MeteredResource
		if errFind := h.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&existing).Error; errFind != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		// Already stopped: a repeat stop is a no-op success.
	}
	c.JSON(http.StatusOK, gin.H{"external_id": externalID, "status": models.ResourceStatusStopped})
}
