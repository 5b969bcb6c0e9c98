package handlers

import (
	"errors"
	"net/http"

	"github.com/craft-platform/craft-metering/internal/usage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UsageHandler ingests completed AI call reports.
type UsageHandler struct {
	recorder *usage.Recorder
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(recorder *usage.Recorder) *UsageHandler {
	return &UsageHandler{recorder: recorder}
}

// Ingest prices one AI call, records it, and debits the owner's balance.
// Unknown models are accepted and recorded unpriced; the caller learns
// about it through priced=false, never through a 5xx.
func (h *UsageHandler) Ingest(c *gin.Context) {
	var call usage.AICall
	if errBind := c.ShouldBindJSON(&call); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if call.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	result, errRecord := h.recorder.Record(c.Request.Context(), call)
	if errRecord != nil {
		if errors.Is(errRecord, usage.ErrMissingRequestID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required"})
			return
		}
		log.WithError(errRecord).Error("usage: ingest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"priced":        result.Priced,
		"duplicate":     result.Duplicate,
		"cost":          result.Cost,
		"breakdown":     result.Breakdown,
		"balance_after": result.BalanceAfter,
	})
}
