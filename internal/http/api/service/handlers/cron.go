package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/craft-platform/craft-metering/internal/cronlock"
	"github.com/craft-platform/craft-metering/internal/metering"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// CronHandler exposes the scheduled sweeps as HTTP triggers.
type CronHandler struct {
	orchestrator *metering.Orchestrator
	locker       *cronlock.Locker
}

// NewCronHandler constructs a CronHandler.
func NewCronHandler(orchestrator *metering.Orchestrator, locker *cronlock.Locker) *CronHandler {
	return &CronHandler{orchestrator: orchestrator, locker: locker}
}

// Hourly triggers the hourly compute metering sweep.
func (h *CronHandler) Hourly(c *gin.Context) {
	h.run(c, "metering-hourly", h.orchestrator.RunHourlySweep)
}

// Daily triggers the daily storage and deployment sweep.
func (h *CronHandler) Daily(c *gin.Context) {
	h.run(c, "metering-daily", h.orchestrator.RunDailySweep)
}

// Expire triggers the top-up expiration sweep.
func (h *CronHandler) Expire(c *gin.Context) {
	h.run(c, "credits-expire", h.orchestrator.RunExpirationSweep)
}

// run executes one sweep under the distributed lock. A run with per-item
// errors is still a handled run: the scheduler gets 200 and the error list,
// never a 5xx that would trigger a blind retry of the whole batch.
func (h *CronHandler) run(c *gin.Context, job string, sweep func(context.Context) metering.Report) {
	release, errLock := h.locker.Acquire(c.Request.Context(), job)
	if errLock != nil {
		if errors.Is(errLock, cronlock.ErrHeld) {
			c.JSON(http.StatusOK, gin.H{
				"success":   true,
				"locked":    true,
				"processed": 0,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acquire sweep lock"})
		return
	}
	defer release()

	report := sweep(c.Request.Context())
	if report.ErrorCount() > 0 {
		log.Warnf("cron: %s finished with %d errors, processed %d", job, report.ErrorCount(), report.Processed)
	} else {
		log.Infof("cron: %s processed %d", job, report.Processed)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   report.ErrorCount() == 0,
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"errors":    report.Errors,
	})
}
