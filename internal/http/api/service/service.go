// Package service registers the machine-facing HTTP surface: cron sweep
// triggers, usage ingest, and resource registry upkeep. Every route is
// guarded by the shared bearer secret.
package service

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/craft-platform/craft-metering/internal/cronlock"
	"github.com/craft-platform/craft-metering/internal/http/api/service/handlers"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/metering"
	"github.com/craft-platform/craft-metering/internal/usage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterServiceRoutes wires the cron and ingest endpoints.
func RegisterServiceRoutes(r *gin.Engine, db *gorm.DB, orchestrator *metering.Orchestrator, recorder *usage.Recorder, lgr *ledger.Ledger, locker *cronlock.Locker, secret string) {
	if r == nil || db == nil {
		return
	}

	guarded := r.Group("/v0")
	guarded.Use(sharedSecretMiddleware(secret))

	// Cron schedulers vary; both GET and POST trigger a sweep.
	cronHandler := handlers.NewCronHandler(orchestrator, locker)
	for _, register := range []func(string, ...gin.HandlerFunc) gin.IRoutes{guarded.GET, guarded.POST} {
		register("/cron/metering/hourly", cronHandler.Hourly)
		register("/cron/metering/daily", cronHandler.Daily)
		register("/cron/credits/expire", cronHandler.Expire)
	}

	usageHandler := handlers.NewUsageHandler(recorder)
	guarded.POST("/usage/ai", usageHandler.Ingest)

	topupHandler := handlers.NewTopupHandler(lgr)
	guarded.POST("/topups", topupHandler.Create)

	resourceHandler := handlers.NewResourceHandler(db)
	guarded.POST("/resources", resourceHandler.Register)
	guarded.POST("/resources/:id/stop", resourceHandler.Stop)
}

// sharedSecretMiddleware validates the bearer secret on internal routes.
// A missing server-side secret is a deployment fault and reported as 500;
// a wrong caller secret is 401.
func sharedSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(secret) == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "shared secret is not configured"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
