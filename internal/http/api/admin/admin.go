// Package admin registers the operator console routes: login plus
// read/adjust access to user balances, transactions, and the resource
// registry.
package admin

import (
	"net/http"
	"strings"
	"time"

	adminhandlers "github.com/craft-platform/craft-metering/internal/http/api/admin/handlers"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes wires the admin console endpoints.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, lgr *ledger.Ledger, jwtSecret string, jwtExpiry time.Duration) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := adminhandlers.NewAuthHandler(db, jwtSecret, jwtExpiry)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(jwtSecret))

	userHandler := adminhandlers.NewUserHandler(db, lgr)
	authed.GET("/users/:id/balance", userHandler.Balance)
	authed.GET("/users/:id/transactions", userHandler.Transactions)
	authed.POST("/users/:id/adjust", userHandler.Adjust)

	resourceHandler := adminhandlers.NewResourceHandler(db)
	authed.GET("/resources", resourceHandler.List)
}

// adminAuthMiddleware validates admin JWTs and stores the claims in the
// request context.
func adminAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtSecret, strings.TrimSpace(token))
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Set("admin_username", claims.Username)
		c.Next()
	}
}
