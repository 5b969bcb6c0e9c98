// Package app wires the metering service: database, settings snapshot,
// ledger, sweeps, and the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/craft-platform/craft-metering/internal/config"
	"github.com/craft-platform/craft-metering/internal/cronlock"
	"github.com/craft-platform/craft-metering/internal/db"
	adminapi "github.com/craft-platform/craft-metering/internal/http/api/admin"
	serviceapi "github.com/craft-platform/craft-metering/internal/http/api/service"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/metering"
	internalsettings "github.com/craft-platform/craft-metering/internal/settings"
	internalusage "github.com/craft-platform/craft-metering/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// settingsRefreshInterval bounds how stale the DB-backed settings
// snapshot can get while the server runs.
const settingsRefreshInterval = time.Minute

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the metering API server.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}
	locker := cronlock.New(redisClient, 0)

	lgr := ledger.New(conn)
	var pauser metering.Pauser
	if strings.TrimSpace(cfg.PauseWebhookURL) != "" {
		pauser = metering.NewWebhookPauser(cfg.PauseWebhookURL, cfg.PauseWebhookSecret)
	}
	orchestrator := metering.New(conn, lgr, pauser, nil)
	recorder := internalusage.NewRecorder(conn)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	serviceapi.RegisterServiceRoutes(engine, conn, orchestrator, recorder, lgr, locker, cfg.CronSecret)
	adminapi.RegisterAdminRoutes(engine, conn, lgr, cfg.JWTSecret, time.Duration(cfg.JWTExpiryHours)*time.Hour)

	go refreshSettingsLoop(ctx, conn)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("metering server listening on %s", cfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// refreshSettingsLoop keeps the settings snapshot current until ctx ends.
func refreshSettingsLoop(ctx context.Context, conn *gorm.DB) {
	ticker := time.NewTicker(settingsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
				log.WithError(errRefresh).Warn("settings refresh failed")
			}
		}
	}
}

// requestLogMiddleware logs each request with method, path, status, and
// latency.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}
