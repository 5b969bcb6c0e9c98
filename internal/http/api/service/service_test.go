package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/craft-platform/craft-metering/internal/cronlock"
	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/metering"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/craft-platform/craft-metering/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupServiceRouter(t *testing.T, secret string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(
		&models.User{},
		&models.BalanceTransaction{},
		&models.MeteredResource{},
		&models.AIUsageRecord{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	lgr := ledger.New(db)
	orchestrator := metering.New(db, lgr, nil, nil)
	recorder := usage.NewRecorder(db)
	locker := cronlock.New(nil, time.Minute)

	router := gin.New()
	RegisterServiceRoutes(router, db, orchestrator, recorder, lgr, locker, secret)
	return router, db
}

func doJSON(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCronEndpointsRejectBadSecret(t *testing.T) {
	router, _ := setupServiceRouter(t, "s3cret")

	if w := doJSON(router, http.MethodPost, "/v0/cron/metering/hourly", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", w.Code)
	}
	if w := doJSON(router, http.MethodPost, "/v0/cron/metering/hourly", "wrong", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d, want 401", w.Code)
	}
}

func TestCronEndpointsAcceptGET(t *testing.T) {
	router, _ := setupServiceRouter(t, "s3cret")

	w := doJSON(router, http.MethodGet, "/v0/cron/metering/hourly", "s3cret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET trigger: status %d, want 200", w.Code)
	}
}

func TestCronEndpointsFailClosedWithoutServerSecret(t *testing.T) {
	router, _ := setupServiceRouter(t, "")

	w := doJSON(router, http.MethodPost, "/v0/cron/metering/hourly", "anything", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("unset secret: status %d, want 500", w.Code)
	}
}

func TestCronSweepReportsPartialErrorsWith200(t *testing.T) {
	router, db := setupServiceRouter(t, "s3cret")

	// One healthy resource and one owned by a missing user.
	user := models.User{Email: "ok@example.com", Balance: decimal.NewFromInt(10)}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	backdated := time.Now().UTC().Add(-2 * time.Hour)
	resources := []models.MeteredResource{
		{UserID: user.ID, Type: models.ResourceTypeSandbox, ExternalID: "sbx-ok", Status: models.ResourceStatusActive},
		{UserID: 424242, Type: models.ResourceTypeSandbox, ExternalID: "sbx-orphan", Status: models.ResourceStatusActive},
	}
	for i := range resources {
		if errCreate := db.Create(&resources[i]).Error; errCreate != nil {
			t.Fatalf("create resource: %v", errCreate)
		}
		if errUpdate := db.Model(&models.MeteredResource{}).
			Where("id = ?", resources[i].ID).
			Update("created_at", backdated).Error; errUpdate != nil {
			t.Fatalf("backdate resource: %v", errUpdate)
		}
	}

	w := doJSON(router, http.MethodPost, "/v0/cron/metering/hourly", "s3cret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 even with partial errors", w.Code)
	}

	var body struct {
		Success   bool `json:"success"`
		Processed int  `json:"processed"`
		Errors    []struct {
			Ref string `json:"ref"`
		} `json:"errors"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if body.Success {
		t.Fatal("success must be false when items failed")
	}
	if body.Processed != 1 || len(body.Errors) != 1 || body.Errors[0].Ref != "sbx-orphan" {
		t.Fatalf("body = %+v", body)
	}
}

func TestUsageIngest(t *testing.T) {
	router, db := setupServiceRouter(t, "s3cret")

	user := models.User{Email: "ai@example.com", Balance: decimal.NewFromInt(5)}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	payload := map[string]any{
		"user_id":    user.ID,
		"provider":   "anthropic",
		"model":      "claude-haiku-4-5",
		"request_id": "req-http-1",
		"usage":      map[string]any{"input_tokens": 1_000_000},
	}
	w := doJSON(router, http.MethodPost, "/v0/usage/ai", "s3cret", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Priced bool   `json:"priced"`
		Cost   string `json:"cost"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if !body.Priced {
		t.Fatal("known model must be priced")
	}

	// Unknown models come back 200 with priced=false.
	payload["request_id"] = "req-http-2"
	payload["model"] = "mystery-model"
	w = doJSON(router, http.MethodPost, "/v0/usage/ai", "s3cret", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown model status %d, want 200", w.Code)
	}
	body.Priced = true
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if body.Priced {
		t.Fatal("unknown model must report priced=false")
	}
}

func TestTopupIdempotentOnCheckoutID(t *testing.T) {
	router, db := setupServiceRouter(t, "s3cret")

	user := models.User{Email: "pay@example.com"}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	payload := map[string]any{
		"user_id":     user.ID,
		"amount":      "25",
		"checkout_id": "chk-1",
	}
	for i := 0; i < 2; i++ {
		if w := doJSON(router, http.MethodPost, "/v0/topups", "s3cret", payload); w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status %d: %s", i, w.Code, w.Body.String())
		}
	}

	var reloaded models.User
	db.Take(&reloaded, user.ID)
	if !reloaded.Balance.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("balance = %s, want 25 after replayed webhook", reloaded.Balance)
	}
}

func TestResourceRegisterAndStop(t *testing.T) {
	router, db := setupServiceRouter(t, "s3cret")

	user := models.User{Email: "infra@example.com"}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	payload := map[string]any{
		"user_id":     user.ID,
		"type":        models.ResourceTypeSandbox,
		"external_id": "sbx-http",
		"name":        "dev sandbox",
	}
	if w := doJSON(router, http.MethodPost, "/v0/resources", "s3cret", payload); w.Code != http.StatusOK {
		t.Fatalf("register: status %d: %s", w.Code, w.Body.String())
	}

	if w := doJSON(router, http.MethodPost, "/v0/resources/sbx-http/stop", "s3cret", nil); w.Code != http.StatusOK {
		t.Fatalf("stop: status %d: %s", w.Code, w.Body.String())
	}
	var res models.MeteredResource
	if errFind := db.Where("external_id = ?", "sbx-http").Take(&res).Error; errFind != nil {
		t.Fatalf("load resource: %v", errFind)
	}
	if res.Status != models.ResourceStatusStopped {
		t.Fatalf("status = %s, want stopped", res.Status)
	}

	// Re-registration reactivates the same row.
	if w := doJSON(router, http.MethodPost, "/v0/resources", "s3cret", payload); w.Code != http.StatusOK {
		t.Fatalf("re-register: status %d", w.Code)
	}
	db.Where("external_id = ?", "sbx-http").Take(&res)
	if res.Status != models.ResourceStatusActive {
		t.Fatalf("status = %s, want active after re-registration", res.Status)
	}
}
