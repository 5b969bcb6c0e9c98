package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/craft-platform/craft-metering/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testJWTSecret = "test-signing-key"

func setupAdminRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(
		&models.Admin{},
		&models.User{},
		&models.BalanceTransaction{},
		&models.MeteredResource{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	hash, errHash := security.HashPassword("hunter2-long-enough")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.Admin{Username: "ops", Password: hash, Active: true}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	router := gin.New()
	RegisterAdminRoutes(router, db, ledger.New(db), testJWTSecret, time.Hour)
	return router, db
}

func adminRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := adminRequest(router, http.MethodPost, "/v0/admin/login", "", map[string]string{
		"username": "ops",
		"password": "hunter2-long-enough",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode login body: %v", errDecode)
	}
	if body.Token == "" {
		t.Fatal("login returned empty token")
	}
	return body.Token
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	router, _ := setupAdminRouter(t)

	w := adminRequest(router, http.MethodPost, "/v0/admin/login", "", map[string]string{
		"username": "ops",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router, _ := setupAdminRouter(t)

	if w := adminRequest(router, http.MethodGet, "/v0/admin/users/1/balance", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d, want 401", w.Code)
	}
	if w := adminRequest(router, http.MethodGet, "/v0/admin/users/1/balance", "not-a-jwt", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d, want 401", w.Code)
	}
}

func TestAdminBalanceAndAdjust(t *testing.T) {
	router, db := setupAdminRouter(t)
	token := loginToken(t, router)

	user := models.User{Email: "target@example.com", Balance: decimal.NewFromInt(5)}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	w := adminRequest(router, http.MethodGet, fmt.Sprintf("/v0/admin/users/%d/balance", user.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance: status %d: %s", w.Code, w.Body.String())
	}

	w = adminRequest(router, http.MethodPost, fmt.Sprintf("/v0/admin/users/%d/adjust", user.ID), token, map[string]any{
		"amount":    "2.50",
		"direction": "credit",
		"reason":    "billing correction",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("adjust: status %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.User
	db.Take(&reloaded, user.ID)
	if !reloaded.Balance.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("balance = %s, want 7.5", reloaded.Balance)
	}

	// The correction must leave a ledger row like any other mutation.
	var txn models.BalanceTransaction
	if errFind := db.Where("user_id = ? AND type = ?", user.ID, models.TransactionTypeAdminAdjustment).
		Take(&txn).Error; errFind != nil {
		t.Fatalf("adjustment transaction missing: %v", errFind)
	}

	w = adminRequest(router, http.MethodGet, fmt.Sprintf("/v0/admin/users/%d/transactions", user.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("transactions: status %d", w.Code)
	}
	var list struct {
		Total int64 `json:"total"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &list); errDecode != nil {
		t.Fatalf("decode transactions: %v", errDecode)
	}
	if list.Total != 1 {
		t.Fatalf("total = %d, want 1", list.Total)
	}
}

func TestAdminAdjustUnknownUser(t *testing.T) {
	router, _ := setupAdminRouter(t)
	token := loginToken(t, router)

	w := adminRequest(router, http.MethodPost, "/v0/admin/users/999/adjust", token, map[string]any{
		"amount":    "1",
		"direction": "debit",
		"reason":    "test",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}
