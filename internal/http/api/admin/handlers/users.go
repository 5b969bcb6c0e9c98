package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler exposes per-user billing state to the admin console.
type UserHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, lgr *ledger.Ledger) *UserHandler {
	return &UserHandler{db: db, ledger: lgr}
}

func parseUserID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

// Balance returns a user's current balance and warning state.
func (h *UserHandler) Balance(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Take(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":               user.ID,
		"email":                 user.Email,
		"plan":                  user.Plan,
		"balance":               user.Balance,
		"low_balance_warned_at": user.LowBalanceWarnedAt,
	})
}

// transactionListQuery defines filters for the transaction list view.
type transactionListQuery struct {
	Page  int    `form:"page,default=1"`   // Page number.
	Limit int    `form:"limit,default=20"` // Page size.
	Type  string `form:"type"`             // Transaction type filter.
}

// Transactions returns a user's ledger entries, newest first.
func (h *UserHandler) Transactions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var q transactionListQuery
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
	base := h.db.WithContext(ctx).
		Model(&models.BalanceTransaction{}).
		Where("user_id = ?", userID)
	if typeQ := strings.TrimSpace(q.Type); typeQ != "" {
		base = base.Where("type = ?", typeQ)
	}

	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count transactions"})
		return
	}

	var rows []models.BalanceTransaction
	if errFind := base.
		Order("id DESC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":             row.ID,
			"type":           row.Type,
			"amount":         row.Amount,
			"balance_before": row.BalanceBefore,
			"balance_after":  row.BalanceAfter,
			"description":    row.Description,
			"expired":        row.Expired,
			"expired_amount": row.ExpiredAmount,
			"created_at":     row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": out,
		"total":        total,
		"page":         q.Page,
		"limit":        q.Limit,
	})
}

// adjustRequest defines the request body for a manual balance correction.
type adjustRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction"` // credit or debit.
	Reason    string          `json:"reason"`
}

// Adjust applies a manual credit or debit through the ledger so the
// correction leaves the same audit trail as any other balance change.
func (h *UserHandler) Adjust(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var body adjustRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	adminUsername := c.GetString("admin_username")
	opts := ledger.Options{
		Metadata: map[string]any{
			"admin":  adminUsername,
			"reason": reason,
		},
	}

	var entry ledger.Entry
	var errApply error
	switch strings.TrimSpace(body.Direction) {
	case "credit":
		entry, errApply = h.ledger.Credit(c.Request.Context(), userID, body.Amount,
			models.TransactionTypeAdminAdjustment, "admin adjustment: "+reason, opts)
	case "debit":
		entry, errApply = h.ledger.Debit(c.Request.Context(), userID, body.Amount,
			models.TransactionTypeAdminAdjustment, "admin adjustment: "+reason, opts)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be credit or debit"})
		return
	}
	if errApply != nil {
		switch {
		case errors.Is(errApply, ledger.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(errApply, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		default:
			log.WithError(errApply).Error("admin: balance adjustment failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply adjustment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": entry.TransactionID,
		"balance_before": entry.BalanceBefore,
		"balance_after":  entry.BalanceAfter,
	})
}
