package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/craft-platform/craft-metering/internal/ledger"
	"github.com/craft-platform/craft-metering/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// TopupHandler credits purchased balance through the ledger. It is the
// payment webhook's entry point, so replays of the same checkout are
// expected and must not double-credit.
type TopupHandler struct {
	ledger *ledger.Ledger
}

// NewTopupHandler constructs a TopupHandler.
func NewTopupHandler(lgr *ledger.Ledger) *TopupHandler {
	return &TopupHandler{ledger: lgr}
}

// topupRequest defines the request body for a balance top-up.
type topupRequest struct {
	UserID     uint64          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	CheckoutID string          `json:"checkout_id"`
}

// Create applies one top-up, idempotent on the checkout ID.
func (h *TopupHandler) Create(c *gin.Context) {
	var body topupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	checkoutID := strings.TrimSpace(body.CheckoutID)
	if body.UserID == 0 || checkoutID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and checkout_id are required"})
		return
	}

	entry, errCredit := h.ledger.Credit(c.Request.Context(), body.UserID, body.Amount,
		models.TransactionTypeTopup, "balance top-up",
		ledger.Options{
			IdempotencyKey: "topup:" + checkoutID,
			Metadata:       map[string]any{"checkout_id": checkoutID},
		})
	if errCredit != nil {
		switch {
		case errors.Is(errCredit, ledger.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(errCredit, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		default:
			log.WithError(errCredit).Error("topup: credit failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply top-up"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": entry.TransactionID,
		"duplicate":      entry.Duplicate,
		"balance_after":  entry.BalanceAfter,
	})
}
