// Package notify defines the notification collaborator contract. Actual
// mail delivery lives outside this service; the default implementation
// records what would have been sent.
package notify

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Notifier sends billing lifecycle notifications to users.
type Notifier interface {
	// SendLowBalanceWarning tells a user their balance dipped below the
	// warning threshold.
	SendLowBalanceWarning(ctx context.Context, email string, balance decimal.Decimal) error
	// SendServicePaused tells a user a service was paused for low balance.
	SendServicePaused(ctx context.Context, email, serviceName string, balance decimal.Decimal) error
	// SendTokenExpiryNotice tells a user purchased credits expired unused.
	SendTokenExpiryNotice(ctx context.Context, email string, amount decimal.Decimal) error
}

// LogNotifier logs notifications instead of delivering them. Used in
// development and as the default when no mailer webhook is configured.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) SendLowBalanceWarning(_ context.Context, email string, balance decimal.Decimal) error {
	log.Infof("notify: low balance warning to=%s balance=%s", email, balance.StringFixed(2))
	return nil
}

func (LogNotifier) SendServicePaused(_ context.Context, email, serviceName string, balance decimal.Decimal) error {
	log.Infof("notify: service paused to=%s service=%s balance=%s", email, serviceName, balance.StringFixed(2))
	return nil
}

func (LogNotifier) SendTokenExpiryNotice(_ context.Context, email string, amount decimal.Decimal) error {
	log.Infof("notify: token expiry notice to=%s amount=%s", email, amount.StringFixed(2))
	return nil
}
