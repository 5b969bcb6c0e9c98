package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/craft-platform/craft-metering/internal/models"
	log "github.com/sirupsen/logrus"
)

// Pauser is the external collaborator that actually suspends a resource
// at its provider (sandbox runtime, database host, deployment platform).
type Pauser interface {
	Pause(ctx context.Context, res *models.MeteredResource) error
}

// NopPauser records pause requests in the log only. Default when no
// webhook is configured.
type NopPauser struct{}

func (NopPauser) Pause(_ context.Context, res *models.MeteredResource) error {
	log.Infof("metering: pause requested type=%s external_id=%s (no pauser configured)", res.Type, res.ExternalID)
	return nil
}

// WebhookPauser posts pause commands to the orchestration glue that owns
// the provider SDKs.
type WebhookPauser struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookPauser builds a WebhookPauser for the given endpoint.
func NewWebhookPauser(url, secret string) *WebhookPauser {
	return &WebhookPauser{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *WebhookPauser) Pause(ctx context.Context, res *models.MeteredResource) error {
	payload, errMarshal := json.Marshal(map[string]string{
		"action":      "pause",
		"type":        res.Type,
		"external_id": res.ExternalID,
		"reason":      models.ResourceStatusPausedLowBalance,
	})
	if errMarshal != nil {
		return errMarshal
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if errReq != nil {
		return errReq
	}
	req.Header.Set("Content-Type", "application/json")
	if p.secret != "" {
		req.Header.Set("Authorization", "Bearer "+p.secret)
	}

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("pause webhook: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pause webhook: status=%d", resp.StatusCode)
	}
	return nil
}
