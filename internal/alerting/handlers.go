package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/pkg/errors"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Handler delivers a fired alert to an external channel. Delivery is
// fire-and-forget from the series' point of view; handler errors are logged
// by the caller, never propagated into the tick loop.
type Handler interface {
	Name() string
	HandleAlert(ctx context.Context, alert *models.Alert) error
}

// LogAlertHandler logs alerts through logrus.
type LogAlertHandler struct {
	logger *logrus.Logger
}

// NewLogAlertHandler creates a log alert handler.
func NewLogAlertHandler(logger *logrus.Logger) *LogAlertHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogAlertHandler{logger: logger}
}

func (h *LogAlertHandler) Name() string {
	return "log_handler"
}

func (h *LogAlertHandler) HandleAlert(_ context.Context, alert *models.Alert) error {
	h.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"series":   alert.SeriesTitle,
		"strategy": alert.Strategy,
		"score":    alert.Score,
		"fired_at": alert.CreatedAt.Format(time.RFC3339),
	}).Warn(alert.Message)
	return nil
}

// WebhookAlertHandler POSTs alerts as JSON to a configured endpoint.
type WebhookAlertHandler struct {
	url    string
	client *http.Client
}

// NewWebhookAlertHandler creates a webhook alert handler.
func NewWebhookAlertHandler(url string, timeout time.Duration) *WebhookAlertHandler {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookAlertHandler{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *WebhookAlertHandler) Name() string {
	return "webhook_handler"
}

func (h *WebhookAlertHandler) HandleAlert(ctx context.Context, alert *models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeNetwork, errors.CodeConnectionFailed, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeNetwork, errors.CodeConnectionFailed, "webhook delivery failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.NewAppError(errors.ErrorTypeNetwork, errors.CodeWriteFailed,
			fmt.Sprintf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
