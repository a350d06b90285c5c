package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/metrics"
	"github.com/dmytrogajewski/ett-summary/internal/models"
)

const defaultTimeout = 10 * time.Second

// DeliveryError describes a webhook POST that did not succeed. It is only
// logged; summaries are never rolled back because of it.
type DeliveryError struct {
	SystemKey  string
	DeliveryID string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook delivery %s for %s failed with status %d: %v", e.DeliveryID, e.SystemKey, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("webhook delivery %s for %s failed: %v", e.DeliveryID, e.SystemKey, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Dispatcher posts rendered summaries to the configured webhook URL
type Dispatcher struct {
	url      string
	template string
	headers  map[string]string
	timeout  time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Collector
}

// NewDispatcher creates a dispatcher. An empty URL disables delivery.
func NewDispatcher(cfg config.WebhookConfig, logger *logrus.Logger, collector *metrics.Collector) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		url:      cfg.URL,
		template: cfg.Template,
		headers:  cfg.Headers,
		timeout:  timeout,
		logger:   logger,
		metrics:  collector,
	}
}

// Enabled reports whether a webhook URL is configured
func (d *Dispatcher) Enabled() bool {
	return d.url != ""
}

// RenderPayload substitutes the placeholders verbatim. Quoting and escaping
// are left to the template author.
func RenderPayload(template, systemKey, summary string) string {
	return strings.NewReplacer(
		config.PlaceholderSummary, summary,
		config.PlaceholderSystemKey, systemKey,
	).Replace(template)
}

// Dispatch performs a single delivery attempt. The fiber client does not
// observe ctx once the request is sent, so the attempt is bounded only by the
// per-delivery timeout, shortened to the ctx deadline when that comes first.
func (d *Dispatcher) Dispatch(ctx context.Context, systemKey, summary string) error {
	if !d.Enabled() {
		return nil
	}

	deliveryID := uuid.NewString()
	if err := ctx.Err(); err != nil {
		return &DeliveryError{SystemKey: systemKey, DeliveryID: deliveryID, Err: err}
	}
	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return &DeliveryError{SystemKey: systemKey, DeliveryID: deliveryID, Err: context.DeadlineExceeded}
	}

	agent := fiber.Post(d.url)
	agent.ContentType(fiber.MIMEApplicationJSON)
	for k, v := range d.headers {
		agent.Set(k, v)
	}
	agent.Set("X-Delivery-ID", deliveryID)
	agent.Body([]byte(RenderPayload(d.template, systemKey, summary)))
	agent.Timeout(timeout)

	if err := agent.Parse(); err != nil {
		return &DeliveryError{SystemKey: systemKey, DeliveryID: deliveryID, Err: err}
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return &DeliveryError{SystemKey: systemKey, DeliveryID: deliveryID, Err: errors.Join(errs...)}
	}
	if code < 200 || code >= 300 {
		return &DeliveryError{
			SystemKey:  systemKey,
			DeliveryID: deliveryID,
			StatusCode: code,
			Err:        fmt.Errorf("response: %s", truncate(string(body), 256)),
		}
	}

	d.logger.WithFields(logrus.Fields{
		"system":      systemKey,
		"delivery_id": deliveryID,
		"status":      code,
	}).Debug("Webhook delivered")
	return nil
}

// Notify delivers updated summaries. Cleared summaries are not pushed.
func (d *Dispatcher) Notify(ctx context.Context, event models.SummaryEvent) {
	if event.Type != models.SummaryUpdated || !d.Enabled() {
		return
	}

	err := d.Dispatch(ctx, event.State.SystemKey, event.State.SummaryText)
	if d.metrics != nil {
		d.metrics.RecordDelivery(event.State.SystemKey, err == nil)
	}
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"system":  event.State.SystemKey,
			"version": event.State.Version,
		}).Error("Webhook delivery failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
