// Package webhook delivers chat events to subscribed external URLs. It holds
// the single dispatcher-side bus subscription; deliveries run on their own
// goroutines so a slow sink never blocks the bus.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/bus"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/metrics"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when the
// webhook has a secret configured.
const SignatureHeader = "X-Webhook-Signature"

var defaultBackoff = []time.Duration{time.Second, 4 * time.Second, 16 * time.Second}

// Dispatcher forwards bus events to matching outgoing webhooks with retries.
type Dispatcher struct {
	webhooks domain.WebhookRepository
	bus      *bus.Bus
	client   *http.Client
	log      zerolog.Logger
	backoff  []time.Duration
}

func NewDispatcher(webhooks domain.WebhookRepository, b *bus.Bus, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks: webhooks,
		bus:      b,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With().Str("component", "webhook").Logger(),
		backoff:  defaultBackoff,
	}
}

// Run consumes bus events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	sub := d.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Kind == domain.EventLagged {
				// The dispatcher itself fell behind; nothing to deliver.
				continue
			}
			d.Dispatch(ctx, ev)
		}
	}
}

// Dispatch fans one event out to every matching active webhook.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) {
	hooks, err := d.webhooks.ListActiveOutgoingWebhooks(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("list webhooks failed")
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		d.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("marshal event failed")
		return
	}

	for _, hook := range hooks {
		if !Matches(hook, ev) {
			continue
		}
		go d.deliver(ctx, hook, body)
	}
}

// Matches reports whether the webhook subscribes to this event: room scope
// (nil matches every room) and event kind must both agree.
func Matches(hook *domain.OutgoingWebhook, ev domain.Event) bool {
	if hook.RoomID != nil && *hook.RoomID != ev.RoomID {
		return false
	}
	return hook.WantsEvent(ev.Kind)
}

// deliver POSTs the payload, retrying on failure with the configured backoff.
func (d *Dispatcher) deliver(ctx context.Context, hook *domain.OutgoingWebhook, body []byte) {
	var lastErr error
	for attempt := 0; attempt < len(d.backoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.backoff[attempt-1]):
			}
		}

		if lastErr = d.post(ctx, hook, body); lastErr == nil {
			metrics.WebhookDeliveries.WithLabelValues("success").Inc()
			return
		}
		metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
	}

	metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
	d.log.Warn().Err(lastErr).Str("url", hook.URL).Msg("webhook delivery gave up")
}

func (d *Dispatcher) post(ctx context.Context, hook *domain.OutgoingWebhook, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != nil {
		req.Header.Set(SignatureHeader, Sign(*hook.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
