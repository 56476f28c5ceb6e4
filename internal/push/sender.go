package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/btouchard/readyalert/internal/config"
	"github.com/btouchard/readyalert/internal/store"
)

// ErrSubscriptionGone marks a subscription the push service will never
// accept again (HTTP 404 or 410).
var ErrSubscriptionGone = errors.New("push subscription gone")

// Sender signs and delivers an encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub store.Subscription, message []byte) error
}

// StatusError is a non-success response from the push service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("push service returned %d: %s", e.StatusCode, e.Body)
}

// classifyStatus maps a push service response code to a delivery error.
func classifyStatus(code int, body string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusGone || code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrSubscriptionGone, &StatusError{StatusCode: code, Body: body})
	default:
		return &StatusError{StatusCode: code, Body: body}
	}
}

// WebPushSender delivers notifications with VAPID authentication.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subject    string
	ttl        time.Duration
	urgency    webpush.Urgency
	client     *http.Client
}

// NewWebPushSender creates a sender from push configuration. The subject may
// be given as "mailto:addr", "addr" or an https URL.
func NewWebPushSender(cfg config.PushConfig) *WebPushSender {
	return &WebPushSender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subject:    strings.TrimPrefix(cfg.Subject, "mailto:"), // webpush adds the scheme back
		ttl:        cfg.TTL,
		urgency:    webpush.Urgency(cfg.Urgency),
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub store.Subscription, message []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             int(s.ttl.Seconds()),
		Urgency:         s.urgency,
	})
	if err != nil {
		return fmt.Errorf("sending web push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return classifyStatus(resp.StatusCode, string(body))
}

// ErrNotConfigured is returned for every delivery when VAPID keys are missing.
var ErrNotConfigured = errors.New("web push is not configured")

type unconfiguredSender struct{}

func (unconfiguredSender) Send(context.Context, store.Subscription, []byte) error {
	return ErrNotConfigured
}

// NewSender returns a VAPID sender when keys are configured, otherwise a
// Sender that fails every delivery without contacting anyone.
func NewSender(cfg config.PushConfig) Sender {
	if !cfg.Configured() {
		return unconfiguredSender{}
	}
	return NewWebPushSender(cfg)
}
