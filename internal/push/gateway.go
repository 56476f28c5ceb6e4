// Package push manages web push subscriptions and fans notifications out
// to subscribed devices.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/readyalert/internal/metrics"
	"github.com/btouchard/readyalert/internal/store"
)

// SubscriptionStore persists push subscriptions.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, s *store.Subscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context, audience store.Audience) ([]store.Subscription, error)
}

// Payload is the JSON document a service worker receives.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Keys are the client-generated encryption keys of a subscription.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribeInput is a browser PushSubscription plus the view it came from.
type SubscribeInput struct {
	Endpoint  string
	Keys      Keys
	Audience  store.Audience
	UserAgent string
}

// ErrInvalidSubscription rejects a subscription without endpoint or keys.
var ErrInvalidSubscription = errors.New("invalid subscription object")

// Gateway owns subscription records and single-device delivery.
type Gateway struct {
	store   SubscriptionStore
	sender  Sender
	timeout time.Duration
}

// NewGateway creates a Gateway. timeout bounds each delivery attempt.
func NewGateway(s SubscriptionStore, sender Sender, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{store: s, sender: sender, timeout: timeout}
}

// Subscribe records a device, replacing any subscription with the same endpoint.
func (g *Gateway) Subscribe(ctx context.Context, in SubscribeInput) error {
	if in.Endpoint == "" || in.Keys.P256dh == "" || in.Keys.Auth == "" {
		return ErrInvalidSubscription
	}
	audience := in.Audience
	if audience != store.AudienceAdmin {
		audience = store.AudienceFloor
	}

	err := g.store.UpsertSubscription(ctx, &store.Subscription{
		Endpoint:  in.Endpoint,
		P256dh:    in.Keys.P256dh,
		Auth:      in.Keys.Auth,
		Audience:  audience,
		UserAgent: in.UserAgent,
	})
	if err != nil {
		return err
	}

	slog.Info("push subscription saved", "audience", string(audience))
	return nil
}

// Unsubscribe removes a device.
func (g *Gateway) Unsubscribe(ctx context.Context, endpoint string) error {
	return g.store.DeleteSubscription(ctx, endpoint)
}

// Subscriptions returns the current subscriptions for audience.
func (g *Gateway) Subscriptions(ctx context.Context, audience store.Audience) ([]store.Subscription, error) {
	return g.store.ListSubscriptions(ctx, audience)
}

// Deliver sends payload to one subscription. A subscription reported gone
// is deleted before the error is returned.
func (g *Gateway) Deliver(ctx context.Context, sub store.Subscription, payload Payload) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	err = g.sender.Send(sendCtx, sub, message)
	metrics.PushDeliveryDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.PushDeliveriesTotal.WithLabelValues("sent").Inc()
		return nil
	case errors.Is(err, ErrSubscriptionGone):
		metrics.PushDeliveriesTotal.WithLabelValues("gone").Inc()
		if delErr := g.store.DeleteSubscription(ctx, sub.Endpoint); delErr != nil {
			slog.Warn("failed to prune push subscription", "subscription_id", sub.ID, "error", delErr)
		} else {
			metrics.SubscriptionsPrunedTotal.Inc()
			slog.Info("pruned gone push subscription", "subscription_id", sub.ID)
		}
		return err
	default:
		metrics.PushDeliveriesTotal.WithLabelValues("failed").Inc()
		return err
	}
}
