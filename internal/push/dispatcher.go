package push

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/btouchard/readyalert/internal/store"
)

// Result aggregates a fan-out.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Dispatcher delivers one payload to every subscription of an audience.
type Dispatcher struct {
	gateway       *Gateway
	maxConcurrent int
}

// NewDispatcher creates a Dispatcher that runs at most maxConcurrent
// deliveries at once.
func NewDispatcher(g *Gateway, maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 16
	}
	return &Dispatcher{gateway: g, maxConcurrent: maxConcurrent}
}

// Send resolves the audience's current subscriptions and delivers payload to
// each independently. Only a failure to list subscriptions is returned as an
// error; individual delivery failures are counted in the Result.
func (d *Dispatcher) Send(ctx context.Context, payload Payload, audience store.Audience) (Result, error) {
	subs, err := d.gateway.Subscriptions(ctx, audience)
	if err != nil {
		return Result{}, fmt.Errorf("resolving audience %q: %w", audienceName(audience), err)
	}

	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(d.maxConcurrent)

	for _, sub := range subs {
		g.Go(func() error {
			if err := d.gateway.Deliver(ctx, sub, payload); err != nil {
				failed.Add(1)
				slog.Warn("push delivery failed",
					"subscription_id", sub.ID,
					"audience", string(sub.Audience),
					"error", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait() // deliveries never return errors

	res := Result{Sent: int(sent.Load()), Failed: int(failed.Load()), Total: len(subs)}
	slog.Info("push fan-out complete",
		"audience", audienceName(audience),
		"sent", res.Sent,
		"failed", res.Failed,
		"total", res.Total)
	return res, nil
}

func audienceName(a store.Audience) string {
	if a == store.AudienceAll {
		return "all"
	}
	return string(a)
}
