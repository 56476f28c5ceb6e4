// Package sms sends pickup-ready text messages to family members.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/btouchard/readyalert/internal/config"
	"github.com/btouchard/readyalert/internal/metrics"
)

// Sentinel message identifiers returned when no provider call is made.
const (
	MessageIDNotConfigured = "demo-mode-no-sms"
	MessageIDSimulated     = "demo-mode-simulated"
)

// ErrInvalidPhone is the failure reason for numbers with too few digits.
const ErrInvalidPhone = "invalid phone number"

const minDigits = 10

// Provider delivers a single text message and returns the provider's
// message identifier.
type Provider interface {
	SendMessage(ctx context.Context, from, to, body string) (string, error)
}

// Request describes one ready notification.
type Request struct {
	To           string
	ResidentName string
	RoomNumber   string
}

// Result is the outcome of a send. Failures are reported here, never as errors.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	// To is the normalized destination, empty when validation failed.
	To string `json:"to,omitempty"`
}

// Status describes the gateway configuration for diagnostics.
type Status struct {
	Configured   bool   `json:"configured"`
	FromNumber   string `json:"fromNumber,omitempty"`
	DeliveryMode string `json:"deliveryMode"`
}

// Gateway formats and sends ready notifications through a Provider.
type Gateway struct {
	provider    Provider
	from        string
	mode        string
	countryCode string
	timeout     time.Duration
}

// NewGateway creates a Gateway. provider may be nil, in which case every
// valid request succeeds without contacting anyone.
func NewGateway(cfg config.SMSConfig, provider Provider) *Gateway {
	mode := cfg.DeliveryMode
	if mode == "" {
		mode = config.DeliverySimulated
	}
	cc := cfg.CountryCode
	if cc == "" {
		cc = "1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		provider:    provider,
		from:        cfg.FromNumber,
		mode:        mode,
		countryCode: cc,
		timeout:     timeout,
	}
}

// New creates a Gateway backed by Twilio when credentials are configured.
func New(cfg config.SMSConfig) *Gateway {
	var provider Provider
	if cfg.Configured() {
		provider = NewTwilioProvider(cfg.AccountSID, cfg.AuthToken)
	}
	slog.Info("sms gateway configured",
		"provider", provider != nil,
		"delivery_mode", cfg.DeliveryMode,
		"from_set", cfg.FromNumber != "")
	return NewGateway(cfg, provider)
}

// Status reports whether real delivery is possible.
func (g *Gateway) Status() Status {
	return Status{
		Configured:   g.configured(),
		FromNumber:   g.from,
		DeliveryMode: g.mode,
	}
}

func (g *Gateway) configured() bool {
	return g.provider != nil && g.from != "" && g.mode != config.DeliveryDisabled
}

// Message returns the family-facing text for a ready notification.
func Message(residentName, roomNumber string) string {
	return fmt.Sprintf("Good news! %s (Room %s) is ready and waiting for you at the front lobby. See you soon!",
		residentName, roomNumber)
}

// SendReady validates and normalizes req.To, then delivers the ready
// message according to the delivery mode. It never returns an error.
func (g *Gateway) SendReady(ctx context.Context, req Request) Result {
	to, ok := Normalize(req.To, g.countryCode)
	if !ok {
		metrics.SMSAttemptsTotal.WithLabelValues("invalid").Inc()
		return Result{Success: false, Error: ErrInvalidPhone}
	}

	body := Message(req.ResidentName, req.RoomNumber)

	if !g.configured() {
		slog.Info("sms not configured, skipping delivery", "to", Mask(to))
		metrics.SMSAttemptsTotal.WithLabelValues("skipped").Inc()
		return Result{Success: true, MessageID: MessageIDNotConfigured, To: to}
	}

	if g.mode == config.DeliverySimulated {
		slog.Info("sms simulated", "to", Mask(to), "message", body)
		metrics.SMSAttemptsTotal.WithLabelValues("simulated").Inc()
		return Result{Success: true, MessageID: MessageIDSimulated, To: to}
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	sid, err := g.provider.SendMessage(sendCtx, g.from, to, body)
	if err != nil {
		slog.Error("sms delivery failed", "to", Mask(to), "error", err)
		metrics.SMSAttemptsTotal.WithLabelValues("failed").Inc()
		return Result{Success: false, Error: err.Error(), To: to}
	}

	slog.Info("sms sent", "to", Mask(to), "message_id", sid)
	metrics.SMSAttemptsTotal.WithLabelValues("sent").Inc()
	return Result{Success: true, MessageID: sid, To: to}
}

// Normalize strips non-digits from phone and returns it in E.164 form.
// Numbers longer than ten digits that already begin with countryCode are
// kept as-is; otherwise countryCode is prefixed.
func Normalize(phone, countryCode string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, phone)

	if len(digits) < minDigits {
		return "", false
	}
	if len(digits) > minDigits && strings.HasPrefix(digits, countryCode) {
		return "+" + digits, true
	}
	return "+" + countryCode + digits, true
}

// Mask hides all but the last four digits of a phone number for logging.
func Mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
