package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioProvider sends messages through the Twilio Programmable SMS API.
type TwilioProvider struct {
	client *twilio.RestClient
}

// NewTwilioProvider creates a provider authenticated with an account SID
// and auth token.
func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	return &TwilioProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
	}
}

// SendMessage creates a message and returns its SID. The Twilio client does
// not take a context, so the call runs in a goroutine and ctx bounds how long
// the caller waits for it.
func (p *TwilioProvider) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)

	go func() {
		resp, err := p.client.Api.CreateMessage(params)
		if err != nil {
			done <- result{err: err}
			return
		}
		if resp.Sid == nil {
			done <- result{err: errors.New("twilio returned no message sid")}
			return
		}
		done <- result{sid: *resp.Sid}
	}()

	select {
	case r := <-done:
		return r.sid, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("twilio request: %w", ctx.Err())
	}
}
