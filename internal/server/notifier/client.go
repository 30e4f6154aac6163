// Package notifier delivers outbound WhatsApp text messages through the
// MSG91 gateway, synchronously with Client or queued with Dispatcher.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrDelivery wraps every failed delivery attempt.
var ErrDelivery = errors.New("message delivery failed")

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrDelivery }

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// DeliveryResult is the gateway's answer to an accepted message.
type DeliveryResult struct {
	StatusCode int
	Body       json.RawMessage
}

type ClientOptions struct {
	URL       string
	AuthKey   string
	ChannelID string
	Timeout   time.Duration
}

// Client posts single messages to the gateway.
type Client struct {
	url       string
	authKey   string
	channelID string
	http      *http.Client
}

func NewClient(opts ClientOptions) *Client {
	return &Client{
		url:       opts.URL,
		authKey:   opts.AuthKey,
		channelID: opts.ChannelID,
		http:      &http.Client{Timeout: opts.Timeout},
	}
}

// outboundMessage is the MSG91 WhatsApp outbound payload.
type outboundMessage struct {
	IntegratedNumber string `json:"integrated_number"`
	Mobile           string `json:"mobile"`
	MessageType      string `json:"message_type"`
	Message          string `json:"message"`
}

// Send delivers text to address. Transport failures and non-2xx answers are
// returned wrapped in ErrDelivery.
func (c *Client) Send(ctx context.Context, address, text string) (*DeliveryResult, error) {
	payload, err := json.Marshal(outboundMessage{
		IntegratedNumber: c.channelID,
		Mobile:           address,
		MessageType:      "text",
		Message:          text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("authkey", c.authKey)
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrDelivery, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	result := &DeliveryResult{StatusCode: resp.StatusCode}
	if json.Valid(body) {
		result.Body = body
	}
	return result, nil
}
