package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

type WebhookOption func(c *WebhookSMSClient)

func WithFrom(from string) WebhookOption {
	return func(c *WebhookSMSClient) { c.from = from }
}

func WithAPIKey(key string) WebhookOption {
	return func(c *WebhookSMSClient) { c.apiKey = key }
}

func WithRetry(max int, waitMin, waitMax time.Duration) WebhookOption {
	return func(c *WebhookSMSClient) {
		c.client.RetryMax = max
		c.client.RetryWaitMin = waitMin
		c.client.RetryWaitMax = waitMax
	}
}

// WebhookSMSClient posts messages to an HTTP SMS gateway that answers
// 202 Accepted with the provider message id.
type WebhookSMSClient struct {
	url    string
	from   string
	apiKey string
	client *retryablehttp.Client
}

func NewWebhookSMSClient(url string, opts ...WebhookOption) *WebhookSMSClient {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.RetryMax = 3
	rc.Logger = slog.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &WebhookSMSClient{url: url, client: rc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	From        string `json:"from,omitempty"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (c *WebhookSMSClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: to,
		Message:     body,
		From:        c.from,
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "sms gateway request failed")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", errors.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(respBody))
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", errors.Wrapf(err, "failed to decode json body=%q", string(respBody))
	}
	if sr.MessageID == "" {
		return "", errors.Errorf("missing messageId in response body=%q", string(respBody))
	}

	return sr.MessageID, nil
}
