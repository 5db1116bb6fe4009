package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type webhookRequest struct {
	Subject string         `json:"subject,omitempty"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// WebhookDriver POSTs the payload as JSON to the target URL. Any 2xx response
// is a success; everything else is a failure carrying the response body.
type WebhookDriver struct {
	client *resty.Client
	now    func() time.Time
}

func NewWebhookDriver() *WebhookDriver {
	return NewWebhookDriverWithClient(newRestyClient(defaultSendTimeout))
}

func NewWebhookDriverWithClient(client *resty.Client) *WebhookDriver {
	if client == nil {
		client = newRestyClient(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookDriver{
		client: client,
		now:    time.Now,
	}
}

func (d *WebhookDriver) Send(ctx context.Context, target string, payload Payload) (*SendResult, error) {
	if d == nil || d.client == nil {
		return nil, fmt.Errorf("webhook driver is not initialized")
	}

	endpoint := strings.TrimSpace(target)
	if endpoint == "" {
		return nil, &DriverError{Message: "webhook target url is required"}
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &DriverError{Message: "invalid webhook target url", Cause: err}
	}

	reqBody := webhookRequest{
		Subject: payload.Subject,
		Body:    payload.Body,
		Data:    payload.Data,
		SentAt:  d.now().UTC(),
	}

	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(endpoint)
	if err != nil {
		return nil, &DriverError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if isSuccessStatus(statusCode) {
		return &SendResult{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageIDFromHeaders(response),
		}, nil
	}

	return nil, &DriverError{
		StatusCode: statusCode,
		Message:    httpErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
