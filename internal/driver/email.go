package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type emailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// EmailAPIDriver calls a transactional email provider's HTTP API. The target
// is the recipient address; the provider endpoint and key come from config.
type EmailAPIDriver struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	from     string
}

func NewEmailAPIDriver(endpoint, apiKey, from string) (*EmailAPIDriver, error) {
	return NewEmailAPIDriverWithClient(endpoint, apiKey, from, newRestyClient(defaultSendTimeout))
}

func NewEmailAPIDriverWithClient(endpoint, apiKey, from string, client *resty.Client) (*EmailAPIDriver, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("email api endpoint is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("email api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("email sender address is required")
	}
	if client == nil {
		client = newRestyClient(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &EmailAPIDriver{
		client:   client,
		endpoint: trimmedEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		from:     strings.TrimSpace(from),
	}, nil
}

func (d *EmailAPIDriver) Send(ctx context.Context, target string, payload Payload) (*SendResult, error) {
	if d == nil || d.client == nil {
		return nil, fmt.Errorf("email driver is not initialized")
	}

	recipient := strings.TrimSpace(target)
	if recipient == "" {
		return nil, &DriverError{Message: "email recipient is required"}
	}

	subject := payload.Subject
	if subject == "" {
		subject = "Notification"
	}

	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+d.apiKey).
		SetBody(emailRequest{
			From:    d.from,
			To:      recipient,
			Subject: subject,
			Text:    payload.Body,
		}).
		Post(d.endpoint)
	if err != nil {
		return nil, &DriverError{
			Message:   "email api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if !isSuccessStatus(statusCode) {
		return nil, &DriverError{
			StatusCode: statusCode,
			Message:    httpErrorMessage(statusCode, responseBody),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	messageID := messageIDFromHeaders(response)
	var parsed emailResponse
	if err := json.Unmarshal(response.Body(), &parsed); err == nil && parsed.ID != "" {
		messageID = parsed.ID
	}

	return &SendResult{
		StatusCode: statusCode,
		Body:       responseBody,
		MessageID:  messageID,
	}, nil
}
