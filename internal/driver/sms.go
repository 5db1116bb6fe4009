package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const maxSMSLength = 160

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsResponse struct {
	MessageID string `json:"messageId"`
}

// SMSGatewayDriver posts messages to an HTTP SMS gateway. Bodies longer than
// one SMS segment are truncated, the gateway bills per segment.
type SMSGatewayDriver struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewSMSGatewayDriver(endpoint, apiKey string) (*SMSGatewayDriver, error) {
	return NewSMSGatewayDriverWithClient(endpoint, apiKey, newRestyClient(defaultSendTimeout))
}

func NewSMSGatewayDriverWithClient(endpoint, apiKey string, client *resty.Client) (*SMSGatewayDriver, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("sms gateway endpoint is required")
	}
	if client == nil {
		client = newRestyClient(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &SMSGatewayDriver{
		client:   client,
		endpoint: trimmedEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
	}, nil
}

func (d *SMSGatewayDriver) Send(ctx context.Context, target string, payload Payload) (*SendResult, error) {
	if d == nil || d.client == nil {
		return nil, fmt.Errorf("sms driver is not initialized")
	}

	recipient := strings.TrimSpace(target)
	if recipient == "" {
		return nil, &DriverError{Message: "sms recipient is required"}
	}

	message := payload.Body
	if runes := []rune(message); len(runes) > maxSMSLength {
		message = string(runes[:maxSMSLength])
	}

	request := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(smsRequest{To: recipient, Message: message})
	if d.apiKey != "" {
		request.SetHeader("X-API-Key", d.apiKey)
	}

	response, err := request.Post(d.endpoint)
	if err != nil {
		return nil, &DriverError{
			Message:   "sms gateway request failed",
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
	var parsed smsResponse
	if err := json.Unmarshal(response.Body(), &parsed); err == nil && parsed.MessageID != "" {
		messageID = parsed.MessageID
	}

	return &SendResult{
		StatusCode: statusCode,
		Body:       responseBody,
		MessageID:  messageID,
	}, nil
}
