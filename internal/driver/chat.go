package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

type chatMessage struct {
	Text        string           `json:"text"`
	Attachments []chatAttachment `json:"attachments,omitempty"`
}

type chatAttachment struct {
	Title  string      `json:"title,omitempty"`
	Text   string      `json:"text,omitempty"`
	Fields []chatField `json:"fields,omitempty"`
}

type chatField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// ChatWebhookDriver delivers to Slack-compatible incoming webhooks. The
// subject becomes the message text and structured data is rendered as
// attachment fields.
type ChatWebhookDriver struct {
	client *resty.Client
}

func NewChatWebhookDriver() *ChatWebhookDriver {
	return NewChatWebhookDriverWithClient(newRestyClient(defaultSendTimeout))
}

func NewChatWebhookDriverWithClient(client *resty.Client) *ChatWebhookDriver {
	if client == nil {
		client = newRestyClient(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &ChatWebhookDriver{client: client}
}

func (d *ChatWebhookDriver) Send(ctx context.Context, target string, payload Payload) (*SendResult, error) {
	if d == nil || d.client == nil {
		return nil, fmt.Errorf("chat webhook driver is not initialized")
	}

	endpoint := strings.TrimSpace(target)
	if endpoint == "" {
		return nil, &DriverError{Message: "chat webhook url is required"}
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &DriverError{Message: "invalid chat webhook url", Cause: err}
	}

	response, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildChatMessage(payload)).
		Post(endpoint)
	if err != nil {
		return nil, &DriverError{
			Message:   "chat webhook request failed",
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

func buildChatMessage(payload Payload) chatMessage {
	msg := chatMessage{Text: payload.Subject}
	if msg.Text == "" {
		msg.Text = payload.Body
	}

	attachment := chatAttachment{Text: payload.Body}
	for key, value := range payload.Data {
		attachment.Fields = append(attachment.Fields, chatField{
			Title: key,
			Value: fmt.Sprint(value),
			Short: true,
		})
	}
	if attachment.Text != "" || len(attachment.Fields) > 0 {
		msg.Attachments = append(msg.Attachments, attachment)
	}

	return msg
}
