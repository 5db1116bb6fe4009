package driver

import "context"

// Payload is the rendered content handed to a channel driver. The core passes
// structured data only; HTML building and templating are the driver's concern.
type Payload struct {
	Subject string
	Body    string
	Data    map[string]any
}

// SendResult stores driver call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string
}

// Driver is the outbound delivery port. Implementations perform exactly one
// network call per Send, never retry internally, and return expected failures
// as a *DriverError rather than panicking.
type Driver interface {
	Send(ctx context.Context, target string, payload Payload) (*SendResult, error)
}
