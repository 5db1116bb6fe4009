package domain

import (
	"fmt"
	"strings"
	"time"
)

// Notification is a single detected event eligible for alerting. It is
// immutable once created; producers hand it to the orchestrator as plain data.
type Notification struct {
	ID          string
	TenantID    string
	Severity    Severity
	EventType   string
	Title       string
	Description string
	Data        map[string]any
	CreatedAt   time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(n.EventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !n.Severity.IsValid() {
		return fmt.Errorf("%w: invalid severity %q", ErrValidation, n.Severity)
	}
	return nil
}
