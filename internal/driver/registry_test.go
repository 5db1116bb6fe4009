package driver

import (
	"context"
	"testing"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

type noopDriver struct{}

func (noopDriver) Send(ctx context.Context, target string, payload Payload) (*SendResult, error) {
	return &SendResult{StatusCode: 200}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	if err := registry.Register(domain.ChannelEmail, noopDriver{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, ok := registry.Lookup(domain.ChannelEmail); !ok {
		t.Fatal("email driver should be registered")
	}
	if _, ok := registry.Lookup(domain.ChannelSMS); ok {
		t.Fatal("sms driver should not be registered")
	}
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	if err := registry.Register("CARRIER_PIGEON", noopDriver{}); err == nil {
		t.Fatal("expected error for invalid channel")
	}
	if err := registry.Register(domain.ChannelEmail, nil); err == nil {
		t.Fatal("expected error for nil driver")
	}
}
