package driver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

func TestWebhookDriverSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody webhookRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("X-Message-ID", "hook-msg-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := NewWebhookDriver()

	result, err := d.Send(context.Background(), server.URL, Payload{
		Subject: "Ranking drop detected",
		Body:    "example.com lost 12 positions for 3 tracked keywords",
		Data:    map[string]any{"keywords": float64(3)},
	})
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if result.StatusCode != http.StatusAccepted {
		t.Fatalf("StatusCode = %d, want %d", result.StatusCode, http.StatusAccepted)
	}
	if result.MessageID != "hook-msg-1" {
		t.Fatalf("MessageID = %q, want %q", result.MessageID, "hook-msg-1")
	}

	if gotBody.Subject != "Ranking drop detected" {
		t.Fatalf("request.subject = %q", gotBody.Subject)
	}
	if gotBody.Body == "" {
		t.Fatal("request.body should not be empty")
	}
	if gotBody.Data["keywords"] != float64(3) {
		t.Fatalf("request.data.keywords = %v, want 3", gotBody.Data["keywords"])
	}
}

func TestWebhookDriverStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true},
		{name: "not found is permanent", statusCode: http.StatusNotFound, wantTransient: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("endpoint rejected delivery"))
			}))
			defer server.Close()

			d := NewWebhookDriver()

			_, err := d.Send(context.Background(), server.URL, Payload{Body: "hello"})
			if err == nil {
				t.Fatal("expected error")
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}

			var driverErr *DriverError
			if !errors.As(err, &driverErr) {
				t.Fatalf("expected DriverError, got %T", err)
			}
			if driverErr.StatusCode != tc.statusCode {
				t.Fatalf("DriverError.StatusCode = %d, want %d", driverErr.StatusCode, tc.statusCode)
			}
		})
	}
}

func TestWebhookDriverErrorContainsResponseBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	d := NewWebhookDriver()

	_, err := d.Send(context.Background(), server.URL, Payload{Body: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}

	var driverErr *DriverError
	if !errors.As(err, &driverErr) {
		t.Fatalf("expected DriverError, got %T", err)
	}
	if got := driverErr.Message; !strings.Contains(got, "upstream exploded") {
		t.Fatalf("error message %q should include response body", got)
	}
}

func TestWebhookDriverTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	d := NewWebhookDriverWithClient(client)

	_, err := d.Send(context.Background(), server.URL, Payload{Body: "hello"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestWebhookDriverInvalidTarget(t *testing.T) {
	t.Parallel()

	d := NewWebhookDriver()

	if _, err := d.Send(context.Background(), "", Payload{Body: "hi"}); err == nil {
		t.Fatal("expected error for empty target")
	}
	if _, err := d.Send(context.Background(), "not a url", Payload{Body: "hi"}); err == nil {
		t.Fatal("expected error for malformed target")
	}
}
