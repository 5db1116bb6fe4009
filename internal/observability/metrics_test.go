package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncDelivery("EMAIL", "sent")
	metrics.IncDelivery("email", "failed")
	metrics.IncGated("circuit breaker")
	metrics.ObserveSendDuration("email", 120*time.Millisecond)
	metrics.IncJobInFlight("email")
	metrics.DecJobInFlight("email")
	metrics.IncRetryScheduled("email")

	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("email", "sent")); got != 1 {
		t.Fatalf("deliveries_total{sent} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveriesTotal.WithLabelValues("email", "failed")); got != 1 {
		t.Fatalf("deliveries_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsGatedTotal.WithLabelValues("circuit breaker")); got != 1 {
		t.Fatalf("notifications_gated_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.jobsRetryScheduledTotal.WithLabelValues("email")); got != 1 {
		t.Fatalf("jobs_retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.jobsInflight.WithLabelValues("email")); got != 0 {
		t.Fatalf("jobs_inflight = %v, want 0", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
