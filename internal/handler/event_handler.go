package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

// StatsIngestor feeds provider event callbacks into the daily rollups.
type StatsIngestor interface {
	Record(ctx context.Context, tenantID string, channel domain.Channel, campaignID string, counter domain.StatCounter)
}

type EventHandler struct {
	stats StatsIngestor
}

func NewEventHandler(stats StatsIngestor) (*EventHandler, error) {
	if stats == nil {
		return nil, fmt.Errorf("stats ingestor is required")
	}
	return &EventHandler{stats: stats}, nil
}

func RegisterEventRoutes(router fiber.Router, stats StatsIngestor) error {
	h, err := NewEventHandler(stats)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events/provider", h.CreateProviderEvent)

	return nil
}

type providerEventRequest struct {
	TenantID   string `json:"tenantId"`
	Channel    string `json:"channel"`
	CampaignID string `json:"campaignId"`
	Event      string `json:"event"`
}

// CreateProviderEvent ingests a delivery/engagement callback from a channel
// provider (delivered, opened, clicked, bounced, unsubscribed).
func (h *EventHandler) CreateProviderEvent(c *fiber.Ctx) error {
	var req providerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.TenantID) == "" {
		return toHTTPError(fmt.Errorf("%w: tenantId is required", domain.ErrValidation))
	}
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}
	counter, err := parseProviderEvent(req.Event)
	if err != nil {
		return toHTTPError(err)
	}

	h.stats.Record(c.Context(), req.TenantID, channel, req.CampaignID, counter)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

func parseProviderEvent(s string) (domain.StatCounter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delivered":
		return domain.StatDelivered, nil
	case "opened":
		return domain.StatOpened, nil
	case "clicked":
		return domain.StatClicked, nil
	case "bounced":
		return domain.StatBounced, nil
	case "unsubscribed":
		return domain.StatUnsubscribed, nil
	}
	return "", fmt.Errorf("%w: unknown provider event %q", domain.ErrValidation, s)
}
