package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/repository"
	"github.com/rankpilot/delivery-engine/internal/stats"
)

// StatsReader serves rollup rows with derived rates.
type StatsReader interface {
	Summarize(ctx context.Context, params repository.StatsQueryParams) ([]stats.Summary, error)
}

type StatsHandler struct {
	reader StatsReader
}

func NewStatsHandler(reader StatsReader) (*StatsHandler, error) {
	if reader == nil {
		return nil, fmt.Errorf("stats reader is required")
	}
	return &StatsHandler{reader: reader}, nil
}

func RegisterStatsRoutes(router fiber.Router, reader StatsReader) error {
	h, err := NewStatsHandler(reader)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/stats", h.GetStats)

	return nil
}

type statsRowResponse struct {
	TenantID     string    `json:"tenantId"`
	Date         time.Time `json:"date"`
	Channel      string    `json:"channel"`
	CampaignID   string    `json:"campaignId,omitempty"`
	Sent         int64     `json:"sent"`
	Delivered    int64     `json:"delivered"`
	Opened       int64     `json:"opened"`
	Clicked      int64     `json:"clicked"`
	Bounced      int64     `json:"bounced"`
	Failed       int64     `json:"failed"`
	Unsubscribed int64     `json:"unsubscribed"`
	DeliveryRate float64   `json:"deliveryRate"`
	OpenRate     float64   `json:"openRate"`
	ClickRate    float64   `json:"clickRate"`
}

func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	params, err := parseStatsParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	summaries, err := h.reader.Summarize(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	rows := make([]statsRowResponse, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, statsRowResponse{
			TenantID:     s.TenantID,
			Date:         s.Date,
			Channel:      s.Channel.String(),
			CampaignID:   s.CampaignID,
			Sent:         s.Sent,
			Delivered:    s.Delivered,
			Opened:       s.Opened,
			Clicked:      s.Clicked,
			Bounced:      s.Bounced,
			Failed:       s.Failed,
			Unsubscribed: s.Unsubscribed,
			DeliveryRate: s.DeliveryRate,
			OpenRate:     s.OpenRate,
			ClickRate:    s.ClickRate,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": rows})
}

func parseStatsParams(c *fiber.Ctx) (repository.StatsQueryParams, error) {
	params := repository.StatsQueryParams{
		TenantID: strings.TrimSpace(c.Query("tenantId")),
	}
	if params.TenantID == "" {
		return repository.StatsQueryParams{}, fmt.Errorf("%w: tenantId is required", domain.ErrValidation)
	}

	if raw := strings.TrimSpace(c.Query("channel")); raw != "" {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return repository.StatsQueryParams{}, err
		}
		params.Channel = &channel
	}
	if raw := strings.TrimSpace(c.Query("campaignId")); raw != "" {
		params.CampaignID = &raw
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.StatsQueryParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.StatsQueryParams{}, err
	}
	if from != nil {
		params.From = *from
	}
	if to != nil {
		params.To = *to
	}

	return params, nil
}
