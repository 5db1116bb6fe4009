package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

type PreferenceHandler struct {
	preferences repository.PreferenceRepository
}

func NewPreferenceHandler(preferences repository.PreferenceRepository) (*PreferenceHandler, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	return &PreferenceHandler{preferences: preferences}, nil
}

func RegisterPreferenceRoutes(router fiber.Router, preferences repository.PreferenceRepository) error {
	h, err := NewPreferenceHandler(preferences)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/tenants/:tenantId/preferences", h.GetPreferences)
	v1.Put("/tenants/:tenantId/preferences", h.UpsertPreferences)

	return nil
}

type quietHoursPayload struct {
	StartHour       int    `json:"startHour"`
	EndHour         int    `json:"endHour"`
	Timezone        string `json:"timezone,omitempty"`
	WeekendSuppress bool   `json:"weekendSuppress"`
}

type channelSettingPayload struct {
	Channel string `json:"channel"`
	Enabled bool   `json:"enabled"`
	Target  string `json:"target,omitempty"`
}

type preferencePayload struct {
	Threshold    string                  `json:"threshold"`
	AllowedTypes []string                `json:"allowedTypes,omitempty"`
	Channels     []channelSettingPayload `json:"channels,omitempty"`
	QuietHours   *quietHoursPayload      `json:"quietHours,omitempty"`
	DailyCap     int                     `json:"dailyCap"`
}

type preferenceResponse struct {
	TenantID string `json:"tenantId"`
	preferencePayload
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *PreferenceHandler) GetPreferences(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))
	pref, err := h.preferences.GetByTenant(c.Context(), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(pref))
}

func (h *PreferenceHandler) UpsertPreferences(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))

	var req preferencePayload
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pref, err := payloadToPreference(tenantID, req)
	if err != nil {
		return toHTTPError(err)
	}
	if err := pref.Validate(); err != nil {
		return toHTTPError(err)
	}

	if err := h.preferences.Upsert(c.Context(), pref); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(pref))
}

func payloadToPreference(tenantID string, req preferencePayload) (*domain.NotificationPreference, error) {
	threshold, err := domain.ParseSeverityFromString(req.Threshold)
	if err != nil {
		return nil, err
	}

	channels := make([]domain.ChannelSetting, 0, len(req.Channels))
	for _, setting := range req.Channels {
		channel, err := domain.ParseChannelFromString(setting.Channel)
		if err != nil {
			return nil, err
		}
		channels = append(channels, domain.ChannelSetting{
			Channel: channel,
			Enabled: setting.Enabled,
			Target:  strings.TrimSpace(setting.Target),
		})
	}

	pref := &domain.NotificationPreference{
		TenantID:     tenantID,
		Threshold:    threshold,
		AllowedTypes: req.AllowedTypes,
		Channels:     channels,
		DailyCap:     req.DailyCap,
	}
	if req.QuietHours != nil {
		pref.QuietHours = &domain.QuietHours{
			StartHour:       req.QuietHours.StartHour,
			EndHour:         req.QuietHours.EndHour,
			Timezone:        strings.TrimSpace(req.QuietHours.Timezone),
			WeekendSuppress: req.QuietHours.WeekendSuppress,
		}
	}

	return pref, nil
}

func toPreferenceResponse(pref *domain.NotificationPreference) preferenceResponse {
	if pref == nil {
		return preferenceResponse{}
	}

	channels := make([]channelSettingPayload, 0, len(pref.Channels))
	for _, setting := range pref.Channels {
		channels = append(channels, channelSettingPayload{
			Channel: setting.Channel.String(),
			Enabled: setting.Enabled,
			Target:  setting.Target,
		})
	}

	resp := preferenceResponse{
		TenantID: pref.TenantID,
		preferencePayload: preferencePayload{
			Threshold:    pref.Threshold.String(),
			AllowedTypes: pref.AllowedTypes,
			Channels:     channels,
			DailyCap:     pref.DailyCap,
		},
		CreatedAt: pref.CreatedAt,
		UpdatedAt: pref.UpdatedAt,
	}
	if pref.QuietHours != nil {
		resp.QuietHours = &quietHoursPayload{
			StartHour:       pref.QuietHours.StartHour,
			EndHour:         pref.QuietHours.EndHour,
			Timezone:        pref.QuietHours.Timezone,
			WeekendSuppress: pref.QuietHours.WeekendSuppress,
		}
	}

	return resp
}
