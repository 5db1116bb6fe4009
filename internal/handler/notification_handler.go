package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

// NotificationOrchestrator is the producer-facing pipeline entry point.
type NotificationOrchestrator interface {
	OrchestrateNotification(ctx context.Context, n *domain.Notification)
}

type NotificationHandler struct {
	orchestrator  NotificationOrchestrator
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
}

func NewNotificationHandler(orchestrator NotificationOrchestrator, notifications repository.NotificationRepository, attempts repository.AttemptRepository) (*NotificationHandler, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	return &NotificationHandler{
		orchestrator:  orchestrator,
		notifications: notifications,
		attempts:      attempts,
	}, nil
}

func RegisterNotificationRoutes(router fiber.Router, orchestrator NotificationOrchestrator, notifications repository.NotificationRepository, attempts repository.AttemptRepository) error {
	h, err := NewNotificationHandler(orchestrator, notifications, attempts)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/attempts", h.ListAttempts)

	return nil
}

type createNotificationRequest struct {
	TenantID    string         `json:"tenantId"`
	Severity    string         `json:"severity"`
	EventType   string         `json:"eventType"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

type notificationResponse struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	Severity    string         `json:"severity"`
	EventType   string         `json:"eventType"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type attemptResponse struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	NotificationID *string   `json:"notificationId,omitempty"`
	JobID          *string   `json:"jobId,omitempty"`
	Channel        string    `json:"channel"`
	Target         string    `json:"target"`
	Status         string    `json:"status"`
	StatusCode     *int      `json:"statusCode,omitempty"`
	Error          *string   `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type listAttemptsResponse struct {
	Data []attemptResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// CreateNotification accepts a candidate event and hands it to the pipeline.
// The producer always gets 202: gating and delivery outcomes surface through
// the audit log, never through this response.
func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	severity, err := domain.ParseSeverityFromString(req.Severity)
	if err != nil {
		return toHTTPError(err)
	}

	n := &domain.Notification{
		TenantID:    strings.TrimSpace(req.TenantID),
		Severity:    severity,
		EventType:   strings.TrimSpace(req.EventType),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Data:        req.Data,
	}
	if err := n.Validate(); err != nil {
		return toHTTPError(err)
	}

	h.orchestrator.OrchestrateNotification(c.Context(), n)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"notificationId": n.ID,
		"status":         "accepted",
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	n, err := h.notifications.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(n))
}

func (h *NotificationHandler) ListAttempts(c *fiber.Ctx) error {
	params, err := parseAttemptListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	attempts, total, err := h.attempts.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for i := range attempts {
		responses = append(responses, toAttemptResponse(&attempts[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseAttemptListParams(c *fiber.Ctx) (repository.AttemptListParams, error) {
	params := repository.AttemptListParams{
		TenantID: strings.TrimSpace(c.Query("tenantId")),
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.AttemptListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.AttemptListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if raw := strings.TrimSpace(c.Query("notificationId")); raw != "" {
		params.NotificationID = &raw
	}
	if raw := strings.TrimSpace(c.Query("jobId")); raw != "" {
		params.JobID = &raw
	}
	if raw := strings.TrimSpace(c.Query("channel")); raw != "" {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return repository.AttemptListParams{}, err
		}
		params.Channel = &channel
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := domain.ParseAttemptStatusFromString(raw)
		if err != nil {
			return repository.AttemptListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.AttemptListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.AttemptListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:          n.ID,
		TenantID:    n.TenantID,
		Severity:    n.Severity.String(),
		EventType:   n.EventType,
		Title:       n.Title,
		Description: n.Description,
		Data:        n.Data,
		CreatedAt:   n.CreatedAt,
	}
}

func toAttemptResponse(a *domain.DeliveryAttempt) attemptResponse {
	if a == nil {
		return attemptResponse{}
	}

	return attemptResponse{
		ID:             a.ID,
		TenantID:       a.TenantID,
		NotificationID: a.NotificationID,
		JobID:          a.JobID,
		Channel:        a.Channel.String(),
		Target:         a.Target,
		Status:         a.Status.String(),
		StatusCode:     a.StatusCode,
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
