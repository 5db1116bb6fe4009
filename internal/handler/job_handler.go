package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/engine"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

// DeliveryEngine is the scheduled-job state machine entry point.
type DeliveryEngine interface {
	EnqueueJob(ctx context.Context, job *domain.ScheduledJob) (string, error)
	ProcessDueJobs(ctx context.Context, batchSize int) engine.BatchSummary
	CancelJob(ctx context.Context, id string) error
}

type JobHandler struct {
	engine DeliveryEngine
	jobs   repository.JobRepository
}

func NewJobHandler(eng DeliveryEngine, jobs repository.JobRepository) (*JobHandler, error) {
	if eng == nil {
		return nil, fmt.Errorf("delivery engine is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	return &JobHandler{engine: eng, jobs: jobs}, nil
}

func RegisterJobRoutes(router fiber.Router, eng DeliveryEngine, jobs repository.JobRepository) error {
	h, err := NewJobHandler(eng, jobs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/jobs", h.EnqueueJob)
	v1.Get("/jobs/:id", h.GetJob)
	v1.Post("/jobs/:id/cancel", h.CancelJob)
	// External cron trigger: one bounded batch per call.
	v1.Post("/jobs/process", h.ProcessDueJobs)

	return nil
}

type enqueueJobRequest struct {
	TenantID   string    `json:"tenantId"`
	CampaignID *string   `json:"campaignId,omitempty"`
	Channel    string    `json:"channel"`
	Recipient  string    `json:"recipient"`
	Subject    *string   `json:"subject,omitempty"`
	Content    string    `json:"content"`
	DueAt      time.Time `json:"dueAt"`
	MaxRetries *int      `json:"maxRetries,omitempty"`
}

type jobResponse struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenantId"`
	CampaignID        *string    `json:"campaignId,omitempty"`
	Channel           string     `json:"channel"`
	Recipient         string     `json:"recipient"`
	Subject           *string    `json:"subject,omitempty"`
	Content           string     `json:"content"`
	DueAt             time.Time  `json:"dueAt"`
	Status            string     `json:"status"`
	RetryCount        int        `json:"retryCount"`
	MaxRetries        int        `json:"maxRetries"`
	NextRetryAt       *time.Time `json:"nextRetryAt,omitempty"`
	ErrorMessage      *string    `json:"errorMessage,omitempty"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (h *JobHandler) EnqueueJob(c *fiber.Ctx) error {
	var req enqueueJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}

	job := &domain.ScheduledJob{
		TenantID:   strings.TrimSpace(req.TenantID),
		CampaignID: req.CampaignID,
		Channel:    channel,
		Recipient:  strings.TrimSpace(req.Recipient),
		Subject:    req.Subject,
		Content:    req.Content,
		DueAt:      req.DueAt,
	}
	if req.MaxRetries != nil {
		job.MaxRetries = *req.MaxRetries
	}

	id, err := h.engine.EnqueueJob(c.Context(), job)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"jobId":  id,
		"status": job.Status.String(),
		"dueAt":  job.DueAt,
	})
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	job, err := h.jobs.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toJobResponse(job))
}

func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.engine.CancelJob(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"jobId":  id,
		"status": domain.JobCancelled.String(),
	})
}

func (h *JobHandler) ProcessDueJobs(c *fiber.Ctx) error {
	batchSize := c.QueryInt("batchSize", engine.DefaultBatchSize)
	if batchSize < 1 || batchSize > 1000 {
		return toHTTPError(fmt.Errorf("%w: batchSize must be between 1 and 1000", domain.ErrValidation))
	}

	summary := h.engine.ProcessDueJobs(c.Context(), batchSize)
	return c.Status(fiber.StatusOK).JSON(summary)
}

func toJobResponse(j *domain.ScheduledJob) jobResponse {
	if j == nil {
		return jobResponse{}
	}

	return jobResponse{
		ID:                j.ID,
		TenantID:          j.TenantID,
		CampaignID:        j.CampaignID,
		Channel:           j.Channel.String(),
		Recipient:         j.Recipient,
		Subject:           j.Subject,
		Content:           j.Content,
		DueAt:             j.DueAt,
		Status:            j.Status.String(),
		RetryCount:        j.RetryCount,
		MaxRetries:        j.MaxRetries,
		NextRetryAt:       j.NextRetryAt,
		ErrorMessage:      j.ErrorMessage,
		ProviderMessageID: j.ProviderMessageID,
		SentAt:            j.SentAt,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}
