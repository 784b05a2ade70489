package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/interfaces/http/dto"
	"github.com/storelink/backend/internal/interfaces/http/middleware"
	"github.com/storelink/backend/internal/interfaces/http/router"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
)

// JobScheduler starts and tracks background sync jobs
type JobScheduler interface {
	TriggerFullSync(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error)
	TriggerSKUSync(ctx context.Context, sku string, trigger integration.JobTrigger) (*integration.SyncJob, error)
	TriggerPriceSync(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error)
	TriggerOrderIngestion(ctx context.Context, trigger integration.JobTrigger) (*integration.SyncJob, error)
	Cancel(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error)
	JobStatus(ctx context.Context, id uuid.UUID) (*integration.SyncJob, error)
	RecentJobs(ctx context.Context, jobType integration.JobType, limit int) ([]integration.SyncJob, error)
}

// SyncJobHandler exposes the sync scheduler over HTTP
type SyncJobHandler struct {
	BaseHandler
	scheduler JobScheduler
}

// NewSyncJobHandler creates a new SyncJobHandler
func NewSyncJobHandler(scheduler JobScheduler) *SyncJobHandler {
	return &SyncJobHandler{scheduler: scheduler}
}

// RegisterRoutes mounts the job routes under /sync/jobs
func (h *SyncJobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := router.NewDomainGroup("sync", "/sync/jobs")
	jobs.GET("", h.List)
	jobs.POST("/full", h.TriggerFull)
	jobs.POST("/sku/:sku", h.TriggerSKU)
	jobs.POST("/price", h.TriggerPrice)
	jobs.POST("/orders", h.TriggerOrders)
	jobs.GET("/:id", h.Get)
	jobs.POST("/:id/cancel", h.Cancel)
	jobs.RegisterRoutes(rg)
}

// TriggerFull starts a full inventory and price pass over every active mapping
func (h *SyncJobHandler) TriggerFull(c *gin.Context) {
	job, err := h.scheduler.TriggerFullSync(c.Request.Context(), integration.TriggerManual)
	h.respondTriggered(c, job, err)
}

// TriggerSKU syncs a single mapping
func (h *SyncJobHandler) TriggerSKU(c *gin.Context) {
	sku := c.Param("sku")
	if !middleware.ValidSKU(sku) {
		h.HandleError(c, integration.NewValidationError("sku", "must be at most 100 printable characters"))
		return
	}
	job, err := h.scheduler.TriggerSKUSync(c.Request.Context(), sku, integration.TriggerManual)
	h.respondTriggered(c, job, err)
}

// TriggerPrice starts a price-only pass
func (h *SyncJobHandler) TriggerPrice(c *gin.Context) {
	job, err := h.scheduler.TriggerPriceSync(c.Request.Context(), integration.TriggerManual)
	h.respondTriggered(c, job, err)
}

// TriggerOrders starts one order ingestion pass
func (h *SyncJobHandler) TriggerOrders(c *gin.Context) {
	job, err := h.scheduler.TriggerOrderIngestion(c.Request.Context(), integration.TriggerManual)
	h.respondTriggered(c, job, err)
}

// respondTriggered answers 202 with the new job. A conflicting job is
// reported as 409 with the running job's ID in the message.
func (h *SyncJobHandler) respondTriggered(c *gin.Context, job *integration.SyncJob, err error) {
	if err != nil {
		if errors.Is(err, integration.ErrJobAlreadyRunning) && job != nil {
			h.ErrorWithCode(c, dto.ErrCodeJobAlreadyRunning, "job "+job.ID.String()+" is already "+string(job.State))
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, appintegration.ToJobResponse(job))
}

// Get returns the live or stored state of one job
func (h *SyncJobHandler) Get(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}
	job, err := h.scheduler.JobStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToJobResponse(job))
}

// Cancel requests cancellation of a pending or running job
func (h *SyncJobHandler) Cancel(c *gin.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}
	job, err := h.scheduler.Cancel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, appintegration.ToJobResponse(job))
}

// List returns the newest jobs, optionally filtered by ?type=
func (h *SyncJobHandler) List(c *gin.Context) {
	jobType := integration.JobType(c.Query("type"))
	if jobType != "" && !jobType.IsValid() {
		h.HandleError(c, integration.NewValidationError("type", "must be one of: full inventory price order"))
		return
	}
	limit, err := queryInt(c, "limit", defaultJobListLimit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if limit == 0 || limit > maxJobListLimit {
		limit = maxJobListLimit
	}

	jobs, err := h.scheduler.RecentJobs(c.Request.Context(), jobType, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]appintegration.JobResponse, len(jobs))
	for i := range jobs {
		out[i] = appintegration.ToJobResponse(&jobs[i])
	}
	h.Success(c, out)
}

func (h *SyncJobHandler) jobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.HandleError(c, integration.NewValidationError("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
