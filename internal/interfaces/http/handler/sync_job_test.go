package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appintegration "github.com/storelink/backend/internal/application/integration"
	"github.com/storelink/backend/internal/domain/integration"
	"github.com/storelink/backend/internal/interfaces/http/dto"
)

func newPendingJob(t *testing.T, jobType integration.JobType, sku string) *integration.SyncJob {
	t.Helper()
	job, err := integration.NewSyncJob(jobType, sku, integration.TriggerManual, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return job
}

func TestSyncJobHandler_Trigger(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		method  string
		args    []any
		jobType integration.JobType
		sku     string
	}{
		{"full", "/api/v1/sync/jobs/full", "TriggerFullSync", []any{integration.TriggerManual}, integration.JobTypeFull, ""},
		{"sku", "/api/v1/sync/jobs/sku/ALBUM-001", "TriggerSKUSync", []any{"ALBUM-001", integration.TriggerManual}, integration.JobTypeInventory, "ALBUM-001"},
		{"price", "/api/v1/sync/jobs/price", "TriggerPriceSync", []any{integration.TriggerManual}, integration.JobTypePrice, ""},
		{"orders", "/api/v1/sync/jobs/orders", "TriggerOrderIngestion", []any{integration.TriggerManual}, integration.JobTypeOrder, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := new(MockJobScheduler)
			job := newPendingJob(t, tt.jobType, tt.sku)
			scheduler.On(tt.method, append([]any{mock.Anything}, tt.args...)...).Return(job, nil)

			w := doRequest(t, newTestRouter(NewSyncJobHandler(scheduler)), http.MethodPost, tt.path, nil)

			assert.Equal(t, http.StatusAccepted, w.Code)
			var got appintegration.JobResponse
			decodeData(t, w, &got)
			assert.Equal(t, job.ID, got.ID)
			assert.Equal(t, string(tt.jobType), got.Type)
			assert.Equal(t, "pending", got.State)
			scheduler.AssertExpectations(t)
		})
	}
}

func TestSyncJobHandler_TriggerConflict(t *testing.T) {
	scheduler := new(MockJobScheduler)
	running := newPendingJob(t, integration.JobTypeFull, "")
	require.NoError(t, running.Start(time.Now()))
	scheduler.On("TriggerFullSync", mock.Anything, integration.TriggerManual).
		Return(running, fmt.Errorf("%w: full", integration.ErrJobAlreadyRunning))

	w := doRequest(t, newTestRouter(NewSyncJobHandler(scheduler)), http.MethodPost, "/api/v1/sync/jobs/full", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeJobAlreadyRunning, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, running.ID.String())
}

func TestSyncJobHandler_TriggerErrors(t *testing.T) {
	t.Run("invalid sku never reaches the scheduler", func(t *testing.T) {
		scheduler := new(MockJobScheduler)
		w := doRequest(t, newTestRouter(NewSyncJobHandler(scheduler)), http.MethodPost, "/api/v1/sync/jobs/sku/BAD%09SKU", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		scheduler.AssertNotCalled(t, "TriggerSKUSync", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown sku", func(t *testing.T) {
		scheduler := new(MockJobScheduler)
		scheduler.On("TriggerSKUSync", mock.Anything, "GHOST", integration.TriggerManual).
			Return(nil, fmt.Errorf("%w: GHOST", integration.ErrMappingNotFound))

		w := doRequest(t, newTestRouter(NewSyncJobHandler(scheduler)), http.MethodPost, "/api/v1/sync/jobs/sku/GHOST", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("order ingestion not configured", func(t *testing.T) {
		scheduler := new(MockJobScheduler)
		scheduler.On("TriggerOrderIngestion", mock.Anything, integration.TriggerManual).
			Return(nil, fmt.Errorf("%w: order ingestion", integration.ErrPlatformNotConfigured))

		w := doRequest(t, newTestRouter(NewSyncJobHandler(scheduler)), http.MethodPost, "/api/v1/sync/jobs/orders", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodePlatformNotConfigured, decodeResponse(t, w).Error.Code)
	})
}

func TestSyncJobHandler_Get(t *testing.T) {
	scheduler := new(MockJobScheduler)
	job := newPendingJob(t, integration.JobTypeInventory, "ALBUM-001")
	job.Counts = integration.JobCounts{Processed: 1, Success: 1}
	scheduler.On("JobStatus", mock.Anything, job.ID).Return(job, nil)
	missing := uuid.New()
	scheduler.On("JobStatus", mock.Anything, missing).Return(nil, integration.ErrJobNotFound)
	engine := newTestRouter(NewSyncJobHandler(scheduler))

	w := doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got appintegration.JobResponse
	decodeData(t, w, &got)
	assert.Equal(t, 1, got.Counts.Success)
	assert.Equal(t, "ALBUM-001", got.SKU)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncJobHandler_Cancel(t *testing.T) {
	scheduler := new(MockJobScheduler)
	engine := newTestRouter(NewSyncJobHandler(scheduler))

	running := newPendingJob(t, integration.JobTypeFull, "")
	scheduler.On("Cancel", mock.Anything, running.ID).Return(running, nil)
	w := doRequest(t, engine, http.MethodPost, "/api/v1/sync/jobs/"+running.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	done := newPendingJob(t, integration.JobTypeFull, "")
	require.NoError(t, done.Start(time.Now()))
	require.NoError(t, done.Complete(time.Now()))
	scheduler.On("Cancel", mock.Anything, done.ID).
		Return(done, fmt.Errorf("%w: job is completed", integration.ErrInvalidJobTransition))
	w = doRequest(t, engine, http.MethodPost, "/api/v1/sync/jobs/"+done.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
}

func TestSyncJobHandler_List(t *testing.T) {
	scheduler := new(MockJobScheduler)
	jobs := []integration.SyncJob{
		*newPendingJob(t, integration.JobTypePrice, ""),
		*newPendingJob(t, integration.JobTypePrice, ""),
	}
	scheduler.On("RecentJobs", mock.Anything, integration.JobTypePrice, 5).Return(jobs, nil)
	scheduler.On("RecentJobs", mock.Anything, integration.JobType(""), defaultJobListLimit).Return([]integration.SyncJob{}, nil)
	scheduler.On("RecentJobs", mock.Anything, integration.JobType(""), maxJobListLimit).Return(nil, errors.New("db down"))
	engine := newTestRouter(NewSyncJobHandler(scheduler))

	w := doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs?type=price&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []appintegration.JobResponse
	decodeData(t, w, &got)
	assert.Len(t, got, 2)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs?limit=500", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/sync/jobs?type=weekly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	scheduler.AssertExpectations(t)
}
