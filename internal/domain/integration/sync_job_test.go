package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJob_Lifecycle(t *testing.T) {
	now := time.Now()

	t.Run("pending to completed", func(t *testing.T) {
		job, err := NewSyncJob(JobTypeFull, "", TriggerManual, now)
		require.NoError(t, err)
		assert.Equal(t, JobStatePending, job.State)

		require.NoError(t, job.Start(now))
		assert.Equal(t, JobStateRunning, job.State)

		job.Counts.Add(ItemSuccess)
		job.Counts.Add(ItemFailed)
		job.Counts.Add(ItemSkipped)
		require.NoError(t, job.Complete(now.Add(time.Second)))

		assert.Equal(t, JobStateCompleted, job.State)
		assert.Equal(t, JobCounts{Processed: 3, Success: 1, Failed: 1, Skipped: 1}, job.Counts)
		assert.Equal(t, time.Second, job.Duration())
	})

	t.Run("running to failed", func(t *testing.T) {
		job, _ := NewSyncJob(JobTypeOrder, "", TriggerCron, now)
		require.NoError(t, job.Start(now))
		require.NoError(t, job.Fail(now, errors.New("auth")))
		assert.Equal(t, JobStateFailed, job.State)
		assert.Equal(t, "auth", job.Error)
	})

	t.Run("cancel from pending and running", func(t *testing.T) {
		pending, _ := NewSyncJob(JobTypePrice, "", TriggerManual, now)
		require.NoError(t, pending.Cancel(now))
		assert.Equal(t, JobStateCancelled, pending.State)

		running, _ := NewSyncJob(JobTypePrice, "", TriggerManual, now)
		require.NoError(t, running.Start(now))
		require.NoError(t, running.Cancel(now))
		assert.Equal(t, JobStateCancelled, running.State)
	})

	t.Run("invalid transitions", func(t *testing.T) {
		job, _ := NewSyncJob(JobTypeFull, "", TriggerManual, now)
		assert.ErrorIs(t, job.Complete(now), ErrInvalidJobTransition)
		assert.ErrorIs(t, job.Fail(now, nil), ErrInvalidJobTransition)

		require.NoError(t, job.Start(now))
		assert.ErrorIs(t, job.Start(now), ErrInvalidJobTransition)
		require.NoError(t, job.Complete(now))
		assert.ErrorIs(t, job.Cancel(now), ErrInvalidJobTransition)
		assert.True(t, job.State.IsTerminal())
	})
}

func TestSyncJob_ExclusionKey(t *testing.T) {
	full, _ := NewSyncJob(JobTypeFull, "", TriggerManual, time.Now())
	assert.Equal(t, "full", full.ExclusionKey())

	sku, err := NewSyncJob(JobTypeInventory, "album-001", TriggerManual, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "inventory:ALBUM-001", sku.ExclusionKey())

	_, err = NewSyncJob(JobType("bogus"), "", TriggerManual, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}
