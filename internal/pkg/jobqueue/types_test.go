package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendNotificationPayloadRoundTrip(t *testing.T) {
	payload := SendNotificationJobPayload{NotificationID: 42}

	decoded, err := SendNotificationJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, uint(42), decoded.NotificationID)
}

func TestMoveFilePayloadRoundTrip(t *testing.T) {
	payload := MoveFileJobPayload{FileID: 7, TargetDir: "companies/5"}

	decoded, err := MoveFileJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestJobRetryLifecycle(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("smtp timeout")
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("smtp timeout")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable())
}

func TestJobCompletedClearsError(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, ErrorMsg: "transient"}

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.IsRetryable())
}
