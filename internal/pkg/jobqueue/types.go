package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSendNotification JobType = "send_notification"
	JobTypeMoveFile         JobType = "move_file"
	JobTypeDeleteFile       JobType = "delete_file"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// SendNotificationJobPayload contains the payload for notification delivery jobs
type SendNotificationJobPayload struct {
	NotificationID uint `json:"notification_id"`
}

// ToMap converts the payload to a map for storage
func (p SendNotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": p.NotificationID,
	}
}

// SendNotificationJobPayloadFromMap creates a payload from a map
func SendNotificationJobPayloadFromMap(data map[string]interface{}) (*SendNotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload SendNotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// MoveFileJobPayload contains the payload for physical file relocation jobs
type MoveFileJobPayload struct {
	FileID    uint   `json:"file_id"`
	TargetDir string `json:"target_dir"`
}

// ToMap converts the payload to a map for storage
func (p MoveFileJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"file_id":    p.FileID,
		"target_dir": p.TargetDir,
	}
}

// MoveFileJobPayloadFromMap creates a payload from a map
func MoveFileJobPayloadFromMap(data map[string]interface{}) (*MoveFileJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload MoveFileJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// DeleteFileJobPayload contains the payload for physical file removal jobs
type DeleteFileJobPayload struct {
	FileID uint   `json:"file_id"`
	Path   string `json:"path"`
}

// ToMap converts the payload to a map for storage
func (p DeleteFileJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"file_id": p.FileID,
		"path":    p.Path,
	}
}

// DeleteFileJobPayloadFromMap creates a payload from a map
func DeleteFileJobPayloadFromMap(data map[string]interface{}) (*DeleteFileJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload DeleteFileJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
