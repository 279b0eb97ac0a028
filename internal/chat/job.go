package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// IngestJob is a URL ingestion handed to the worker through the queue.
type IngestJob struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	ConversationID string `gorm:"size:36;index" json:"conversation_id"`
	URL            string `gorm:"type:text;not null" json:"url"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Result *string `gorm:"type:text" json:"result,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	Attempts int `gorm:"not null;default:0" json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IngestJob) TableName() string { return "ingest_jobs" }

func (j *IngestJob) Done() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
