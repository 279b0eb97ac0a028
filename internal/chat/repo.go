package chat

import (
	"context"

	"gorm.io/gorm"
)

// Repo stores ingestion jobs.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&IngestJob{})
}

func (r *Repo) CreateJob(ctx context.Context, job *IngestJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*IngestJob, error) {
	var j IngestJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns the most recent jobs first.
func (r *Repo) ListJobs(ctx context.Context, limit int) ([]IngestJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []IngestJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobRunning moves a queued job to running. It reports false when the job
// was not queued, so a redelivered message does not run twice. reclaim also
// accepts a job left running by an interrupted attempt; retried deliveries
// pass it.
func (r *Repo) MarkJobRunning(ctx context.Context, id string, reclaim bool) (bool, error) {
	statuses := []JobStatus{JobQueued}
	if reclaim {
		statuses = append(statuses, JobRunning)
	}
	res := r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(map[string]any{
			"status":   JobRunning,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, result string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"result": result,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
			"result": nil,
		}).Error
}
