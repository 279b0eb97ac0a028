package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/common"
	"github.com/suPer8Hu/ragview/internal/rag"
)

var (
	ErrEmptyURL    = errors.New("url is empty")
	ErrNoPublisher = errors.New("no job publisher configured")
)

type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Ingester is the part of the RAG gateway the worker needs.
type Ingester interface {
	IngestURL(ctx context.Context, url string) rag.Result
}

// Service queues URL ingestions and runs them on the worker side.
type Service struct {
	repo *chat.Repo
	pub  Publisher
	gw   Ingester
}

// NewService wires the job repo with the publisher (API side) and the gateway
// (worker side). Either may be nil where it is not needed.
func NewService(repo *chat.Repo, pub Publisher, gw Ingester) *Service {
	return &Service{repo: repo, pub: pub, gw: gw}
}

// Enqueue stores a queued job and publishes its id.
func (s *Service) Enqueue(ctx context.Context, conversationID, url string) (*chat.IngestJob, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}
	if s.pub == nil {
		return nil, ErrNoPublisher
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, fmt.Errorf("new job id: %w", err)
	}
	job := &chat.IngestJob{
		ID:             id,
		ConversationID: conversationID,
		URL:            url,
		Status:         chat.JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.pub.PublishJob(ctx, job.ID); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("publish job failed")
		// a job nobody will consume must not stay queued
		if mErr := s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed"); mErr != nil {
			log.Error().Err(mErr).Str("job_id", job.ID).Msg("mark unpublished job failed")
		}
		return nil, fmt.Errorf("publish job: %w", err)
	}
	return job, nil
}

func (s *Service) Job(ctx context.Context, id string) (*chat.IngestJob, error) {
	return s.repo.GetJobByID(ctx, id)
}

func (s *Service) Jobs(ctx context.Context, limit int) ([]chat.IngestJob, error) {
	return s.repo.ListJobs(ctx, limit)
}

// Process runs one delivered job. A job that is no longer queued is skipped,
// so redeliveries are harmless; a retry (a delivery that came back through the
// retry queue) also takes over a job an interrupted attempt left running.
// A gateway failure marks the job failed and is not an error. Errors are left
// for storage problems and interruptions, which the caller may retry.
func (s *Service) Process(ctx context.Context, jobID string, retry bool) error {
	start := time.Now()

	claimed, err := s.repo.MarkJobRunning(ctx, jobID, retry)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		log.Info().Str("job_id", jobID).Bool("retry", retry).Msg("job not claimable, skipping")
		return nil
	}

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	res := s.gw.IngestURL(ctx, job.URL)
	if err := ctx.Err(); err != nil {
		// the outcome is unknown; leave the job running for the retry
		return fmt.Errorf("ingest interrupted: %w", err)
	}

	// the gateway call has finished, record it even if shutdown starts now
	mctx := context.WithoutCancel(ctx)
	if !res.Success {
		log.Warn().Str("job_id", jobID).Str("url", job.URL).Str("reason", res.Message).
			Dur("cost", time.Since(start)).Msg("ingestion failed")
		if err := s.repo.MarkJobFailed(mctx, jobID, res.Message); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil
	}

	if err := s.repo.MarkJobSucceeded(mctx, jobID, res.Message); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	if cost := time.Since(start); cost > 2*time.Second {
		log.Info().Str("job_id", jobID).Dur("cost", cost).Msg("slow ingestion")
	}
	return nil
}

// Abandon marks a job failed once the worker gives up retrying it.
func (s *Service) Abandon(ctx context.Context, jobID, reason string) error {
	return s.repo.MarkJobFailed(context.WithoutCancel(ctx), jobID, "gave up after retries: "+reason)
}
