package chat

import (
	"context"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRepo_JobLifecycle(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	require.NoError(t, repo.Migrate())
	ctx := context.Background()

	job := &IngestJob{ID: "01JOB0000000000000000000001", URL: "https://example.com", Status: JobQueued}
	require.NoError(t, repo.CreateJob(ctx, job))

	ok, err := repo.MarkJobRunning(ctx, job.ID, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkJobRunning(ctx, job.ID, false)
	require.NoError(t, err)
	assert.False(t, ok, "second delivery must not run the job again")

	ok, err = repo.MarkJobRunning(ctx, job.ID, true)
	require.NoError(t, err)
	assert.True(t, ok, "a retry takes over a job left running")

	require.NoError(t, repo.MarkJobSucceeded(ctx, job.ID, "File processed successfully!"))

	got, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobSucceeded, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "File processed successfully!", *got.Result)
	assert.Nil(t, got.Error)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.Done())

	ok, err = repo.MarkJobRunning(ctx, job.ID, true)
	require.NoError(t, err)
	assert.False(t, ok, "finished jobs are never reclaimed")
}

func TestRepo_MarkFailedAndList(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	require.NoError(t, repo.Migrate())
	ctx := context.Background()

	for _, id := range []string{"01JOB0000000000000000000001", "01JOB0000000000000000000002"} {
		require.NoError(t, repo.CreateJob(ctx, &IngestJob{ID: id, URL: "https://example.com/" + id, Status: JobQueued}))
	}
	require.NoError(t, repo.MarkJobFailed(ctx, "01JOB0000000000000000000002", "unreachable"))

	got, err := repo.GetJobByID(ctx, "01JOB0000000000000000000002")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "unreachable", *got.Error)

	jobs, err := repo.ListJobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = repo.GetJobByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
