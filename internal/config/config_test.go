package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000", cfg.RAGBaseURL)
	assert.Equal(t, time.Duration(0), cfg.RAGTimeout)
	assert.Equal(t, "bolt", cfg.StoreBackend)
	assert.Equal(t, "ragConversationHistory", cfg.StoreKey)
	assert.Equal(t, 1, cfg.ReloadCount)
	assert.Equal(t, "hii", cfg.GreetingTrigger)
	assert.Equal(t, "hey", cfg.GreetingReply)
	assert.Equal(t, 6, cfg.MaxInputRows)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RAG_BASE_URL", "http://rag.local:9000/")
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("GREETING_TRIGGER", "HELLO")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("RAG_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://rag.local:9000", cfg.RAGBaseURL)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "hello", cfg.GreetingTrigger)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, 30*time.Second, cfg.RAGTimeout)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
