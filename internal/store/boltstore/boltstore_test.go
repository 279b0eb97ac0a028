package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/store"
)

func TestStore_GetPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.bolt")
	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", []byte(`[]`)))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(v))
	require.NoError(t, s.Close())

	// survives reopen
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(v))
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "h.bolt"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Put(ctx, "k", []byte("x")))
}

func TestStore_WithAdapter(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "h.bolt"))
	require.NoError(t, err)
	a := store.NewAdapter(s, store.DefaultKey)
	defer a.Close()
	ctx := context.Background()

	h := chat.History{{ID: "c1", Title: "t", Messages: []chat.Message{{Sender: chat.SenderAI, Content: "<p>Hii</p>"}}}}
	require.NoError(t, a.Save(ctx, h))

	got, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}
