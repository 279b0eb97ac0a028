package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ragview/internal/chat"
)

func randomHistory(r *rand.Rand, conversations, maxMessages int) chat.History {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := make(chat.History, 0, conversations)
	for i := 0; i < conversations; i++ {
		c := chat.Conversation{
			ID:        fmt.Sprintf("conv-%d", i),
			Title:     fmt.Sprintf("title %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		n := r.Intn(maxMessages + 1)
		for j := 0; j < n; j++ {
			sender := chat.SenderUser
			if r.Intn(2) == 0 {
				sender = chat.SenderAI
			}
			c.Messages = append(c.Messages, chat.Message{
				Sender:    sender,
				Query:     fmt.Sprintf("q%d", j),
				Content:   fmt.Sprintf("<p>answer \"%d\" & more</p>", j),
				Timestamp: base.Add(time.Duration(i*1000+j) * time.Millisecond),
			})
		}
		h = append(h, c)
	}
	return h
}

func TestAdapter_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for n := 0; n <= 6; n++ {
		t.Run(fmt.Sprintf("conversations=%d", n), func(t *testing.T) {
			a := NewAdapter(NewMemory(), "")
			h := randomHistory(r, n, 5)

			require.NoError(t, a.Save(ctx, h))
			got, err := a.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, h, got)
		})
	}
}

func TestAdapter_AbsentKeyIsEmpty(t *testing.T) {
	a := NewAdapter(NewMemory(), "history")
	h, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Empty(t, h)
}

func TestAdapter_MalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{`[{"id":"a","title":"t`, `{"id":"x"}`, `null`, `not json`} {
		t.Run(raw, func(t *testing.T) {
			mem := NewMemory()
			require.NoError(t, mem.Put(ctx, DefaultKey, []byte(raw)))

			a := NewAdapter(mem, DefaultKey)
			h, err := a.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, h)

			// the next save repairs the stored value
			require.NoError(t, a.Save(ctx, chat.History{{ID: "fixed"}}))
			h, err = a.Load(ctx)
			require.NoError(t, err)
			require.Len(t, h, 1)
			assert.Equal(t, "fixed", h[0].ID)
		})
	}
}

func TestAdapter_JSONLayout(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	a := NewAdapter(mem, DefaultKey)
	ts := time.Date(2026, 5, 6, 7, 8, 9, 123000000, time.UTC)

	require.NoError(t, a.Save(ctx, chat.History{{
		ID: "c1", Title: "hello", Timestamp: ts,
		Messages: []chat.Message{{Sender: chat.SenderUser, Query: "hello", Content: "<p>hello</p>", Timestamp: ts}},
	}}))

	raw, ok, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"c1","title":"hello","timestamp":"2026-05-06T07:08:09.123Z",
		"messages":[{"sender":"user","query":"hello","content":"<p>hello</p>","timestamp":"2026-05-06T07:08:09.123Z"}]}]`, string(raw))
}

type failingBackend struct{}

func (failingBackend) Close() error { return nil }

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingBackend) Put(context.Context, string, []byte) error {
	return errors.New("connection refused")
}

func TestAdapter_BackendErrors(t *testing.T) {
	a := NewAdapter(failingBackend{}, "k")
	_, err := a.Load(context.Background())
	require.Error(t, err)
	require.Error(t, a.Save(context.Background(), nil))
}

func TestAdapter_WithManager(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemory(), DefaultKey)

	m, err := chat.Open(ctx, a, chat.Options{ReloadCount: 1})
	require.NoError(t, err)
	_, err = m.Append(ctx, chat.SenderUser, "persist me", "<p>persist me</p>")
	require.NoError(t, err)

	reopened, err := chat.Open(ctx, a, chat.Options{ReloadCount: 1, ResumeLatest: true})
	require.NoError(t, err)
	assert.Equal(t, m.ActiveID(), reopened.ActiveID())
	assert.Equal(t, m.Transcript(), reopened.Transcript())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	mem := NewMemory()
	reg.Register(" Memory ", func(ctx context.Context) (Backend, error) {
		_ = ctx
		return mem, nil
	})

	b, err := reg.Open(context.Background(), "MEMORY")
	require.NoError(t, err)
	assert.Same(t, mem, b)
	assert.Equal(t, []string{"memory"}, reg.Names())

	_, err = reg.Open(context.Background(), "etcd")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
