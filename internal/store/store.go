package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/chat"
)

const DefaultKey = "ragConversationHistory"

// Backend is a raw key/value store holding the serialized history.
type Backend interface {
	// Get reports ok=false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Adapter reads and writes the whole chat.History as JSON under one key.
type Adapter struct {
	backend Backend
	key     string
}

var _ chat.Store = (*Adapter)(nil)

func NewAdapter(b Backend, key string) *Adapter {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &Adapter{backend: b, key: key}
}

// Load returns an empty history when the key is absent or holds malformed data.
// Only backend failures are reported as errors.
func (a *Adapter) Load(ctx context.Context) (chat.History, error) {
	raw, ok, err := a.backend.Get(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.key, err)
	}
	if !ok || len(raw) == 0 {
		return chat.History{}, nil
	}
	return Decode(raw), nil
}

// Save overwrites the key with the full history.
func (a *Adapter) Save(ctx context.Context, h chat.History) error {
	if h == nil {
		h = chat.History{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if err := a.backend.Put(ctx, a.key, b); err != nil {
		return fmt.Errorf("write %s: %w", a.key, err)
	}
	return nil
}

func (a *Adapter) Close() error { return a.backend.Close() }

// Decode parses stored history, treating anything malformed as empty.
// A later Save repairs the stored value.
func Decode(raw []byte) chat.History {
	var h chat.History
	if err := json.Unmarshal(raw, &h); err != nil {
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("stored history is malformed, starting empty")
		return chat.History{}
	}
	if h == nil {
		return chat.History{}
	}
	return h
}
