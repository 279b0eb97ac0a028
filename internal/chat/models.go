package chat

import (
	"context"
	"time"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func (s Sender) Valid() bool { return s == SenderUser || s == SenderAI }

// Message is immutable once appended to a conversation.
type Message struct {
	Sender    Sender    `json:"sender"`
	Query     string    `json:"query"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

// History is stored in creation order and displayed newest first.
type History []Conversation

// Clone returns a deep copy so callers never share message storage with the manager.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	for i, c := range h {
		out[i] = c.clone()
	}
	return out
}

func (c Conversation) clone() Conversation {
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}

// Store persists the full History under a single key.
type Store interface {
	Load(ctx context.Context) (History, error)
	Save(ctx context.Context, h History) error
}
