package transcript

import (
	"sync"

	"github.com/suPer8Hu/ragview/internal/chat"
)

type Bubble struct {
	Sender  chat.Sender `json:"sender"`
	Content string      `json:"content"`
}

// Buffer keeps the visible transcript in memory.
type Buffer struct {
	mu      sync.RWMutex
	bubbles []Bubble
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) Append(sender chat.Sender, content string) {
	b.mu.Lock()
	b.bubbles = append(b.bubbles, Bubble{Sender: sender, Content: content})
	b.mu.Unlock()
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	b.bubbles = nil
	b.mu.Unlock()
}

func (b *Buffer) Bubbles() []Bubble {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Bubble(nil), b.bubbles...)
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bubbles)
}
