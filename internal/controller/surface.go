package controller

import (
	"sync"
	"time"

	"github.com/suPer8Hu/ragview/internal/chat"
)

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

type Field int

const (
	FieldQuery Field = iota
	FieldURL
	FieldFile
	FieldAll
)

// Surface is the status area, input controls and history list of a binding.
type Surface interface {
	// ShowLoading disables every submission control and shows msg.
	ShowLoading(msg string)
	HideLoading()
	ShowStatus(n Notice)
	HideStatus()
	ShowFeedback(visible bool)
	ClearInput(f Field)
	ResizeInput(rows int)
	RenderHistory(entries []chat.Entry)
}

// Board is a Surface that only remembers the latest UI state. The HTTP
// binding serves it to the browser.
type Board struct {
	mu sync.RWMutex

	now      func() time.Time
	view     BoardView
	inputGen map[Field]int
}

type BoardView struct {
	Busy          bool         `json:"busy"`
	Loading       string       `json:"loading,omitempty"`
	Status        *Notice      `json:"status,omitempty"`
	StatusAt      time.Time    `json:"status_at"`
	FeedbackShown bool         `json:"feedback_visible"`
	InputRows     int          `json:"input_rows"`
	Conversations []chat.Entry `json:"conversations"`
}

// NoticeTTL is how long a status notice stays visible.
const NoticeTTL = 20 * time.Second

func NewBoard() *Board {
	return &Board{now: time.Now, inputGen: make(map[Field]int)}
}

func (b *Board) ShowLoading(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.Busy = true
	b.view.Loading = msg
	b.view.FeedbackShown = false
}

func (b *Board) HideLoading() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.Busy = false
	b.view.Loading = ""
}

func (b *Board) ShowStatus(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.Status = &n
	b.view.StatusAt = b.now()
}

func (b *Board) HideStatus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.Status = nil
}

func (b *Board) ShowFeedback(visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.FeedbackShown = visible
}

func (b *Board) ClearInput(f Field) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputGen[f]++
}

func (b *Board) ResizeInput(rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.InputRows = rows
}

func (b *Board) RenderHistory(entries []chat.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view.Conversations = append([]chat.Entry(nil), entries...)
}

// View returns the current state. Notices older than NoticeTTL are dropped.
func (b *Board) View() BoardView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v := b.view
	v.Conversations = append([]chat.Entry(nil), b.view.Conversations...)
	if v.Status != nil {
		n := *v.Status
		v.Status = &n
		if b.now().Sub(v.StatusAt) > NoticeTTL {
			v.Status = nil
		}
	}
	return v
}

// Cleared reports how many times field f was cleared.
func (b *Board) Cleared(f Field) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inputGen[f]
}
