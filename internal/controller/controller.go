package controller

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/rag"
	"github.com/suPer8Hu/ragview/internal/transcript"
)

var (
	ErrBusy          = errors.New("another request is in progress")
	ErrEmptyInput    = errors.New("input is empty")
	ErrNoFile        = errors.New("no file selected")
	ErrNotConfirmed  = errors.New("not confirmed")
	ErrBadFeedback   = errors.New("feedback must be like or dislike")
	ErrAsyncDisabled = errors.New("async ingestion is not configured")
)

// BackendError carries the gateway's failure message.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return e.Message }

const (
	msgEnterMessage = "Please enter a message to send."
	msgEnterURL     = "Please enter a URL to process."
	msgSelectFile   = "Please select a file to upload."
	msgConfirmClear = "Are you sure you want to clear all your past chats? This action cannot be undone."
	msgProcessing   = "Processing your request..."
)

type Gateway interface {
	Ask(ctx context.Context, query, conversationID string) rag.Result
	IngestURL(ctx context.Context, url string) rag.Result
	IngestFile(ctx context.Context, name string, r io.Reader) rag.Result
}

// History is the subset of *chat.Manager the controller drives.
type History interface {
	StartNewChat()
	LoadConversation(id string) bool
	Append(ctx context.Context, sender chat.Sender, query, content string) (chat.Message, error)
	ClearAll(ctx context.Context) error
	Transcript() []chat.Message
	ConversationID() string
	Entries() []chat.Entry
}

// Enqueuer hands URL ingestion to the background worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, conversationID, url string) (*chat.IngestJob, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer func(prompt string) bool

// Upload is a file picked for ingestion.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

type Settings struct {
	GreetingTrigger string
	GreetingReply   string
	MaxInputRows    int
}

func (s *Settings) defaults() {
	s.GreetingTrigger = strings.ToLower(strings.TrimSpace(s.GreetingTrigger))
	if s.GreetingTrigger == "" {
		s.GreetingTrigger = "hii"
	}
	if s.GreetingReply == "" {
		s.GreetingReply = "hey"
	}
	if s.MaxInputRows <= 0 {
		s.MaxInputRows = 6
	}
}

// Controller runs the chat flows. At most one flow runs at a time; overlapping
// calls get ErrBusy, the same way the UI disables its controls while busy.
type Controller struct {
	gw      Gateway
	hist    History
	view    transcript.Renderer
	ui      Surface
	confirm Confirmer
	jobs    Enqueuer
	cfg     Settings

	busy      atomic.Bool
	lastQuery string
	feedback  string
}

func New(gw Gateway, hist History, view transcript.Renderer, ui Surface, confirm Confirmer, cfg Settings) *Controller {
	cfg.defaults()
	return &Controller{gw: gw, hist: hist, view: view, ui: ui, confirm: confirm, cfg: cfg}
}

// WithEnqueuer enables IngestURLAsync.
func (c *Controller) WithEnqueuer(e Enqueuer) *Controller {
	c.jobs = e
	return c
}

// Start draws the current transcript and history list.
func (c *Controller) Start() {
	transcript.Replay(c.view, c.hist.Transcript())
	c.ui.RenderHistory(c.hist.Entries())
	c.ui.ResizeInput(c.Autosize(""))
}

func (c *Controller) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (c *Controller) release() { c.busy.Store(false) }

func (c *Controller) Busy() bool { return c.busy.Load() }

// Ask sends a question to the RAG service and records both sides.
func (c *Controller) Ask(ctx context.Context, raw string) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	query := strings.TrimSpace(raw)
	if query == "" {
		c.ui.ShowStatus(Notice{Kind: NoticeInfo, Text: msgEnterMessage})
		return ErrEmptyInput
	}
	c.lastQuery = query
	c.feedback = ""

	c.say(ctx, chat.SenderUser, query, paragraph(query))

	c.ui.ShowLoading(msgProcessing)
	defer func() {
		c.ui.HideLoading()
		c.ui.ClearInput(FieldQuery)
		c.ui.ResizeInput(c.Autosize(""))
	}()

	if strings.ToLower(query) == c.cfg.GreetingTrigger {
		c.say(ctx, chat.SenderAI, query, paragraph(c.cfg.GreetingReply))
		c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: "Auto-replied!"})
		return nil
	}

	res := c.gw.Ask(ctx, query, c.hist.ConversationID())
	if !res.Success {
		return c.fail(res.Message)
	}
	c.say(ctx, chat.SenderAI, query, paragraph(res.Answer))
	c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: "Answer generated!"})
	c.ui.ShowFeedback(true)
	return nil
}

// IngestURL submits a URL to the retrieval corpus.
func (c *Controller) IngestURL(ctx context.Context, raw string) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	url := strings.TrimSpace(raw)
	if url == "" {
		c.ui.ShowStatus(Notice{Kind: NoticeInfo, Text: msgEnterURL})
		return ErrEmptyInput
	}

	c.ui.ShowLoading(fmt.Sprintf("Processing URL: %s... This may take a moment.", url))
	defer func() {
		c.ui.HideLoading()
		c.ui.ClearInput(FieldURL)
	}()

	c.say(ctx, chat.SenderUser, "Ingest URL: "+url, "<p>Ingesting URL: "+link(url)+"</p>")

	res := c.gw.IngestURL(ctx, url)
	if !res.Success {
		return c.fail(res.Message)
	}
	c.say(ctx, chat.SenderAI, "URL Ingestion Success: "+url, paragraph(res.Message))
	c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: "URL processed!"})
	return nil
}

// IngestURLAsync queues the URL for the ingestion worker instead of waiting.
func (c *Controller) IngestURLAsync(ctx context.Context, raw string) (*chat.IngestJob, error) {
	if c.jobs == nil {
		return nil, ErrAsyncDisabled
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	url := strings.TrimSpace(raw)
	if url == "" {
		c.ui.ShowStatus(Notice{Kind: NoticeInfo, Text: msgEnterURL})
		return nil, ErrEmptyInput
	}
	defer c.ui.ClearInput(FieldURL)

	c.say(ctx, chat.SenderUser, "Ingest URL (queued): "+url, "<p>Queueing URL: "+link(url)+"</p>")

	job, err := c.jobs.Enqueue(ctx, c.hist.ConversationID(), url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("enqueue ingestion failed")
		return nil, c.fail("Failed to queue URL: " + err.Error())
	}
	c.say(ctx, chat.SenderAI, "URL Ingestion Queued: "+url,
		paragraph(fmt.Sprintf("Queued ingestion job %s.", job.ID)))
	c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: "URL queued!"})
	return job, nil
}

// IngestFile uploads a file. The selection is validated before anything is
// recorded or sent.
func (c *Controller) IngestFile(ctx context.Context, f *Upload) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if f == nil || strings.TrimSpace(f.Name) == "" || f.Body == nil {
		// validation errors stay out of the transcript
		c.ui.ShowStatus(Notice{Kind: NoticeError, Text: "Error: " + msgSelectFile})
		c.ui.HideLoading()
		return ErrNoFile
	}

	c.ui.ShowLoading(fmt.Sprintf("Uploading and processing file: %s... This may take a while for large files.", f.Name))
	defer func() {
		c.ui.HideLoading()
		c.ui.ClearInput(FieldFile)
	}()

	c.say(ctx, chat.SenderUser, "Ingest File: "+f.Name,
		paragraph(fmt.Sprintf("Ingesting file: %s (%s MB)", f.Name, SizeMB(f.Size))))

	res := c.gw.IngestFile(ctx, f.Name, f.Body)
	if !res.Success {
		return c.fail(res.Message)
	}
	c.say(ctx, chat.SenderAI, "File Ingestion Success: "+f.Name, paragraph(res.Message))
	status := res.Message
	if status == "" {
		status = "File processed!"
	}
	c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: status})
	return nil
}

// NewChat resets the transcript to a fresh, greeting-seeded chat.
func (c *Controller) NewChat() error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	c.hist.StartNewChat()
	c.resetView()
	return nil
}

// LoadConversation shows a stored conversation. Unknown ids start a new chat.
func (c *Controller) LoadConversation(id string) (bool, error) {
	if err := c.acquire(); err != nil {
		return false, err
	}
	defer c.release()

	found := c.hist.LoadConversation(id)
	c.resetView()
	return found, nil
}

// ClearHistory wipes all conversations once the user confirms.
func (c *Controller) ClearHistory(ctx context.Context) error {
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	if c.confirm == nil || !c.confirm(msgConfirmClear) {
		return ErrNotConfirmed
	}
	err := c.hist.ClearAll(ctx)
	c.resetView()
	if err != nil {
		log.Error().Err(err).Msg("clear history: save failed")
		c.ui.ShowStatus(Notice{Kind: NoticeError, Text: "Error: could not save cleared history."})
		return err
	}
	c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: "All chat history cleared."})
	return nil
}

// Feedback records a like or dislike for the last answer. Only one is selected
// at a time and nothing leaves this process.
func (c *Controller) Feedback(kind string) (string, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "like" && kind != "dislike" {
		return "", ErrBadFeedback
	}
	c.feedback = kind
	log.Info().Str("feedback", kind).Str("query", c.lastQuery).Msg("user feedback")
	msg := fmt.Sprintf("Thanks for your feedback: %s!", kind)
	c.ui.ShowStatus(Notice{Kind: NoticeSuccess, Text: msg})
	return msg, nil
}

// SelectedFeedback is "", "like" or "dislike".
func (c *Controller) SelectedFeedback() string { return c.feedback }

// InputChanged re-sizes the input box for the current text.
func (c *Controller) InputChanged(text string) {
	c.ui.ResizeInput(c.Autosize(text))
}

// Autosize returns the input height in rows, capped at MaxInputRows.
func (c *Controller) Autosize(text string) int {
	rows := strings.Count(text, "\n") + 1
	if rows > c.cfg.MaxInputRows {
		return c.cfg.MaxInputRows
	}
	return rows
}

func (c *Controller) resetView() {
	c.feedback = ""
	transcript.Replay(c.view, c.hist.Transcript())
	c.ui.ClearInput(FieldAll)
	c.ui.HideStatus()
	c.ui.ShowFeedback(false)
	c.ui.RenderHistory(c.hist.Entries())
}

// say renders and records one message. A failed save is logged; the
// in-memory transcript already has the message.
func (c *Controller) say(ctx context.Context, sender chat.Sender, query, content string) {
	c.view.Append(sender, content)
	if _, err := c.hist.Append(ctx, sender, query, content); err != nil {
		log.Error().Err(err).Str("conversation_id", c.hist.ConversationID()).Msg("record message failed")
	}
	c.ui.RenderHistory(c.hist.Entries())
}

// fail shows an inline error bubble and the status message. The bubble is not
// recorded in the history.
func (c *Controller) fail(message string) error {
	c.view.Append(chat.SenderAI, `<p class="error">Error: `+html.EscapeString(message)+`</p>`)
	c.ui.ShowStatus(Notice{Kind: NoticeError, Text: "Error: " + message})
	c.ui.ShowFeedback(false)
	return &BackendError{Message: message}
}

func paragraph(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}

func link(url string) string {
	u := html.EscapeString(url)
	return `<a href="` + u + `" target="_blank">` + u + `</a>`
}

// SizeMB formats a byte count in megabytes with two decimals.
func SizeMB(n int64) string {
	return fmt.Sprintf("%.2f", float64(n)/1024/1024)
}
