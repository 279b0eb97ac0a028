package controller

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/rag"
	"github.com/suPer8Hu/ragview/internal/store"
	"github.com/suPer8Hu/ragview/internal/transcript"
)

const (
	timeoutShort = 2 * time.Second
	tick         = 5 * time.Millisecond
)

type fakeGateway struct {
	mu sync.Mutex

	askResult  rag.Result
	urlResult  rag.Result
	fileResult rag.Result

	asks     []string
	askConv  []string
	urls     []string
	files    []string
	fileBody []string

	// block, when set, holds Ask until closed
	block chan struct{}
}

func (g *fakeGateway) Ask(ctx context.Context, query, conversationID string) rag.Result {
	_ = ctx
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asks = append(g.asks, query)
	g.askConv = append(g.askConv, conversationID)
	return g.askResult
}

func (g *fakeGateway) IngestURL(ctx context.Context, url string) rag.Result {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	g.urls = append(g.urls, url)
	return g.urlResult
}

func (g *fakeGateway) IngestFile(ctx context.Context, name string, r io.Reader) rag.Result {
	_ = ctx
	b, _ := io.ReadAll(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files = append(g.files, name)
	g.fileBody = append(g.fileBody, string(b))
	return g.fileResult
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.asks) + len(g.urls) + len(g.files)
}

type fakeEnqueuer struct {
	conv, url string
	err       error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, conversationID, url string) (*chat.IngestJob, error) {
	_ = ctx
	if e.err != nil {
		return nil, e.err
	}
	e.conv, e.url = conversationID, url
	return &chat.IngestJob{ID: "01JOBQUEUED000000000000000", URL: url, Status: chat.JobQueued}, nil
}

type harness struct {
	ctl   *Controller
	gw    *fakeGateway
	hist  *chat.Manager
	store *store.Adapter
	view  *transcript.Buffer
	board *Board
	yes   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gw:    &fakeGateway{askResult: rag.Result{Success: true, Answer: "42"}},
		store: store.NewAdapter(store.NewMemory(), store.DefaultKey),
		view:  transcript.NewBuffer(),
		board: NewBoard(),
	}
	var err error
	h.hist, err = chat.Open(context.Background(), h.store, chat.Options{ReloadCount: 1})
	require.NoError(t, err)
	h.ctl = New(h.gw, h.hist, h.view, h.board, func(string) bool { return h.yes }, Settings{MaxInputRows: 4})
	h.ctl.Start()
	return h
}

func (h *harness) stored(t *testing.T) chat.History {
	t.Helper()
	got, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return got
}

func TestStart_RendersGreeting(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []transcript.Bubble{{Sender: chat.SenderAI, Content: chat.DefaultGreeting}}, h.view.Bubbles())
	assert.Equal(t, 1, h.board.View().InputRows)
}

func TestAsk_Success(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctl.Ask(context.Background(), "  what is the answer?  "))

	require.Equal(t, []string{"what is the answer?"}, h.gw.asks)
	assert.Equal(t, h.hist.ActiveID(), h.gw.askConv[0], "ask carries the registered conversation id")
	assert.NotEmpty(t, h.gw.askConv[0])

	bubbles := h.view.Bubbles()
	require.Len(t, bubbles, 3)
	assert.Equal(t, transcript.Bubble{Sender: chat.SenderUser, Content: "<p>what is the answer?</p>"}, bubbles[1])
	assert.Equal(t, transcript.Bubble{Sender: chat.SenderAI, Content: "<p>42</p>"}, bubbles[2])

	hist := h.stored(t)
	require.Len(t, hist, 1)
	assert.Equal(t, "what is the answer?", hist[0].Title)
	assert.Len(t, hist[0].Messages, 3)

	v := h.board.View()
	assert.False(t, v.Busy)
	require.NotNil(t, v.Status)
	assert.Equal(t, "Answer generated!", v.Status.Text)
	assert.True(t, v.FeedbackShown)
	assert.Equal(t, 1, h.board.Cleared(FieldQuery))
	require.Len(t, v.Conversations, 1)
	assert.True(t, v.Conversations[0].Selected)
	assert.False(t, h.ctl.Busy())
}

func TestAsk_EmptyInput(t *testing.T) {
	h := newHarness(t)

	err := h.ctl.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, h.gw.calls())
	assert.Equal(t, 1, h.view.Len())
	assert.Empty(t, h.stored(t))

	v := h.board.View()
	require.NotNil(t, v.Status)
	assert.Equal(t, "Please enter a message to send.", v.Status.Text)
	assert.False(t, h.ctl.Busy())
}

func TestAsk_GreetingShortCircuit(t *testing.T) {
	for _, q := range []string{"hii", "HII", "Hii"} {
		t.Run(q, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.ctl.Ask(context.Background(), q))

			assert.Zero(t, h.gw.calls())
			bubbles := h.view.Bubbles()
			require.Len(t, bubbles, 3)
			assert.Equal(t, transcript.Bubble{Sender: chat.SenderAI, Content: "<p>hey</p>"}, bubbles[2])

			hist := h.stored(t)
			require.Len(t, hist, 1)
			last := hist[0].Messages[len(hist[0].Messages)-1]
			assert.Equal(t, chat.SenderAI, last.Sender)
			assert.Equal(t, "<p>hey</p>", last.Content)
			assert.Equal(t, "Auto-replied!", h.board.View().Status.Text)
		})
	}
}

func TestAsk_BackendFailure(t *testing.T) {
	h := newHarness(t)
	h.gw.askResult = rag.Result{Success: false, Message: "timeout"}

	err := h.ctl.Ask(context.Background(), "slow question")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "timeout", be.Message)

	bubbles := h.view.Bubbles()
	require.Len(t, bubbles, 3)
	errorBubbles := 0
	for _, b := range bubbles {
		if b.Sender == chat.SenderAI && strings.Contains(b.Content, "Error") {
			errorBubbles++
			assert.Contains(t, b.Content, "timeout")
		}
	}
	assert.Equal(t, 1, errorBubbles)

	v := h.board.View()
	require.NotNil(t, v.Status)
	assert.Equal(t, NoticeError, v.Status.Kind)
	assert.Equal(t, "Error: timeout", v.Status.Text)
	assert.False(t, v.Busy)
	assert.False(t, v.FeedbackShown)
	assert.False(t, h.ctl.Busy())

	// the error bubble is display only
	hist := h.stored(t)
	require.Len(t, hist, 1)
	assert.Len(t, hist[0].Messages, 2)
}

func TestAsk_EscapesHTML(t *testing.T) {
	h := newHarness(t)
	h.gw.askResult = rag.Result{Success: true, Answer: "<b>bold</b>"}

	require.NoError(t, h.ctl.Ask(context.Background(), "<script>x</script>"))
	bubbles := h.view.Bubbles()
	assert.Equal(t, "<p>&lt;script&gt;x&lt;/script&gt;</p>", bubbles[1].Content)
	assert.Equal(t, "<p>&lt;b&gt;bold&lt;/b&gt;</p>", bubbles[2].Content)
}

func TestAsk_BusyRejectsOverlap(t *testing.T) {
	h := newHarness(t)
	h.gw.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctl.Ask(context.Background(), "first") }()

	require.Eventually(t, h.ctl.Busy, timeoutShort, tick)
	assert.ErrorIs(t, h.ctl.Ask(context.Background(), "second"), ErrBusy)
	assert.ErrorIs(t, h.ctl.IngestURL(context.Background(), "https://x"), ErrBusy)
	assert.ErrorIs(t, h.ctl.NewChat(), ErrBusy)

	close(h.gw.block)
	require.NoError(t, <-done)
	assert.False(t, h.ctl.Busy())
}

func TestIngestURL(t *testing.T) {
	h := newHarness(t)
	h.gw.urlResult = rag.Result{Success: true, Message: "File processed successfully!"}

	require.NoError(t, h.ctl.IngestURL(context.Background(), " https://go.dev/doc "))
	assert.Equal(t, []string{"https://go.dev/doc"}, h.gw.urls)

	hist := h.stored(t)
	require.Len(t, hist, 1)
	msgs := hist[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "Ingest URL: https://go.dev/doc", msgs[1].Query)
	assert.Contains(t, msgs[1].Content, `<a href="https://go.dev/doc" target="_blank">`)
	assert.Equal(t, "URL Ingestion Success: https://go.dev/doc", msgs[2].Query)
	assert.Equal(t, "<p>File processed successfully!</p>", msgs[2].Content)
	assert.Equal(t, "Ingest URL: https://go.dev/doc", hist[0].Title)

	v := h.board.View()
	assert.Equal(t, "URL processed!", v.Status.Text)
	assert.Equal(t, 1, h.board.Cleared(FieldURL))
}

func TestIngestURL_EmptyAndFailure(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctl.IngestURL(context.Background(), ""), ErrEmptyInput)
	assert.Zero(t, h.gw.calls())
	assert.Equal(t, "Please enter a URL to process.", h.board.View().Status.Text)

	h.gw.urlResult = rag.Result{Message: "Failed to process URL: Empty page."}
	var be *BackendError
	require.ErrorAs(t, h.ctl.IngestURL(context.Background(), "https://x"), &be)
	assert.Equal(t, NoticeError, h.board.View().Status.Kind)
	assert.False(t, h.board.View().Busy)
}

func TestIngestFile(t *testing.T) {
	h := newHarness(t)
	h.gw.fileResult = rag.Result{Success: true, Message: "File processed successfully!"}

	up := &Upload{Name: "resume.pdf", Size: 3 * 1024 * 1024 / 2, Body: strings.NewReader("%PDF")}
	require.NoError(t, h.ctl.IngestFile(context.Background(), up))

	assert.Equal(t, []string{"resume.pdf"}, h.gw.files)
	assert.Equal(t, []string{"%PDF"}, h.gw.fileBody)

	msgs := h.stored(t)[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "<p>Ingesting file: resume.pdf (1.50 MB)</p>", msgs[1].Content)
	assert.Equal(t, "Ingest File: resume.pdf", msgs[1].Query)
	assert.Equal(t, "File Ingestion Success: resume.pdf", msgs[2].Query)
	assert.Equal(t, "File processed successfully!", h.board.View().Status.Text)
	assert.Equal(t, 1, h.board.Cleared(FieldFile))
}

func TestIngestFile_NoFileSelected(t *testing.T) {
	for name, up := range map[string]*Upload{
		"nil":     nil,
		"no name": {Body: strings.NewReader("x")},
		"no body": {Name: "a.pdf"},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			pending := h.hist.PendingID()

			err := h.ctl.IngestFile(context.Background(), up)
			assert.ErrorIs(t, err, ErrNoFile)
			assert.Zero(t, h.gw.calls())

			v := h.board.View()
			require.NotNil(t, v.Status)
			assert.Equal(t, NoticeError, v.Status.Kind)
			assert.Contains(t, v.Status.Text, "Please select a file to upload.")
			assert.False(t, v.Busy, "controls are re-enabled")
			assert.False(t, h.ctl.Busy())

			assert.Empty(t, h.stored(t), "nothing is recorded")
			assert.Equal(t, []transcript.Bubble{{Sender: chat.SenderAI, Content: chat.DefaultGreeting}},
				h.view.Bubbles(), "no bubble is rendered")
			assert.Equal(t, pending, h.hist.PendingID(), "no id is allocated")
		})
	}
}

func TestIngestURLAsync(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.IngestURLAsync(context.Background(), "https://x")
	assert.ErrorIs(t, err, ErrAsyncDisabled)

	enq := &fakeEnqueuer{}
	h.ctl.WithEnqueuer(enq)
	job, err := h.ctl.IngestURLAsync(context.Background(), "https://go.dev")
	require.NoError(t, err)
	assert.Equal(t, chat.JobQueued, job.Status)
	assert.Equal(t, "https://go.dev", enq.url)
	assert.Equal(t, h.hist.ActiveID(), enq.conv)
	assert.Zero(t, h.gw.calls())

	msgs := h.stored(t)[0].Messages
	assert.Contains(t, msgs[len(msgs)-1].Content, job.ID)
}

func TestNewChatAndLoadConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctl.Ask(ctx, "first"))
	first := h.hist.ActiveID()

	require.NoError(t, h.ctl.NewChat())
	assert.Equal(t, chat.NoActiveConversation, h.hist.State())
	assert.Equal(t, []transcript.Bubble{{Sender: chat.SenderAI, Content: chat.DefaultGreeting}}, h.view.Bubbles())
	v := h.board.View()
	assert.Nil(t, v.Status)
	assert.False(t, v.FeedbackShown)
	for _, e := range v.Conversations {
		assert.False(t, e.Selected)
	}

	found, err := h.ctl.LoadConversation(first)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, h.view.Len())
	assert.True(t, h.board.View().Conversations[0].Selected)

	found, err = h.ctl.LoadConversation("stale-id")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, chat.NoActiveConversation, h.hist.State())
	assert.Equal(t, 1, h.view.Len())
}

func TestClearHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctl.Ask(ctx, "keep me"))

	h.yes = false
	assert.ErrorIs(t, h.ctl.ClearHistory(ctx), ErrNotConfirmed)
	assert.Len(t, h.stored(t), 1)

	h.yes = true
	require.NoError(t, h.ctl.ClearHistory(ctx))
	assert.Empty(t, h.stored(t))
	assert.Equal(t, 0, h.hist.Len())
	assert.Equal(t, chat.NoActiveConversation, h.hist.State())
	assert.Equal(t, []transcript.Bubble{{Sender: chat.SenderAI, Content: chat.DefaultGreeting}}, h.view.Bubbles())
	v := h.board.View()
	assert.Empty(t, v.Conversations)
	assert.Equal(t, "All chat history cleared.", v.Status.Text)
}

func TestFeedback(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.Ask(context.Background(), "q"))

	msg, err := h.ctl.Feedback("like")
	require.NoError(t, err)
	assert.Equal(t, "Thanks for your feedback: like!", msg)
	assert.Equal(t, "like", h.ctl.SelectedFeedback())

	_, err = h.ctl.Feedback("Dislike")
	require.NoError(t, err)
	assert.Equal(t, "dislike", h.ctl.SelectedFeedback())

	_, err = h.ctl.Feedback("meh")
	assert.ErrorIs(t, err, ErrBadFeedback)
	assert.Equal(t, "dislike", h.ctl.SelectedFeedback())

	require.NoError(t, h.ctl.NewChat())
	assert.Equal(t, "", h.ctl.SelectedFeedback())
}

func TestAutosize(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1, h.ctl.Autosize(""))
	assert.Equal(t, 3, h.ctl.Autosize("a\nb\nc"))
	assert.Equal(t, 4, h.ctl.Autosize(strings.Repeat("x\n", 10)))

	h.ctl.InputChanged("a\nb")
	assert.Equal(t, 2, h.board.View().InputRows)
}

func TestSizeMB(t *testing.T) {
	assert.Equal(t, "0.00", SizeMB(0))
	assert.Equal(t, "1.00", SizeMB(1024*1024))
	assert.Equal(t, "0.50", SizeMB(512*1024))
}
