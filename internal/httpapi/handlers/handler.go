package handlers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/common"
	"github.com/suPer8Hu/ragview/internal/controller"
	"github.com/suPer8Hu/ragview/internal/httpapi/middleware"
	"github.com/suPer8Hu/ragview/internal/ingest"
	"github.com/suPer8Hu/ragview/internal/transcript"
)

// Handler serves a single chat session to a browser. Every request that
// touches the controller holds mu, so flows never overlap.
type Handler struct {
	mu sync.Mutex

	Ctl   *controller.Controller
	Hist  *chat.Manager
	View  *transcript.Buffer
	Board *controller.Board
	Jobs  *ingest.Service

	// confirmed answers the controller's confirmation prompt for the
	// request in flight
	confirmed bool
}

// NewHandler builds the session. jobs may be nil, which disables the async
// ingestion routes.
func NewHandler(gw controller.Gateway, hist *chat.Manager, jobs *ingest.Service, cfg controller.Settings) *Handler {
	h := &Handler{
		Hist:  hist,
		View:  transcript.NewBuffer(),
		Board: controller.NewBoard(),
		Jobs:  jobs,
	}
	h.Ctl = controller.New(gw, hist, h.View, h.Board, func(string) bool { return h.confirmed }, cfg)
	if jobs != nil {
		h.Ctl.WithEnqueuer(jobs)
	}
	h.Ctl.Start()
	return h
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

type stateResp struct {
	ConversationID string               `json:"conversation_id"`
	Active         bool                 `json:"active"`
	Feedback       string               `json:"feedback"`
	Transcript     []transcript.Bubble  `json:"transcript"`
	UI             controller.BoardView `json:"ui"`
}

// snapshot must be called with mu held.
func (h *Handler) snapshot() stateResp {
	return stateResp{
		ConversationID: h.Hist.ConversationID(),
		Active:         h.Hist.State() == chat.ActiveConversation,
		Feedback:       h.Ctl.SelectedFeedback(),
		Transcript:     h.View.Bubbles(),
		UI:             h.Board.View(),
	}
}

func (h *Handler) State(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	common.OK(c, h.snapshot())
}

// failFlow maps controller errors onto the response envelope.
func (h *Handler) failFlow(c *gin.Context, err error) {
	var be *controller.BackendError
	switch {
	case errors.Is(err, controller.ErrBusy):
		common.Fail(c, http.StatusConflict, 40901, "another request is in progress")
	case errors.Is(err, controller.ErrEmptyInput):
		common.Fail(c, http.StatusBadRequest, 10002, "input is empty")
	case errors.Is(err, controller.ErrNoFile):
		common.Fail(c, http.StatusBadRequest, 10003, "Please select a file to upload.")
	case errors.Is(err, controller.ErrNotConfirmed):
		common.Fail(c, http.StatusBadRequest, 10004, "confirmation required")
	case errors.Is(err, controller.ErrBadFeedback):
		common.Fail(c, http.StatusBadRequest, 10005, "feedback must be like or dislike")
	case errors.Is(err, controller.ErrAsyncDisabled):
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async ingestion is not configured")
	case errors.As(err, &be):
		common.Fail(c, http.StatusBadGateway, 50201, be.Message)
	default:
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("flow failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
