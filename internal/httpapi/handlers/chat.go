package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ragview/internal/common"
)

func (h *Handler) ListConversations(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	common.OK(c, gin.H{"conversations": h.Hist.Entries()})
}

func (h *Handler) NewConversation(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Ctl.NewChat(); err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, h.snapshot())
}

// LoadConversation switches to a stored conversation. An unknown id starts a
// new chat and answers 404.
func (h *Handler) LoadConversation(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	found, err := h.Ctl.LoadConversation(c.Param("id"))
	if err != nil {
		h.failFlow(c, err)
		return
	}
	if !found {
		common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
		return
	}
	common.OK(c, h.snapshot())
}

func (h *Handler) ClearConversations(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))

	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirmed = confirm
	defer func() { h.confirmed = false }()

	if err := h.Ctl.ClearHistory(c.Request.Context()); err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, h.snapshot())
}

type sendMessageReq struct {
	Message string `json:"message"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Ctl.Ask(c.Request.Context(), req.Message); err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, h.snapshot())
}

type feedbackReq struct {
	Kind string `json:"kind" binding:"required"`
}

func (h *Handler) Feedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	msg, err := h.Ctl.Feedback(req.Kind)
	if err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, gin.H{"message": msg, "feedback": h.Ctl.SelectedFeedback()})
}
