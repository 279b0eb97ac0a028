package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/common"
	"github.com/suPer8Hu/ragview/internal/controller"
	"gorm.io/gorm"
)

type ingestURLReq struct {
	URL string `json:"url"`
}

func (h *Handler) IngestURL(c *gin.Context) {
	var req ingestURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Ctl.IngestURL(c.Request.Context(), req.URL); err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, h.snapshot())
}

// IngestFile takes the multipart field "file". A missing file is reported
// through the controller so the UI shows the same message.
func (h *Handler) IngestFile(c *gin.Context) {
	var up *controller.Upload
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10003, "cannot read uploaded file")
			return
		}
		defer f.Close()
		up = &controller.Upload{Name: fh.Filename, Size: fh.Size, Body: f}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.Ctl.IngestFile(c.Request.Context(), up); err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, h.snapshot())
}

func (h *Handler) IngestURLAsync(c *gin.Context) {
	var req ingestURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	job, err := h.Ctl.IngestURLAsync(c.Request.Context(), req.URL)
	if err != nil {
		h.failFlow(c, err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetIngestJob(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async ingestion is not configured")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.Jobs.Job(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		log.Error().Err(err).Str("job_id", jobID).Msg("get job failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":              j.ID,
			"conversation_id": j.ConversationID,
			"url":             j.URL,
			"status":          j.Status,
			"result":          j.Result,
			"error":           j.Error,
			"attempts":        j.Attempts,
			"created_at":      j.CreatedAt,
			"updated_at":      j.UpdatedAt,
		},
	})
}
