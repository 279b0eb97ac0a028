package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	askPath        = "/rag"
	ingestURLPath  = "/ingest_url"
	ingestFilePath = "/ingest_file"

	FallbackAnswer   = "No specific answer found based on provided context."
	URLIngestedMsg   = "URL processed successfully!"
	FileIngestedMsg  = "File processed successfully!"
	maxErrorBodySize = 4 * 1024
)

// Result is the normalized outcome of every gateway call. Callers never get an error.
type Result struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client talks to the RAG service.
type Client struct {
	BaseURL string
	http    *resty.Client
}

// NewClient builds a client. A zero timeout keeps the transport default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	return &Client{BaseURL: baseURL, http: rc}
}

type askReq struct {
	Query          string  `json:"query"`
	ConversationID *string `json:"conversation_id"`
}

type askResp struct {
	Answer string `json:"answer"`
}

type ingestURLReq struct {
	URL string `json:"url"`
}

type messageResp struct {
	Message string `json:"message"`
}

// errorBody covers the shapes the backend uses to report failures.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Ask sends the query with the active conversation id, null when there is none.
func (c *Client) Ask(ctx context.Context, query, conversationID string) Result {
	body := askReq{Query: query}
	if conversationID != "" {
		body.ConversationID = &conversationID
	}

	var out askResp
	reason, ok := c.post(ctx, askPath, c.http.R().SetBody(body), &out)
	if !ok {
		if reason == "" {
			reason = "Failed to get RAG response from backend."
		}
		return Result{Message: fmt.Sprintf("Could not connect to RAG service or an error occurred: %s. Please ensure the backend is running.", reason)}
	}

	answer := out.Answer
	if answer == "" {
		answer = FallbackAnswer
	}
	return Result{Success: true, Answer: answer}
}

func (c *Client) IngestURL(ctx context.Context, url string) Result {
	var out messageResp
	reason, ok := c.post(ctx, ingestURLPath, c.http.R().SetBody(ingestURLReq{URL: url}), &out)
	if !ok {
		if reason == "" {
			reason = "Failed to ingest URL from backend."
		}
		return Result{Message: fmt.Sprintf("Failed to process URL: %s. Please ensure the URL is valid and accessible by the backend.", reason)}
	}
	msg := out.Message
	if msg == "" {
		msg = URLIngestedMsg
	}
	return Result{Success: true, Message: msg}
}

// IngestFile uploads r as multipart field "file". The content type, including
// the boundary, is left to the transport.
func (c *Client) IngestFile(ctx context.Context, name string, r io.Reader) Result {
	var out messageResp
	reason, ok := c.post(ctx, ingestFilePath, c.http.R().SetFileReader("file", name, r), &out)
	if !ok {
		if reason == "" {
			reason = "Failed to ingest file from backend."
		}
		return Result{Message: fmt.Sprintf("Failed to process file: %s. Please ensure the file is valid and supported (.pdf, .docx, .json, .txt).", reason)}
	}
	msg := out.Message
	if msg == "" {
		msg = FileIngestedMsg
	}
	return Result{Success: true, Message: msg}
}

// post executes req and decodes a 2xx body into out. On failure it returns a
// human readable reason, empty when none could be extracted.
func (c *Client) post(ctx context.Context, path string, req *resty.Request, out any) (string, bool) {
	start := time.Now()
	resp, err := req.SetContext(ctx).Post(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Dur("cost", time.Since(start)).Msg("rag request failed")
		return err.Error(), false
	}

	body := resp.Body()
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		reason := extractReason(body)
		log.Warn().Int("status", resp.StatusCode()).Str("path", path).Str("reason", reason).
			Dur("cost", time.Since(start)).Msg("rag request rejected")
		return reason, false
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("rag response is not json")
		return "invalid response from backend", false
	}
	log.Debug().Str("path", path).Dur("cost", time.Since(start)).Msg("rag request ok")
	return "", true
}

func extractReason(body []byte) string {
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	for _, s := range []string{eb.Detail, eb.Message, eb.Error} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
