package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/feedback"
	logfields "github.com/spigell/interview-feedback/internal/logger"
)

const defaultFailure = "Failed to create feedback"

// Submitter runs the feedback pipeline.
type Submitter interface {
	Submit(ctx context.Context, req feedback.Request) feedback.Result
}

// Reader looks up stored feedback.
type Reader interface {
	FindByOwner(ctx context.Context, interviewID, userID string) (*feedback.Record, error)
}

// Publisher hands requests to the worker queue.
type Publisher interface {
	Publish(ctx context.Context, req feedback.Request) (string, error)
}

type Handler struct {
	submitter Submitter
	reader    Reader
	publisher Publisher
	logger    *zap.Logger

	submitTimeout time.Duration
}

// NewHandler builds the handler. publisher may be nil when no queue is configured.
func NewHandler(submitter Submitter, reader Reader, publisher Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		submitter: submitter,
		reader:    reader,
		publisher: publisher,
		logger:    logger,
	}
}

// WithSubmitTimeout bounds each synchronous pipeline run so the envelope is
// written before the server's write timeout closes the connection.
func (h *Handler) WithSubmitTimeout(d time.Duration) *Handler {
	h.submitTimeout = d
	return h
}

type jobResponse struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued"`
	JobID   string `json:"jobId,omitempty"`
	Error   string `json:"error,omitempty"`
}

func failure(msg string) feedback.Response {
	return feedback.Response{Success: false, Error: msg}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateFeedback(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.submitTimeout)
		defer cancel()
	}

	res := h.submitter.Submit(ctx, req)
	c.JSON(feedback.StatusCode(res), feedback.Project(res))
}

func (h *Handler) GetFeedback(c *gin.Context) {
	interviewID := strings.TrimSpace(c.Query("interviewId"))
	userID := strings.TrimSpace(c.Query("userId"))
	if interviewID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, failure("interviewId and userId query parameters are required"))
		return
	}

	rec, err := h.reader.FindByOwner(c.Request.Context(), interviewID, userID)
	switch {
	case errors.Is(err, feedback.ErrNotFound):
		c.JSON(http.StatusNotFound, failure("Feedback not found"))
		return
	case err != nil:
		h.logger.Error("loading feedback", append(logfields.RequestFields(interviewID, userID, ""), zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, failure("Failed to load feedback"))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) EnqueueFeedback(c *gin.Context) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, jobResponse{Error: "Feedback queue is not configured"})
		return
	}

	req, ok := h.bind(c)
	if !ok {
		return
	}

	jobID, err := h.publisher.Publish(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("enqueueing feedback", append(logfields.RequestFields(req.InterviewID, req.UserID, req.FeedbackID), zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, jobResponse{Error: "Failed to queue feedback"})
		return
	}

	c.JSON(http.StatusAccepted, jobResponse{Success: true, Queued: true, JobID: jobID})
}

func (h *Handler) bind(c *gin.Context) (feedback.Request, bool) {
	var req feedback.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("rejecting request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, failure("Invalid request: "+bindMessage(err)))
		return req, false
	}
	return req, true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return "interviewId and userId are required"
	case errors.Is(err, io.EOF):
		return "body is empty"
	default:
		return "body must be a JSON object"
	}
}
