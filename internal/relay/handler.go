package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/stopopioids/internal/assessment"
	"github.com/Skufu/stopopioids/internal/config"
	"github.com/Skufu/stopopioids/internal/observability"
	"github.com/Skufu/stopopioids/internal/upstream"
)

const (
	msgMissingInput    = "Missing text content"
	msgInvalidPayload  = "Invalid request payload"
	msgPayloadTooLarge = "Request body too large"
	msgInternalFailure = "An internal server error occurred. Please try again later."
)

var (
	ErrMissingInput   = errors.New("missing text content")
	ErrInvalidPayload = errors.New("invalid request payload")
)

// Assessor is the upstream side of the relay. Stream closes its chunk channel
// once the provider body is done; the error channel then yields nil for a
// clean end or the error that cut the stream short.
type Assessor interface {
	Complete(ctx context.Context, text string) (string, error)
	Stream(ctx context.Context, text string) (<-chan string, <-chan error, error)
}

type Recorder interface {
	Assessment(mode, outcome string)
	RiskScore(score int)
}

type Handler struct {
	assessor Assessor
	metrics  Recorder
}

func NewHandler(assessor Assessor, metrics Recorder) *Handler {
	return &Handler{assessor: assessor, metrics: metrics}
}

// Register mounts POST /api/assess in the configured mode and
// POST /api/assess/stream, which always streams.
func (h *Handler) Register(r gin.IRoutes, mode config.Mode) {
	assess := h.Assess
	if mode == config.ModeStream {
		assess = h.AssessStream
	}
	r.POST("/api/assess", assess)
	r.POST("/api/assess/stream", h.AssessStream)
}

type assessRequest struct {
	Text string `json:"text"`
}

// Assess answers with a single normalized AssessmentResult.
func (h *Handler) Assess(c *gin.Context) {
	const mode = string(config.ModeBuffered)
	log := observability.Logger(c).WithField("mode", mode)

	text, ok := h.readText(c, mode)
	if !ok {
		return
	}

	raw, err := h.assessor.Complete(c.Request.Context(), text)
	switch {
	case err == nil:
	case errors.Is(err, upstream.ErrMalformedEnvelope):
		log.WithError(err).Warn("provider envelope unreadable, using fallback")
		raw = ""
	default:
		h.fail(c, log, mode, err)
		return
	}

	result, err := assessment.Normalize(raw)
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = observability.OutcomeFallback
		log.WithError(err).Warn("model reply did not match schema, using fallback")
	}
	h.metrics.Assessment(mode, outcome)
	h.metrics.RiskScore(result.RiskScore)

	log.WithFields(logrus.Fields{
		"risk_score": result.RiskScore,
		"band":       result.Band(),
		"confidence": result.Confidence,
	}).Info("assessment completed")
	c.JSON(http.StatusOK, result)
}

// AssessStream relays the provider's content deltas as a chunked plain-text
// body, flushing after each delta. If the provider stream breaks after bytes
// were sent the connection is dropped so the caller sees a failed read rather
// than a complete-looking body.
func (h *Handler) AssessStream(c *gin.Context) {
	const mode = string(config.ModeStream)
	log := observability.Logger(c).WithField("mode", mode)

	text, ok := h.readText(c, mode)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	chunks, errc, err := h.assessor.Stream(ctx, text)
	if err != nil {
		h.fail(c, log, mode, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			h.abort(log, mode, ctx.Err())
			return
		case chunk, open := <-chunks:
			if !open {
				h.finishStream(c, log, mode, <-errc)
				return
			}
			if _, err := c.Writer.WriteString(chunk); err != nil {
				h.abort(log, mode, err)
				return
			}
			c.Writer.Flush()
		}
	}
}

func (h *Handler) finishStream(c *gin.Context, log logrus.FieldLogger, mode string, err error) {
	switch {
	case err == nil:
		h.metrics.Assessment(mode, observability.OutcomeOK)
	case c.Request.Context().Err() != nil:
		h.abort(log, mode, err)
	case !c.Writer.Written():
		h.fail(c, log, mode, err)
	default:
		log.WithError(err).WithField("bytes_sent", c.Writer.Size()).Error("provider stream broke mid-response")
		h.metrics.Assessment(mode, observability.OutcomeFailed)
		panic(http.ErrAbortHandler)
	}
}

func (h *Handler) readText(c *gin.Context, mode string) (string, bool) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.Assessment(mode, observability.OutcomeRejected)
			c.String(http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
			return "", false
		}
		h.reject(c, mode, ErrInvalidPayload, msgInvalidPayload)
		return "", false
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		h.reject(c, mode, ErrMissingInput, msgMissingInput)
		return "", false
	}
	return text, true
}

func (h *Handler) reject(c *gin.Context, mode string, err error, msg string) {
	_ = c.Error(err)
	h.metrics.Assessment(mode, observability.OutcomeRejected)
	c.String(http.StatusBadRequest, msg)
}

// fail hides upstream detail from the caller; it is only logged.
func (h *Handler) fail(c *gin.Context, log logrus.FieldLogger, mode string, err error) {
	var statusErr *upstream.StatusError
	fields := logrus.Fields{}
	if errors.As(err, &statusErr) {
		fields["upstream_status"] = statusErr.StatusCode
	}
	log.WithError(err).WithFields(fields).Error("assessment failed")
	h.metrics.Assessment(mode, observability.OutcomeFailed)
	c.String(http.StatusInternalServerError, msgInternalFailure)
}

func (h *Handler) abort(log logrus.FieldLogger, mode string, err error) {
	log.WithError(err).Debug("caller went away mid-stream")
	h.metrics.Assessment(mode, observability.OutcomeAborted)
}
