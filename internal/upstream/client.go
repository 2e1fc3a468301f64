package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/stopopioids/internal/config"
)

var (
	ErrStreamUnavailable = errors.New("upstream stream body unavailable")
	ErrMalformedEnvelope = errors.New("upstream completion envelope malformed")
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.Status)
}

// Recorder receives upstream call telemetry.
type Recorder interface {
	ObserveUpstream(kind string, status int, elapsed time.Duration)
	FrameSkipped()
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpstream(string, int, time.Duration) {}
func (nopRecorder) FrameSkipped()                              {}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client talks to an OpenAI-compatible chat-completion provider. It makes
// exactly one request per call and never retries.
type Client struct {
	cfg        config.UpstreamConfig
	httpClient *http.Client
	log        logrus.FieldLogger
	recorder   Recorder
	maxFrame   int
}

func NewClient(cfg config.UpstreamConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logrus.StandardLogger(),
		recorder:   nopRecorder{},
		maxFrame:   maxFrameSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete requests a buffered completion and returns the model's reply text.
// An envelope without a readable message yields ErrMalformedEnvelope.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	resp, err := c.send(ctx, "complete", text, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var envelope openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(envelope.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedEnvelope)
	}
	return envelope.Choices[0].Message.Content, nil
}

// Stream requests a streamed completion. Content deltas are delivered on the
// returned channel in provider order. The channel is closed when the provider
// body ends, a read fails, or ctx is cancelled; by then the error channel holds
// the terminal error, nil only when the body reached a clean EOF.
func (c *Client) Stream(ctx context.Context, text string) (<-chan string, <-chan error, error) {
	resp, err := c.send(ctx, "stream", text, true)
	if err != nil {
		return nil, nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, nil, ErrStreamUnavailable
	}

	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		defer resp.Body.Close()

		err := c.decodeFrames(resp.Body, func(content string) bool {
			select {
			case out <- content:
				return true
			case <-ctx.Done():
				return false
			}
		})
		switch {
		case err == nil:
		case errors.Is(err, errStopped), ctx.Err() != nil:
			err = ctx.Err()
			c.log.WithError(err).Debug("upstream stream abandoned by caller")
		default:
			err = fmt.Errorf("read upstream stream: %w", err)
			c.log.WithError(err).Warn("upstream stream read failed")
		}
		errc <- err
	}()
	return out, errc, nil
}

// Ping checks that the provider is reachable and accepts the credential.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping upstream: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

func (c *Client) send(ctx context.Context, kind, text string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(buildRequest(c.cfg.Model, text, stream))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.ObserveUpstream(kind, 0, time.Since(start))
		return nil, fmt.Errorf("call upstream: %w", err)
	}
	c.recorder.ObserveUpstream(kind, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(detail),
		}).Error("upstream request rejected")
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("HTTP-Referer", c.cfg.Referer)
	req.Header.Set("X-Title", c.cfg.Title)
}
