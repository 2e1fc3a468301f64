package upstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	dataPrefix = "data:"
	doneFrame  = "[DONE]"

	maxFrameSize = 1 << 20 // 1 MiB per line
)

var errStopped = errors.New("frame consumer stopped")

// lineSplitter is bufio.ScanLines with a length cap. A line longer than max is
// discarded up to its newline and reported through onDrop instead of failing
// the scan with bufio.ErrTooLong. A final line without a newline is dropped.
type lineSplitter struct {
	max      int
	skipping bool
	onDrop   func()
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	i := bytes.IndexByte(data, '\n')
	if s.skipping {
		if i < 0 {
			return len(data), nil, nil
		}
		s.skipping = false
		s.onDrop()
		return i + 1, nil, nil
	}
	if i >= 0 {
		return i + 1, data[:i], nil
	}
	if len(data) >= s.max {
		s.skipping = true
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// decodeFrames reads newline-delimited "data:" frames from r and passes each
// non-empty content delta to emit, in order. Lines may arrive split across
// reads; a trailing line with no terminating newline is dropped at EOF.
// Frames that are not valid JSON or exceed maxFrame are logged and skipped.
// The [DONE] sentinel is skipped too: the stream ends only when r does. If
// emit returns false decoding stops with errStopped.
func (c *Client) decodeFrames(r io.Reader, emit func(string) bool) error {
	splitter := &lineSplitter{
		max: c.maxFrame,
		onDrop: func() {
			c.recorder.FrameSkipped()
			c.log.WithField("limit", c.maxFrame).Warn("skipping oversized stream frame")
		},
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), c.maxFrame)
	scanner.Split(splitter.split)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " ")
		if data == doneFrame {
			continue
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.recorder.FrameSkipped()
			c.log.WithError(err).WithFields(logrus.Fields{
				"frame": truncate(data, 256),
			}).Warn("skipping malformed stream frame")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if !emit(content) {
			return errStopped
		}
	}
	return scanner.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
