package api

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// SSEWriter streams generation chunks as server-sent events. A write or
// flush failure (client gone) surfaces as an error from Delta, which the
// controller treats as consumer cancellation. The event-stream headers are
// written with the first event, so a request that fails before producing
// any output can still respond with a plain JSON error.
type SSEWriter struct {
	w       io.Writer
	header  http.Header
	flush   func()
	id      string
	started bool
}

func NewSSEWriter(c *echo.Context, id string) (*SSEWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &SSEWriter{w: res, header: res.Header(), flush: flusher.Flush, id: id}, nil
}

type streamDelta struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

type streamDone struct {
	ID              string `json:"id"`
	Done            bool   `json:"done"`
	StopReason      string `json:"stop_reason"`
	TokensGenerated int    `json:"tokens_generated"`
	DurationMS      int64  `json:"duration_ms"`
}

func (s *SSEWriter) Delta(chunk string) error {
	return s.send(streamDelta{ID: s.id, Delta: chunk})
}

func (s *SSEWriter) Done(resp GenerateResponse) error {
	return s.send(streamDone{
		ID:              s.id,
		Done:            true,
		StopReason:      resp.StopReason,
		TokensGenerated: resp.TokensGenerated,
		DurationMS:      resp.DurationMS,
	})
}

func (s *SSEWriter) send(v any) error {
	if !s.started {
		s.header.Set(echo.HeaderContentType, "text/event-stream")
		s.header.Set("Cache-Control", "no-cache")
		s.header.Set("Connection", "keep-alive")
		s.started = true
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flush()
	return nil
}
