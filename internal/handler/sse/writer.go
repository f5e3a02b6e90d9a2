package sse

import (
	"fmt"
	"net/http"
)

// Writer sends server-sent-event frames over an HTTP response.
// Frames arrive already formatted ("data: ...\n\n"); the writer only
// pushes bytes and flushes.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for an SSE response and returns a Writer.
// Returns an error when the ResponseWriter cannot flush, which means
// streaming is impossible on this connection.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteFrame writes a pre-formatted SSE frame and flushes it to the client.
func (s *Writer) WriteFrame(frame string) error {
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return fmt.Errorf("write frame failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment (: keepalive\n\n) and flushes.
// SSE clients ignore comment lines, so this only keeps intermediaries
// from closing an idle connection.
func (s *Writer) WriteKeepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}
