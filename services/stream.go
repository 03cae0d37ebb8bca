package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// sseWriter adapts a TurnEmitter onto a server-sent event response. Every
// event is a JSON object with a type discriminator: chunk, done or error.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &sseWriter{w: w, f: f}, nil
}

func (s *sseWriter) send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *sseWriter) Chunk(text string) error {
	return s.send(map[string]interface{}{"type": "chunk", "content": text})
}

func (s *sseWriter) Done(done TurnDone) error {
	return s.send(map[string]interface{}{
		"type":            "done",
		"status":          done.Status,
		"question_count":  done.QuestionCount,
		"question_budget": done.QuestionBudget,
	})
}

func (s *sseWriter) Fail(message string) {
	if err := s.send(map[string]interface{}{"type": "error", "message": message}); err != nil {
		slog.Warn("Failed to write SSE error event", "error", err)
	}
}
