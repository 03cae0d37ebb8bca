package services

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talentwire/talentwire/models"
)

func TestSSEWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := newSSEWriter(rec)
	if err != nil {
		t.Fatalf("newSSEWriter() error = %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	if err := w.Chunk("hello "); err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if err := w.Chunk("world"); err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if err := w.Done(TurnDone{Status: models.StatusInProgress, QuestionCount: 3, QuestionBudget: 8}); err != nil {
		t.Fatalf("Done() error = %v", err)
	}

	body := rec.Body.String()
	events := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3\nbody: %q", len(events), body)
	}

	for i, event := range events {
		if !strings.HasPrefix(event, "data: ") {
			t.Fatalf("event %d missing data prefix: %q", i, event)
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(event, "data: ")), &decoded); err != nil {
			t.Fatalf("event %d is not JSON: %v", i, err)
		}
	}

	var done map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(events[2], "data: ")), &done); err != nil {
		t.Fatalf("done event is not JSON: %v", err)
	}
	if done["type"] != "done" {
		t.Errorf("done type = %v", done["type"])
	}
	if done["question_count"] != float64(3) || done["question_budget"] != float64(8) {
		t.Errorf("done counters = %v / %v, want 3 / 8", done["question_count"], done["question_budget"])
	}
}

func TestSSEWriterErrorEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := newSSEWriter(rec)
	if err != nil {
		t.Fatalf("newSSEWriter() error = %v", err)
	}

	w.Fail("connection error, please retry")

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("body missing error event: %q", body)
	}
	if !strings.Contains(body, "connection error, please retry") {
		t.Errorf("body missing message: %q", body)
	}
}
