package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/talentwire/talentwire/models"
)

// Hub fans live interview activity out to recruiters watching a session.
// Observers are grouped by session so a turn only reaches the people
// watching that interview.
type Hub struct {
	observers  map[string]map[*Observer]bool
	register   chan *Observer
	unregister chan *Observer
	events     chan sessionEvent
	mu         sync.RWMutex
}

type Observer struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    string
	SessionID string
}

// Event is the wire format pushed to observers.
type Event struct {
	Type          string `json:"type"` // "turn" or "status"
	SessionID     string `json:"session_id"`
	Speaker       string `json:"speaker,omitempty"`
	Content       string `json:"content,omitempty"`
	QuestionCount int    `json:"question_count,omitempty"`
	Status        string `json:"status,omitempty"`
}

type sessionEvent struct {
	sessionID string
	payload   []byte
}

func NewHub() *Hub {
	return &Hub{
		observers:  make(map[string]map[*Observer]bool),
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		events:     make(chan sessionEvent, 64),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case observer := <-h.register:
			h.mu.Lock()
			if h.observers[observer.SessionID] == nil {
				h.observers[observer.SessionID] = make(map[*Observer]bool)
			}
			h.observers[observer.SessionID][observer] = true
			h.mu.Unlock()
			slog.Info("Observer registered", "user_id", observer.UserID, "session_id", observer.SessionID)

		case observer := <-h.unregister:
			h.mu.Lock()
			if group, ok := h.observers[observer.SessionID]; ok {
				if _, ok := group[observer]; ok {
					delete(group, observer)
					close(observer.Send)
					if len(group) == 0 {
						delete(h.observers, observer.SessionID)
					}
				}
			}
			h.mu.Unlock()
			slog.Info("Observer unregistered", "user_id", observer.UserID, "session_id", observer.SessionID)

		case event := <-h.events:
			h.mu.RLock()
			for observer := range h.observers[event.sessionID] {
				select {
				case observer.Send <- event.payload:
				default:
					close(observer.Send)
					delete(h.observers[event.sessionID], observer)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) RegisterObserver(conn *websocket.Conn, userID, sessionID string) *Observer {
	observer := &Observer{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		UserID:    userID,
		SessionID: sessionID,
	}

	h.register <- observer
	return observer
}

// PublishTurn pushes a persisted transcript turn to everyone watching the
// session. Implements the turn controller's publisher interface.
func (h *Hub) PublishTurn(sessionID string, speaker models.Speaker, content string, questionCount int) {
	h.publish(sessionID, Event{
		Type:          "turn",
		SessionID:     sessionID,
		Speaker:       string(speaker),
		Content:       content,
		QuestionCount: questionCount,
	})
}

// PublishStatus announces a lifecycle transition to watching recruiters.
func (h *Hub) PublishStatus(sessionID string, status models.SessionStatus) {
	h.publish(sessionID, Event{
		Type:      "status",
		SessionID: sessionID,
		Status:    string(status),
	})
}

func (h *Hub) publish(sessionID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal observer event", "error", err)
		return
	}

	select {
	case h.events <- sessionEvent{sessionID: sessionID, payload: payload}:
	default:
		slog.Warn("Observer event queue full, dropping event", "session_id", sessionID, "type", event.Type)
	}
}

// ReadPump drains and discards inbound frames. Observers are read-only;
// reading is still required to process control messages and detect closes.
func (o *Observer) ReadPump() {
	defer func() {
		o.Hub.unregister <- o
		o.Conn.Close()
	}()

	o.Conn.SetReadLimit(4 * 1024)
	o.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	o.Conn.SetPongHandler(func(string) error {
		o.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := o.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
	}
}

func (o *Observer) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		o.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-o.Send:
			o.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				o.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := o.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(o.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-o.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			o.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := o.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
