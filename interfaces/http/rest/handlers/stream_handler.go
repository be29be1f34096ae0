package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/domain/events"
	pkgerrors "stackit/pkg/errors"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	streamBuffer = 32
)

// StreamMessage is pushed to websocket subscribers
type StreamMessage struct {
	Type     string         `json:"type"`
	Snapshot board.Snapshot `json:"snapshot"`
}

// StreamTypeSnapshot marks the message sent when a stream opens
const StreamTypeSnapshot = "snapshot"

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
}

// originChecker accepts requests without an Origin header, same-origin
// requests and origins listed in allowed. "*" allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Stream handles GET /boards/{session}/stream. The first message is the
// current snapshot; every board event is followed by a fresh snapshot.
func (h *BoardHandler) Stream(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Get(chi.URLParam(r, "session"))
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("session"))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade the websocket", zap.Error(err))
		return
	}
	defer ws.Close()

	if h.streams != nil {
		h.streams.StreamOpened()
		defer h.streams.StreamClosed()
	}

	// listeners run without the board lock and must not block
	updates := make(chan string, streamBuffer)
	unsubscribe := session.Board.Subscribe(func(event events.DomainEvent) {
		select {
		case updates <- event.GetEventType():
		default:
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go readPump(ws, closed)

	if err := writeMessage(ws, StreamTypeSnapshot, session.Board.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-session.Board.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "board closed"),
				time.Now().Add(writeWait))
			return
		case eventType := <-updates:
			if err := writeMessage(ws, eventType, session.Board.Snapshot()); err != nil {
				h.logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done when the peer goes away
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func writeMessage(ws *websocket.Conn, eventType string, snap board.Snapshot) error {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(StreamMessage{Type: eventType, Snapshot: snap})
}
