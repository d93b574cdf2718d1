// Package hub fans out live session events to websocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBuffer = 64
)

type broadcastMsg struct {
	sessionID string
	payload   []byte
}

// Hub tracks subscribers per session and broadcasts events to them.
type Hub struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan broadcastMsg

	mu       sync.RWMutex
	sessions map[string]map[*subscriber]bool
}

// New creates a hub. Call Run before subscribing.
func New() *Hub {
	return &Hub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan broadcastMsg, sendBuffer),
		sessions:   make(map[string]map[*subscriber]bool),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, subs := range h.sessions {
				for sub := range subs {
					close(sub.send)
				}
			}
			h.sessions = make(map[string]map[*subscriber]bool)
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			if h.sessions[sub.sessionID] == nil {
				h.sessions[sub.sessionID] = make(map[*subscriber]bool)
			}
			h.sessions[sub.sessionID][sub] = true
			h.mu.Unlock()
			telemetry.HubSubscriberConnected()

		case sub := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.sessions[sub.sessionID]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					close(sub.send)
					if len(subs) == 0 {
						delete(h.sessions, sub.sessionID)
					}
					telemetry.HubSubscriberGone()
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			subs := h.sessions[msg.sessionID]
			h.mu.RUnlock()
			for sub := range subs {
				select {
				case sub.send <- msg.payload:
				default:
					// slow subscriber, drop it
					h.mu.Lock()
					delete(subs, sub)
					h.mu.Unlock()
					close(sub.send)
					telemetry.HubSubscriberGone()
				}
			}
		}
	}
}

// Broadcast sends an event to every subscriber of a session.
func (h *Hub) Broadcast(sessionID string, evt models.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("broadcast_marshal_failed", "session", sessionID, "error", err.Error())
		return
	}
	h.broadcast <- broadcastMsg{sessionID: sessionID, payload: payload}
}

// SubscriberCount returns the number of live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Subscribe attaches an upgraded websocket connection to a session and
// starts its pumps. The first frame sent is a connection ack so clients
// can tell the subscription is live before any event arrives.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) {
	sub := &subscriber{
		hub:       h,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
	sub.send <- []byte(`{"connected":true}`)
	h.register <- sub
	go sub.writePump()
	go sub.readPump()
}

type subscriber struct {
	hub       *Hub
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// readPump drains the connection to process control frames. Subscribers
// never send data frames; anything received is discarded.
func (s *subscriber) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("subscriber_read_ended", "session", s.sessionID, "error", err.Error())
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
