// Package ws pushes full election snapshots to subscribed clients over
// websockets. Consumers get a complete snapshot on every change, never
// deltas.
package ws

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stuorg/portal/internal/domain"
)

// Client is one websocket subscriber of one event.
type Client struct {
	EventID uint

	conn *websocket.Conn
	send chan []byte
}

type snapshotMsg struct {
	eventID uint
	payload []byte
}

// Hub keeps the subscriber sets per event and fans snapshots out to
// them. The Run goroutine owns the client map and is the only closer of
// client send channels; register, unregister and broadcast all funnel
// through it.
type Hub struct {
	clients map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan snapshotMsg
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan snapshotMsg),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if _, ok := h.clients[client.EventID]; !ok {
				h.clients[client.EventID] = make(map[*Client]bool)
			}
			h.clients[client.EventID][client] = true

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.eventID] {
				select {
				case client.send <- msg.payload:
				default:
					// A subscriber that cannot keep up is dropped
					// rather than blocking the fan-out.
					h.drop(client)
				}
			}
		}
	}
}

// drop must only be called from the Run goroutine. The membership check
// makes a second drop of the same client a no-op.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client.EventID][client]; !ok {
		return
	}
	delete(h.clients[client.EventID], client)
	close(client.send)
	if len(h.clients[client.EventID]) == 0 {
		delete(h.clients, client.EventID)
	}
}

// Publish implements the snapshot publisher port.
func (h *Hub) Publish(eventID uint, snapshot domain.ElectionSnapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		zap.L().Error("marshaling snapshot failed", zap.Uint("event_id", eventID), zap.Error(err))
		return
	}

	h.broadcast <- snapshotMsg{eventID: eventID, payload: payload}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
