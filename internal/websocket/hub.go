package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected clients.
const (
	EventMessageNew          = "message.new"
	EventMessageDeleted      = "message.deleted"
	EventReactionUpdated     = "reaction.updated"
	EventTypingUpdated       = "typing.updated"
	EventPresenceUpdated     = "presence.updated"
	EventConversationUpdated = "conversation.updated"
	EventCallStarted         = "call.started"
	EventCallAccepted        = "call.accepted"
	EventCallDeclined        = "call.declined"
	EventCallEnded           = "call.ended"
)

// Event is the envelope for every payload pushed over a socket.
type Event struct {
	Type           string      `json:"type"`
	ConversationID uuid.UUID   `json:"conversationId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

// MessageToSend defines the structure for sending a message to a specific user.
type MessageToSend struct {
	TargetUserID uuid.UUID
	Payload      []byte
}

// Hub maintains the set of active clients and routes events to them.
type Hub struct {
	// Registered clients. Maps user ID to a set of active client connections.
	Clients map[uuid.UUID]map[*Client]bool

	// Channel for sending messages to specific users.
	SendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// OnConnect fires when a user's first connection registers,
	// OnDisconnect when their last connection goes away. Used to
	// flip presence without the client sending anything.
	OnConnect    func(userID uuid.UUID)
	OnDisconnect func(userID uuid.UUID)

	// Mutex to protect concurrent access to the clients map.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		SendDirect: make(chan *MessageToSend, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	log.Println("WebSocket Hub started.")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			first := false
			if _, ok := h.Clients[client.UserID]; !ok {
				h.Clients[client.UserID] = make(map[*Client]bool)
				first = true
			}
			h.Clients[client.UserID][client] = true
			log.Printf("WebSocket Client registered for User %s. Total connections for user: %d", client.UserID, len(h.Clients[client.UserID]))
			h.mu.Unlock()
			if first && h.OnConnect != nil {
				h.OnConnect(client.UserID)
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			last := false
			if userClients, ok := h.Clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					if len(userClients) == 0 {
						delete(h.Clients, client.UserID)
						last = true
						log.Printf("WebSocket Client unregistered. User %s has no more connections.", client.UserID)
					} else {
						log.Printf("WebSocket Client unregistered for User %s. Remaining connections: %d", client.UserID, len(userClients))
					}
				}
			}
			h.mu.Unlock()
			if last && h.OnDisconnect != nil {
				h.OnDisconnect(client.UserID)
			}

		case directMessage := <-h.SendDirect:
			h.mu.RLock()
			if userClients, ok := h.Clients[directMessage.TargetUserID]; ok {
				for client := range userClients {
					select {
					case client.Send <- directMessage.Payload:
					default:
						log.Printf("Send channel full for client of User %s. Message dropped for this client.", client.UserID)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// SendDirectMessage queues a payload for every live connection of one user.
func (h *Hub) SendDirectMessage(targetUserID uuid.UUID, payload []byte) {
	message := &MessageToSend{
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	select {
	case h.SendDirect <- message:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queuing message in hub's SendDirect channel for User %s. Hub might be busy or blocked.", targetUserID)
	}
}

// PublishEvent fans an event out to every listed member.
func (h *Hub) PublishEvent(memberIDs []uuid.UUID, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event.Type, err)
		return
	}
	for _, memberID := range memberIDs {
		h.SendDirectMessage(memberID, payload)
	}
}

// IsConnected reports whether a user has at least one live connection.
func (h *Hub) IsConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID]) > 0
}
