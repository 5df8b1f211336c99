package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/middleware"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: check the Origin header against config.AllowedOrigins
		return true
	},
}

// typingFrame is the only inbound frame clients send over the socket.
type typingFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// HandleWebSocket handles WebSocket connection requests.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1. Authenticate using JWT from query parameter
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			log.Println("WebSocket connection failed: Missing token")
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ValidateToken(tokenString)
		if err != nil {
			log.Printf("WebSocket connection failed: Invalid token: %v", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userID := claims.UserID
		if userID == uuid.Nil {
			log.Println("WebSocket connection failed: Nil userID in token claims")
			http.Error(w, "Invalid user ID in token", http.StatusInternalServerError)
			return
		}

		// 2. Upgrade connection
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for User %s: %v", userID, err)
			return
		}

		// 3. Create and register the client
		client := &websocket.Client{
			Hub:     s.Hub,
			UserID:  userID,
			Conn:    conn,
			Send:    make(chan []byte, 256),
			OnFrame: s.handleClientFrame,
		}
		client.Hub.Register <- client

		log.Printf("WebSocket client registered for User %s", userID)

		// 4. Start read and write pumps
		go client.WritePump()
		go client.ReadPump()
	}
}

// handleClientFrame processes inbound socket frames. Only typing
// heartbeats are recognized; anything else is ignored.
func (s *Server) handleClientFrame(userID uuid.UUID, frame []byte) {
	var parsed typingFrame
	if err := json.Unmarshal(frame, &parsed); err != nil {
		return
	}
	conversationID, err := uuid.Parse(parsed.ConversationID)
	if err != nil {
		return
	}

	var msg interface{}
	switch parsed.Type {
	case "typing.start":
		msg = &actors.StartTypingMsg{UserID: userID, ConversationID: conversationID}
	case "typing.stop":
		msg = &actors.StopTypingMsg{UserID: userID, ConversationID: conversationID}
	default:
		return
	}

	future := s.Context.RequestFuture(s.Engine.GetConversationActor(), msg, s.RequestTimeout)
	if result, err := future.Result(); err == nil {
		if accepted, isBool := result.(bool); isBool && accepted {
			s.publishToConversation(conversationID, websocket.EventTypingUpdated, map[string]interface{}{
				"userId": userID,
				"typing": parsed.Type == "typing.start",
			})
		}
	}
}
