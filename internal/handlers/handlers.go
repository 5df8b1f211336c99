package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/ai"
	"github.com/ygstudio-game/chatPulse/internal/database"
	"github.com/ygstudio-game/chatPulse/internal/engine"
	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/middleware"
	"github.com/ygstudio-game/chatPulse/internal/rtc"
	"github.com/ygstudio-game/chatPulse/internal/utils"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Metrics        *utils.MetricsCollector
	MongoDB        *database.MongoDB
	AI             *ai.Client
	Rooms          *rtc.TokenIssuer
	RequestTimeout time.Duration
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	context *actor.RootContext,
	eng *engine.Engine,
	hub *websocket.Hub,
	metrics *utils.MetricsCollector,
	mongodb *database.MongoDB,
	aiClient *ai.Client,
	rooms *rtc.TokenIssuer,
) *Server {
	return &Server{
		System:         system,
		Context:        context,
		Engine:         eng,
		Hub:            hub,
		Metrics:        metrics,
		MongoDB:        mongodb,
		AI:             aiClient,
		Rooms:          rooms,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
	}
}

// requireUser pulls the authenticated user ID out of the request context.
// Writes a 401 and returns false if the middleware never set one.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok || userID == uuid.Nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// respondJSON writes a JSON body. Actor replies that turn out to be
// AppErrors are translated to their HTTP status instead.
func respondJSON(w http.ResponseWriter, result interface{}) {
	if appErr, ok := result.(*utils.AppError); ok {
		http.Error(w, appErr.Message, utils.AppErrorToHTTPStatus(appErr.Code))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("HTTP Handler: Failed to encode response: %v", err)
	}
}

// request sends msg to an actor and unwraps the future. A nil result
// with ok=false means the error response has already been written.
func (s *Server) request(w http.ResponseWriter, pid *actor.PID, msg interface{}) (interface{}, bool) {
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		log.Printf("HTTP Handler: Actor request %T failed: %v", msg, err)
		http.Error(w, "Request timed out", http.StatusGatewayTimeout)
		return nil, false
	}
	return result, true
}

// parseUUIDParam parses a query parameter as a UUID; writes a 400 on failure.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		http.Error(w, name+" required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid "+name+" format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return parsed, true
}

// conversationMembers asks the ledger for a conversation's member list,
// for websocket fan-out after a mutation.
func (s *Server) conversationMembers(conversationID uuid.UUID) []uuid.UUID {
	future := s.Context.RequestFuture(
		s.Engine.GetConversationActor(),
		&actors.GetMembersMsg{ConversationID: conversationID},
		s.RequestTimeout,
	)
	result, err := future.Result()
	if err != nil {
		log.Printf("HTTP Handler: Failed to resolve members of %s: %v", conversationID, err)
		return nil
	}
	members, _ := result.([]uuid.UUID)
	return members
}

// publishToConversation pushes an event to every member of a conversation.
func (s *Server) publishToConversation(conversationID uuid.UUID, eventType string, data interface{}) {
	members := s.conversationMembers(conversationID)
	if len(members) == 0 {
		return
	}
	s.Hub.PublishEvent(members, &websocket.Event{
		Type:           eventType,
		ConversationID: conversationID,
		Data:           data,
	})
}

// HandleHealth reports engine liveness and a metrics snapshot.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, usersOnline := 0, 0

		future := s.Context.RequestFuture(s.Engine.GetConversationActor(), &actors.GetCountsMsg{}, s.RequestTimeout)
		if result, err := future.Result(); err == nil {
			if count, ok := result.(int); ok {
				conversations = count
			}
		}
		future = s.Context.RequestFuture(s.Engine.GetUserActor(), &actors.GetCountsMsg{}, s.RequestTimeout)
		if result, err := future.Result(); err == nil {
			if count, ok := result.(int); ok {
				usersOnline = count
			}
		}

		respondJSON(w, map[string]interface{}{
			"status":             "healthy",
			"conversation_count": conversations,
			"user_count":         usersOnline,
			"metrics":            s.Metrics.Snapshot(),
		})
	}
}
