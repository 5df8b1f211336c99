package handlers

import (
	"net/http"

	"github.com/ygstudio-game/chatPulse/internal/ai"
	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/google/uuid"
)

// aiHistoryLimit caps how much of the log is fed to the model.
const aiHistoryLimit = 50

// HandleConversationSummary returns a short model-written summary of the
// recent conversation history. Model failures degrade to a static
// fallback instead of an error; summaries are best-effort.
func (s *Server) HandleConversationSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		conversationID, ok := parseUUIDParam(w, r, "conversationId")
		if !ok {
			return
		}

		history, ok := s.conversationHistory(w, conversationID, userID)
		if !ok {
			return
		}

		summary := s.AI.Summarize(r.Context(), history)
		respondJSON(w, map[string]string{"summary": summary})
	}
}

// HandleSmartReplies suggests up to three replies for the caller.
func (s *Server) HandleSmartReplies() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		conversationID, ok := parseUUIDParam(w, r, "conversationId")
		if !ok {
			return
		}

		history, ok := s.conversationHistory(w, conversationID, userID)
		if !ok {
			return
		}

		replies := s.AI.SmartReplies(r.Context(), history)
		respondJSON(w, map[string][]string{"replies": replies})
	}
}

// conversationHistory gates on membership, fetches the recent log and
// formats it as model input. Deleted messages are skipped.
func (s *Server) conversationHistory(w http.ResponseWriter, conversationID, userID uuid.UUID) ([]ai.HistoryEntry, bool) {
	result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.ReadStateMsg{
		ConversationID: conversationID,
		ViewerID:       userID,
	})
	if !ok {
		return nil, false
	}
	if appErr, isAppErr := result.(*utils.AppError); isAppErr {
		respondJSON(w, appErr)
		return nil, false
	}

	result, ok = s.request(w, s.Engine.GetMessageActor(), &actors.GetHistoryMsg{
		ConversationID: conversationID,
		Limit:          aiHistoryLimit,
	})
	if !ok {
		return nil, false
	}
	messages, isHistory := result.([]*models.Message)
	if !isHistory {
		respondJSON(w, result)
		return nil, false
	}

	// Resolve sender names so the model sees who said what. Best effort:
	// an unresolved name falls back to the sender id below, so a failed
	// lookup must not error the response.
	senderIDs := make([]uuid.UUID, 0, len(messages))
	seen := make(map[uuid.UUID]bool)
	for _, message := range messages {
		if !seen[message.SenderID] {
			seen[message.SenderID] = true
			senderIDs = append(senderIDs, message.SenderID)
		}
	}
	names := make(map[uuid.UUID]string)
	future := s.Context.RequestFuture(s.Engine.GetUserActor(), &actors.GetUsersMsg{UserIDs: senderIDs}, s.RequestTimeout)
	if result, err := future.Result(); err == nil {
		if users, isUsers := result.(map[uuid.UUID]*models.User); isUsers {
			for id, user := range users {
				names[id] = user.Name
			}
		}
	}

	history := make([]ai.HistoryEntry, 0, len(messages))
	for _, message := range messages {
		if message.Deleted || message.HiddenFor(userID) || message.Content == "" {
			continue
		}
		sender := names[message.SenderID]
		if sender == "" {
			sender = message.SenderID.String()
		}
		history = append(history, ai.HistoryEntry{Sender: sender, Content: message.Content})
	}
	return history, true
}
