package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/utils"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/google/uuid"
)

// CreateDirectRequest opens (or reuses) a 1:1 conversation with another user
type CreateDirectRequest struct {
	ParticipantID string `json:"participantId"`
}

// CreateGroupRequest creates a named group conversation
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

// HandleConversations lists the caller's conversations (GET) or creates a
// direct conversation (POST).
func (s *Server) HandleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			// A conversation ID selects the detail view.
			if id := r.URL.Query().Get("id"); id != "" {
				conversationID, err := uuid.Parse(id)
				if err != nil {
					http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
					return
				}
				result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.GetConversationMsg{
					ConversationID: conversationID,
				})
				if !ok {
					return
				}
				respondJSON(w, result)
				return
			}

			result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.ListConversationsMsg{UserID: userID})
			if !ok {
				return
			}
			respondJSON(w, result)

		case http.MethodPost:
			var req CreateDirectRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
			participantID, err := uuid.Parse(req.ParticipantID)
			if err != nil {
				http.Error(w, "Invalid participant ID format", http.StatusBadRequest)
				return
			}
			if participantID == userID {
				http.Error(w, "Cannot start a conversation with yourself", http.StatusBadRequest)
				return
			}

			result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.GetOrCreateDirectMsg{
				UserID:        userID,
				ParticipantID: participantID,
			})
			if !ok {
				return
			}
			if conversation, isConv := result.(*models.Conversation); isConv {
				s.publishToConversation(conversation.ID, websocket.EventConversationUpdated, conversation)
			}
			respondJSON(w, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// HandleCreateGroup creates a group conversation with the caller as creator.
func (s *Server) HandleCreateGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req CreateGroupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "Group name required", http.StatusBadRequest)
			return
		}

		memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
		for _, raw := range req.MemberIDs {
			memberID, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "Invalid member ID format", http.StatusBadRequest)
				return
			}
			memberIDs = append(memberIDs, memberID)
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.CreateGroupMsg{
			CreatorID: userID,
			Name:      req.Name,
			MemberIDs: memberIDs,
		})
		if !ok {
			return
		}
		if conversation, isConv := result.(*models.Conversation); isConv {
			s.publishToConversation(conversation.ID, websocket.EventConversationUpdated, conversation)
		}
		respondJSON(w, result)
	}
}

// HandleMarkViewed advances the caller's high-water mark to the latest
// message and resets their unread counter.
func (s *Server) HandleMarkViewed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.MarkViewedMsg{
			UserID:         userID,
			ConversationID: conversationID,
		})
		if !ok {
			return
		}

		// Other members see the sender's receipts flip to "read" on their
		// next fetch; nudge them so the refetch happens now.
		if _, isMembership := result.(*models.Membership); isMembership {
			s.publishToConversation(conversationID, websocket.EventConversationUpdated, map[string]interface{}{
				"viewedBy": userID,
			})
		}
		respondJSON(w, result)
	}
}

// HandleLeaveGroup removes the caller from a group conversation.
func (s *Server) HandleLeaveGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.LeaveGroupMsg{
			UserID:         userID,
			ConversationID: conversationID,
		})
		if !ok {
			return
		}
		if left, isBool := result.(bool); isBool && left {
			s.publishToConversation(conversationID, websocket.EventConversationUpdated, map[string]interface{}{
				"leftBy": userID,
			})
		}
		respondJSON(w, result)
	}
}

// HandleClearConversation hides the existing history from the caller and
// resets their read state. Messages stay visible to everyone else.
func (s *Server) HandleClearConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetMessageActor(), &actors.HideConversationMsg{
			ConversationID: conversationID,
			ViewerID:       userID,
		})
		if !ok {
			return
		}
		if appErr, isAppErr := result.(*utils.AppError); isAppErr {
			respondJSON(w, appErr)
			return
		}

		result, ok = s.request(w, s.Engine.GetConversationActor(), &actors.ClearMembershipMsg{
			UserID:         userID,
			ConversationID: conversationID,
		})
		if !ok {
			return
		}
		respondJSON(w, result)
	}
}

// HandleTyping starts or stops the caller's typing lease (POST) or reads
// who else is typing (GET).
func (s *Server) HandleTyping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			conversationID, ok := parseUUIDParam(w, r, "conversationId")
			if !ok {
				return
			}
			result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.GetTypingMsg{
				ConversationID: conversationID,
				ViewerID:       userID,
			})
			if !ok {
				return
			}
			respondJSON(w, result)

		case http.MethodPost:
			var req struct {
				ConversationID string `json:"conversationId"`
				Typing         bool   `json:"typing"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
			conversationID, err := uuid.Parse(req.ConversationID)
			if err != nil {
				http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
				return
			}

			var msg interface{}
			if req.Typing {
				msg = &actors.StartTypingMsg{UserID: userID, ConversationID: conversationID}
			} else {
				msg = &actors.StopTypingMsg{UserID: userID, ConversationID: conversationID}
			}
			result, ok := s.request(w, s.Engine.GetConversationActor(), msg)
			if !ok {
				return
			}
			if _, isBool := result.(bool); isBool {
				s.publishToConversation(conversationID, websocket.EventTypingUpdated, map[string]interface{}{
					"userId": userID,
					"typing": req.Typing,
				})
			}
			respondJSON(w, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// StartCallRequest starts a ringing call in a conversation
type StartCallRequest struct {
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"` // "audio" or "video"
}

// HandleStartCall marks the conversation as having a ringing call and
// hands the caller a room join token.
func (s *Server) HandleStartCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req StartCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}
		callType := models.CallType(req.Type)
		if callType != models.CallTypeAudio && callType != models.CallTypeVideo {
			http.Error(w, "Call type must be audio or video", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.StartCallMsg{
			ConversationID: conversationID,
			CallerID:       userID,
			Type:           callType,
		})
		if !ok {
			return
		}
		call, isCall := result.(*models.OngoingCall)
		if !isCall {
			respondJSON(w, result)
			return
		}

		s.publishToConversation(conversationID, websocket.EventCallStarted, call)
		respondJSON(w, map[string]interface{}{
			"call":  call,
			"token": s.roomToken(conversationID, userID),
		})
	}
}

// HandleAcceptCall flips the call to accepted and returns a join token.
func (s *Server) HandleAcceptCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.AcceptCallMsg{
			ConversationID: conversationID,
			UserID:         userID,
		})
		if !ok {
			return
		}
		call, isCall := result.(*models.OngoingCall)
		if !isCall {
			respondJSON(w, result)
			return
		}

		s.publishToConversation(conversationID, websocket.EventCallAccepted, call)
		respondJSON(w, map[string]interface{}{
			"call":  call,
			"token": s.roomToken(conversationID, userID),
		})
	}
}

// HandleDeclineCall tears the call down for everyone.
func (s *Server) HandleDeclineCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			ConversationID string `json:"conversationId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		conversationID, err := uuid.Parse(req.ConversationID)
		if err != nil {
			http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.DeclineCallMsg{
			ConversationID: conversationID,
			UserID:         userID,
		})
		if !ok {
			return
		}
		if ended, isBool := result.(bool); isBool && ended {
			s.publishToConversation(conversationID, websocket.EventCallEnded, map[string]interface{}{
				"endedBy": userID,
			})
		}
		respondJSON(w, result)
	}
}

// HandleOngoingCall reports whether any of the caller's conversations has
// a live call, so a reconnecting client can rejoin the ringing screen.
func (s *Server) HandleOngoingCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.GetOngoingCallMsg{UserID: userID})
		if !ok {
			return
		}
		respondJSON(w, result)
	}
}

// roomToken mints a join token for the conversation's call room. Returns
// an empty string when room credentials are not configured; the response
// still carries the call so clients can degrade gracefully.
func (s *Server) roomToken(conversationID, userID uuid.UUID) string {
	if s.Rooms == nil || !s.Rooms.Enabled() {
		return ""
	}
	token, err := s.Rooms.JoinToken(conversationID.String(), userID.String(), "")
	if err != nil {
		return ""
	}
	return token
}
