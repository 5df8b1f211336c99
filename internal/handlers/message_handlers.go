package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/utils"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/google/uuid"
)

// SendMessageRequest represents a request to post a message
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	MediaURL       string `json:"mediaUrl"`
	MediaType      string `json:"mediaType"`
	FileName       string `json:"fileName"`
	IsUploading    bool   `json:"isUploading"`
	ReplyToID      string `json:"replyToId"`
}

// HandleMessages posts a message (POST) or lists a conversation page (GET).
func (s *Server) HandleMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleSendMessage(w, r)
		case http.MethodGet:
			s.handleListMessages(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		http.Error(w, "Invalid conversation ID format", http.StatusBadRequest)
		return
	}
	if req.Content == "" && req.MediaURL == "" && !req.IsUploading {
		http.Error(w, "Message content required", http.StatusBadRequest)
		return
	}

	var replyToID uuid.UUID
	if req.ReplyToID != "" {
		if replyToID, err = uuid.Parse(req.ReplyToID); err != nil {
			http.Error(w, "Invalid replyTo ID format", http.StatusBadRequest)
			return
		}
	}

	// Membership gate: the ledger rejects non-members before anything is
	// appended to the log.
	result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.ReadStateMsg{
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

	result, ok = s.request(w, s.Engine.GetMessageActor(), &actors.AppendMessageMsg{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Type:           models.MessageType(req.Type),
		MediaURL:       req.MediaURL,
		MediaType:      models.MediaType(req.MediaType),
		FileName:       req.FileName,
		IsUploading:    req.IsUploading,
		ReplyToID:      replyToID,
	})
	if !ok {
		return
	}

	if message, isMessage := result.(*models.Message); isMessage {
		s.publishToConversation(conversationID, websocket.EventMessageNew, message)
		if message.MediaType == models.MediaTypeAudio && message.MediaURL != "" {
			go s.transcribeVoiceNote(message.ID, message.MediaURL)
		}
	}
	respondJSON(w, result)
}

// handleListMessages is where the receipt reconciliation pipeline runs:
// snapshot the ledger, snapshot presence, then let the message store
// resolve marks against its own log.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	conversationID, ok := parseUUIDParam(w, r, "conversationId")
	if !ok {
		return
	}

	limit := 30
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}
	var before uuid.UUID
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		parsed, err := uuid.Parse(beforeStr)
		if err != nil {
			http.Error(w, "Invalid cursor format", http.StatusBadRequest)
			return
		}
		before = parsed
	}

	// 1. Ledger snapshot: recipients and their high-water marks.
	result, ok := s.request(w, s.Engine.GetConversationActor(), &actors.ReadStateMsg{
		ConversationID: conversationID,
		ViewerID:       userID,
	})
	if !ok {
		return
	}
	readState, isState := result.(*actors.ReadState)
	if !isState {
		respondJSON(w, result)
		return
	}

	// 2. Presence snapshot for the delivered tier.
	anyoneOnline := false
	result, ok = s.request(w, s.Engine.GetUserActor(), &actors.AnyOnlineMsg{UserIDs: readState.Recipients})
	if !ok {
		return
	}
	if online, isBool := result.(bool); isBool {
		anyoneOnline = online
	}

	// 3. Page the log with both snapshots attached.
	result, ok = s.request(w, s.Engine.GetMessageActor(), &actors.ListMessagesMsg{
		ConversationID: conversationID,
		ViewerID:       userID,
		Limit:          limit,
		Before:         before,
		Recipients:     readState.Recipients,
		Marks:          readState.Marks,
		AnyoneOnline:   anyoneOnline,
	})
	if !ok {
		return
	}
	respondJSON(w, result)
}

// HandleDeleteMessage deletes a message for everyone (sender only).
func (s *Server) HandleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			MessageID string `json:"messageId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		messageID, err := uuid.Parse(req.MessageID)
		if err != nil {
			http.Error(w, "Invalid message ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetMessageActor(), &actors.DeleteMessageMsg{
			MessageID:   messageID,
			RequesterID: userID,
		})
		if !ok {
			return
		}
		if message, isMessage := result.(*models.Message); isMessage {
			s.publishToConversation(message.ConversationID, websocket.EventMessageDeleted, message)
		}
		respondJSON(w, result)
	}
}

// HandleDeleteForMe hides a message from the caller only.
func (s *Server) HandleDeleteForMe() http.HandlerFunc {
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
			MessageID string `json:"messageId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		messageID, err := uuid.Parse(req.MessageID)
		if err != nil {
			http.Error(w, "Invalid message ID format", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetMessageActor(), &actors.DeleteForViewerMsg{
			MessageID: messageID,
			ViewerID:  userID,
		})
		if !ok {
			return
		}
		respondJSON(w, result)
	}
}

// HandleUpdateMedia finalizes an upload: swaps the placeholder URL for the
// stored one and kicks off transcription for voice notes.
func (s *Server) HandleUpdateMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if _, ok := requireUser(w, r); !ok {
			return
		}

		var req struct {
			MessageID string `json:"messageId"`
			MediaURL  string `json:"mediaUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		messageID, err := uuid.Parse(req.MessageID)
		if err != nil {
			http.Error(w, "Invalid message ID format", http.StatusBadRequest)
			return
		}
		if req.MediaURL == "" {
			http.Error(w, "mediaUrl required", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetMessageActor(), &actors.UpdateMediaMsg{
			MessageID: messageID,
			MediaURL:  req.MediaURL,
		})
		if !ok {
			return
		}
		if message, isMessage := result.(*models.Message); isMessage {
			s.publishToConversation(message.ConversationID, websocket.EventMessageNew, message)
			if message.MediaType == models.MediaTypeAudio {
				go s.transcribeVoiceNote(message.ID, message.MediaURL)
			}
		}
		respondJSON(w, result)
	}
}

// HandleReactions toggles an emoji reaction (POST) or lists grouped
// reactions for a message (GET).
func (s *Server) HandleReactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			messageID, ok := parseUUIDParam(w, r, "messageId")
			if !ok {
				return
			}
			result, ok := s.request(w, s.Engine.GetMessageActor(), &actors.GetReactionsMsg{MessageID: messageID})
			if !ok {
				return
			}
			respondJSON(w, result)

		case http.MethodPost:
			var req struct {
				MessageID string `json:"messageId"`
				Emoji     string `json:"emoji"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request", http.StatusBadRequest)
				return
			}
			messageID, err := uuid.Parse(req.MessageID)
			if err != nil {
				http.Error(w, "Invalid message ID format", http.StatusBadRequest)
				return
			}
			if req.Emoji == "" {
				http.Error(w, "Emoji required", http.StatusBadRequest)
				return
			}

			result, ok := s.request(w, s.Engine.GetMessageActor(), &actors.ToggleReactionMsg{
				MessageID: messageID,
				UserID:    userID,
				Emoji:     req.Emoji,
			})
			if !ok {
				return
			}
			if toggle, isToggle := result.(*actors.ReactionToggleResult); isToggle {
				// Resolve the conversation for fan-out. Best effort: the
				// toggle already succeeded, so a failed lookup must not
				// error the response.
				future := s.Context.RequestFuture(s.Engine.GetMessageActor(), &actors.GetMessageMsg{MessageID: messageID}, s.RequestTimeout)
				if msgResult, err := future.Result(); err == nil {
					if message, isMessage := msgResult.(*models.Message); isMessage {
						s.publishToConversation(message.ConversationID, websocket.EventReactionUpdated, map[string]interface{}{
							"messageId": messageID,
							"added":     toggle.Added,
							"groups":    toggle.Groups,
						})
					}
				}
			}
			respondJSON(w, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// transcribeVoiceNote fetches a finished voice note, runs it through the
// transcription model and stores the result. Failures fall back to a
// placeholder transcript; the message itself is never blocked.
func (s *Server) transcribeVoiceNote(messageID uuid.UUID, mediaURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	transcript := s.AI.TranscribeURL(ctx, mediaURL)

	future := s.Context.RequestFuture(s.Engine.GetMessageActor(), &actors.SetTranscriptMsg{
		MessageID:  messageID,
		Transcript: transcript,
	}, s.RequestTimeout)
	if _, err := future.Result(); err != nil {
		log.Printf("Failed to store transcript for message %s: %v", messageID, err)
		return
	}

	future = s.Context.RequestFuture(s.Engine.GetMessageActor(), &actors.GetMessageMsg{MessageID: messageID}, s.RequestTimeout)
	if result, err := future.Result(); err == nil {
		if message, isMessage := result.(*models.Message); isMessage {
			s.publishToConversation(message.ConversationID, websocket.EventMessageNew, message)
		}
	}
}
