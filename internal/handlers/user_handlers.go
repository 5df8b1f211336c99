package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/middleware"
	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/types"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/google/uuid"
)

// RegisterUserRequest represents a request to register a new user
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SyncUserRequest maps an external auth-provider identity to a local user
type SyncUserRequest struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	AvatarURL  string `json:"avatarUrl"`
}

// HandleUserRegistration handles requests to register a new user
func (s *Server) HandleUserRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req RegisterUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.Email == "" || req.Password == "" {
			http.Error(w, "Email and password required", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.RegisterUserMsg{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if !ok {
			return
		}

		user, isUser := result.(*models.User)
		if !isUser {
			respondJSON(w, result)
			return
		}

		token, err := middleware.GenerateToken(user.ID)
		if err != nil {
			log.Printf("HTTP Handler: Failed to generate token: %v", err)
			http.Error(w, "Failed to generate auth token", http.StatusInternalServerError)
			return
		}

		respondJSON(w, &types.LoginResponse{
			Success: true,
			Token:   token,
			UserID:  user.ID.String(),
		})
	}
}

// HandleUserLogin handles requests to log in a user
func (s *Server) HandleUserLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		log.Printf("HTTP Handler: Received login request for email: %s", req.Email)

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.LoginMsg{
			Email:    req.Email,
			Password: req.Password,
		})
		if !ok {
			return
		}

		loginResp, isLogin := result.(*types.LoginResponse)
		if !isLogin {
			log.Printf("HTTP Handler: Invalid response type: %T", result)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Only generate token if login was successful
		if loginResp.Success {
			userID, err := uuid.Parse(loginResp.UserID)
			if err != nil {
				log.Printf("HTTP Handler: Invalid user ID format: %v", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			token, err := middleware.GenerateToken(userID)
			if err != nil {
				log.Printf("HTTP Handler: Failed to generate token: %v", err)
				http.Error(w, "Failed to generate auth token", http.StatusInternalServerError)
				return
			}
			loginResp.Token = token
		} else {
			w.WriteHeader(http.StatusUnauthorized)
		}

		respondJSON(w, loginResp)
	}
}

// HandleUserSync upserts a user from an external identity provider and
// returns a session token for it.
func (s *Server) HandleUserSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req SyncUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		if req.ExternalID == "" {
			http.Error(w, "externalId required", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.SyncUserMsg{
			ExternalID: req.ExternalID,
			Name:       req.Name,
			Email:      req.Email,
			AvatarURL:  req.AvatarURL,
		})
		if !ok {
			return
		}

		user, isUser := result.(*models.User)
		if !isUser {
			respondJSON(w, result)
			return
		}

		token, err := middleware.GenerateToken(user.ID)
		if err != nil {
			log.Printf("HTTP Handler: Failed to generate token: %v", err)
			http.Error(w, "Failed to generate auth token", http.StatusInternalServerError)
			return
		}

		respondJSON(w, map[string]interface{}{
			"user":  user,
			"token": token,
		})
	}
}

// HandleCurrentUser returns the authenticated user's profile.
func (s *Server) HandleCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.GetUserMsg{UserID: userID})
		if !ok {
			return
		}
		respondJSON(w, result)
	}
}

// HandleUserSearch returns users matching a name prefix, excluding the caller.
func (s *Server) HandleUserSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.SearchUsersMsg{
			Query:     r.URL.Query().Get("q"),
			ExcludeID: userID,
		})
		if !ok {
			return
		}
		respondJSON(w, result)
	}
}

// HandlePresence flips the caller's online flag. The websocket hub does
// this automatically on connect and disconnect; this endpoint exists for
// clients that poll over plain HTTP.
func (s *Server) HandlePresence() http.HandlerFunc {
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
			IsOnline bool `json:"isOnline"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		result, ok := s.request(w, s.Engine.GetUserActor(), &actors.SetPresenceMsg{
			UserID:   userID,
			IsOnline: req.IsOnline,
		})
		if !ok {
			return
		}
		respondJSON(w, result)
	}
}

// OnUserConnected marks a user online when their first socket registers.
func (s *Server) OnUserConnected(userID uuid.UUID) {
	s.setPresence(userID, true)
}

// OnUserDisconnected marks a user offline when their last socket closes.
func (s *Server) OnUserDisconnected(userID uuid.UUID) {
	s.setPresence(userID, false)
}

// setPresence flips a user's online flag from hub connect and disconnect
// callbacks, then notifies the user's conversation partners.
func (s *Server) setPresence(userID uuid.UUID, online bool) {
	future := s.Context.RequestFuture(s.Engine.GetUserActor(), &actors.SetPresenceMsg{
		UserID:   userID,
		IsOnline: online,
	}, s.RequestTimeout)
	if _, err := future.Result(); err != nil {
		log.Printf("Failed to update presence for User %s: %v", userID, err)
		return
	}

	// Tell everyone who shares a conversation with this user.
	future = s.Context.RequestFuture(s.Engine.GetConversationActor(), &actors.ListConversationsMsg{
		UserID: userID,
	}, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		return
	}
	summaries, okType := result.([]*actors.ConversationSummary)
	if !okType {
		return
	}

	notified := make(map[uuid.UUID]bool)
	for _, summary := range summaries {
		for _, memberID := range summary.MemberIDs {
			if memberID == userID || notified[memberID] {
				continue
			}
			notified[memberID] = true
		}
	}
	targets := make([]uuid.UUID, 0, len(notified))
	for memberID := range notified {
		targets = append(targets, memberID)
	}
	s.Hub.PublishEvent(targets, &websocket.Event{
		Type: websocket.EventPresenceUpdated,
		Data: map[string]interface{}{
			"userId":   userID,
			"isOnline": online,
		},
	})
}
