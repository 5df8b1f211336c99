package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/ai"
	"github.com/ygstudio-game/chatPulse/internal/engine"
	"github.com/ygstudio-game/chatPulse/internal/middleware"
	"github.com/ygstudio-game/chatPulse/internal/rtc"
	"github.com/ygstudio-game/chatPulse/internal/types"
	"github.com/ygstudio-game/chatPulse/internal/utils"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestServer() *Server {
	system := actor.NewActorSystem()
	metrics := utils.NewMetricsCollector()
	chatEngine := engine.NewEngine(system, metrics, nil, 3*time.Second)

	hub := websocket.NewHub()
	go hub.Run()

	return NewServer(
		system,
		system.Root,
		chatEngine,
		hub,
		metrics,
		nil,
		ai.NewClient("", "", time.Second),
		rtc.NewTokenIssuer("", "", time.Hour),
	)
}

// doJSON performs a request as the given user and decodes the response.
func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, userID uuid.UUID, payload, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req = req.WithContext(middleware.SetUserIDInContext(req.Context(), userID))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func registerTestUser(t *testing.T, server *Server, name, email string) uuid.UUID {
	t.Helper()
	var resp types.LoginResponse
	w := doJSON(t, server.HandleUserRegistration(), "POST", "/user/register", uuid.Nil, RegisterUserRequest{
		Name:     name,
		Email:    email,
		Password: "password123",
	}, &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Token)

	userID, err := uuid.Parse(resp.UserID)
	assert.NoError(t, err)
	return userID
}

func setTestPresence(t *testing.T, server *Server, userID uuid.UUID, online bool) {
	t.Helper()
	w := doJSON(t, server.HandlePresence(), "POST", "/user/presence", userID,
		map[string]bool{"isOnline": online}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMessagingFlowWithReceipts(t *testing.T) {
	server := newTestServer()

	alice := registerTestUser(t, server, "alice", "alice@example.com")
	bob := registerTestUser(t, server, "bob", "bob@example.com")

	// Alice opens a conversation with Bob.
	var conversation struct {
		ID string `json:"id"`
	}
	w := doJSON(t, server.HandleConversations(), "POST", "/conversation", alice,
		CreateDirectRequest{ParticipantID: bob.String()}, &conversation)
	assert.Equal(t, http.StatusOK, w.Code)
	conversationID, err := uuid.Parse(conversation.ID)
	assert.NoError(t, err)

	// Bob goes offline before Alice sends anything.
	setTestPresence(t, server, bob, false)

	var sent struct {
		ID string `json:"id"`
	}
	w = doJSON(t, server.HandleMessages(), "POST", "/message", alice, SendMessageRequest{
		ConversationID: conversationID.String(),
		Content:        "hey bob",
	}, &sent)
	assert.Equal(t, http.StatusOK, w.Code)
	messageID, err := uuid.Parse(sent.ID)
	assert.NoError(t, err)

	listReceipt := func() string {
		var page struct {
			Messages []struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
			} `json:"messages"`
		}
		w := doJSON(t, server.HandleMessages(), "GET",
			"/message?conversationId="+conversationID.String(), alice, nil, &page)
		assert.Equal(t, http.StatusOK, w.Code)
		for _, message := range page.Messages {
			if message.ID == messageID.String() {
				return message.Receipt
			}
		}
		t.Fatalf("message %s missing from page", messageID)
		return ""
	}

	// Offline recipient, no mark: sent.
	assert.Equal(t, "sent", listReceipt())

	// Bob comes online: delivered.
	setTestPresence(t, server, bob, true)
	assert.Equal(t, "delivered", listReceipt())

	// Bob's unread counter saw the message.
	var summaries []struct {
		UnreadCount int `json:"unreadCount"`
	}
	// The unread bump is fire and forget; give it a beat.
	time.Sleep(100 * time.Millisecond)
	w = doJSON(t, server.HandleConversations(), "GET", "/conversation", bob, nil, &summaries)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].UnreadCount)

	// Bob opens the conversation: read for Alice, zero unread for Bob.
	w = doJSON(t, server.HandleMarkViewed(), "POST", "/conversation/view", bob,
		map[string]string{"conversationId": conversationID.String()}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "read", listReceipt())

	summaries = nil
	w = doJSON(t, server.HandleConversations(), "GET", "/conversation", bob, nil, &summaries)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, summaries[0].UnreadCount)

	// Bob going offline later never downgrades the read receipt.
	setTestPresence(t, server, bob, false)
	assert.Equal(t, "read", listReceipt())
}

func TestNonMemberCannotSendOrList(t *testing.T) {
	server := newTestServer()

	alice := registerTestUser(t, server, "alice", "alice@example.com")
	bob := registerTestUser(t, server, "bob", "bob@example.com")
	mallory := registerTestUser(t, server, "mallory", "mallory@example.com")

	var conversation struct {
		ID string `json:"id"`
	}
	w := doJSON(t, server.HandleConversations(), "POST", "/conversation", alice,
		CreateDirectRequest{ParticipantID: bob.String()}, &conversation)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, server.HandleMessages(), "POST", "/message", mallory, SendMessageRequest{
		ConversationID: conversation.ID,
		Content:        "let me in",
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, server.HandleMessages(), "GET",
		"/message?conversationId="+conversation.ID, mallory, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSummaryFallsBackWithoutModel(t *testing.T) {
	server := newTestServer()

	alice := registerTestUser(t, server, "alice", "alice@example.com")
	bob := registerTestUser(t, server, "bob", "bob@example.com")

	var conversation struct {
		ID string `json:"id"`
	}
	w := doJSON(t, server.HandleConversations(), "POST", "/conversation", alice,
		CreateDirectRequest{ParticipantID: bob.String()}, &conversation)
	assert.Equal(t, http.StatusOK, w.Code)

	// Empty history short-circuits before the model is consulted.
	var summary struct {
		Summary string `json:"summary"`
	}
	w = doJSON(t, server.HandleConversationSummary(), "GET",
		"/conversation/summary?conversationId="+conversation.ID, alice, nil, &summary)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ai.FallbackEmptySummary, summary.Summary)

	doJSON(t, server.HandleMessages(), "POST", "/message", alice, SendMessageRequest{
		ConversationID: conversation.ID,
		Content:        "lunch tomorrow?",
	}, nil)

	// With history but no API key the static error fallback is returned.
	w = doJSON(t, server.HandleConversationSummary(), "GET",
		"/conversation/summary?conversationId="+conversation.ID, alice, nil, &summary)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ai.FallbackSummaryError, summary.Summary)

	var replies struct {
		Replies []string `json:"replies"`
	}
	w = doJSON(t, server.HandleSmartReplies(), "GET",
		"/conversation/replies?conversationId="+conversation.ID, alice, nil, &replies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ai.FallbackReplies, replies.Replies)
}

func TestReactionToggleOverHTTP(t *testing.T) {
	server := newTestServer()

	alice := registerTestUser(t, server, "alice", "alice@example.com")
	bob := registerTestUser(t, server, "bob", "bob@example.com")

	var conversation struct {
		ID string `json:"id"`
	}
	w := doJSON(t, server.HandleConversations(), "POST", "/conversation", alice,
		CreateDirectRequest{ParticipantID: bob.String()}, &conversation)
	assert.Equal(t, http.StatusOK, w.Code)

	var sent struct {
		ID string `json:"id"`
	}
	w = doJSON(t, server.HandleMessages(), "POST", "/message", alice, SendMessageRequest{
		ConversationID: conversation.ID,
		Content:        "rate my playlist",
	}, &sent)
	assert.Equal(t, http.StatusOK, w.Code)

	toggle := func(emoji string) (int, struct {
		Added  bool `json:"added"`
		Groups []struct {
			Emoji string `json:"emoji"`
			Count int    `json:"count"`
		} `json:"groups"`
	}) {
		var resp struct {
			Added  bool `json:"added"`
			Groups []struct {
				Emoji string `json:"emoji"`
				Count int    `json:"count"`
			} `json:"groups"`
		}
		w := doJSON(t, server.HandleReactions(), "POST", "/message/reaction", bob,
			map[string]string{"messageId": sent.ID, "emoji": emoji}, &resp)
		// The body must be a single clean JSON document, whatever happens
		// during the post-toggle fan-out.
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &struct{}{}))
		return w.Code, resp
	}

	code, resp := toggle("🔥")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Added)
	assert.Len(t, resp.Groups, 1)
	assert.Equal(t, 1, resp.Groups[0].Count)

	code, resp = toggle("🔥")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Added)
	assert.Empty(t, resp.Groups)
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	server := newTestServer()

	alice := registerTestUser(t, server, "alice", "alice@example.com")
	bob := registerTestUser(t, server, "bob", "bob@example.com")
	carol := registerTestUser(t, server, "carol", "carol@example.com")

	var conversation struct {
		ID string `json:"id"`
	}
	w := doJSON(t, server.HandleCreateGroup(), "POST", "/conversation/group", alice, CreateGroupRequest{
		Name:      "trip planning",
		MemberIDs: []string{bob.String(), carol.String()},
	}, &conversation)
	assert.Equal(t, http.StatusOK, w.Code)

	doJSON(t, server.HandleMessages(), "POST", "/message", alice, SendMessageRequest{
		ConversationID: conversation.ID,
		Content:        "flights booked",
	}, nil)
	time.Sleep(100 * time.Millisecond)

	// Carol leaves; her membership is gone.
	w = doJSON(t, server.HandleLeaveGroup(), "POST", "/conversation/leave", carol,
		map[string]string{"conversationId": conversation.ID}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var summaries []struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
	}
	w = doJSON(t, server.HandleConversations(), "GET", "/conversation", carol, nil, &summaries)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, summaries)

	// Bob clears history: his view is empty, Alice still sees the message.
	w = doJSON(t, server.HandleClearConversation(), "POST", "/conversation/clear", bob,
		map[string]string{"conversationId": conversation.ID}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	countFor := func(userID uuid.UUID) int {
		var page struct {
			Messages []json.RawMessage `json:"messages"`
		}
		w := doJSON(t, server.HandleMessages(), "GET",
			"/message?conversationId="+conversation.ID, userID, nil, &page)
		assert.Equal(t, http.StatusOK, w.Code)
		return len(page.Messages)
	}
	assert.Equal(t, 0, countFor(bob))
	assert.Equal(t, 1, countFor(alice))
}
