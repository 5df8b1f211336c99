package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/ygstudio-game/chatPulse/internal/ai"
	"github.com/ygstudio-game/chatPulse/internal/config"
	"github.com/ygstudio-game/chatPulse/internal/database"
	"github.com/ygstudio-game/chatPulse/internal/engine"
	"github.com/ygstudio-game/chatPulse/internal/handlers"
	"github.com/ygstudio-game/chatPulse/internal/middleware"
	"github.com/ygstudio-game/chatPulse/internal/rtc"
	"github.com/ygstudio-game/chatPulse/internal/utils"
	"github.com/ygstudio-game/chatPulse/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.SetSigningKey(cfg.JWTSecret)

	metrics := utils.NewMetricsCollector()

	// MongoDB is the persistence layer; the actors keep the hot state.
	mongodb, err := database.NewMongoDB(cfg.Database.URI, cfg.Database.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongodb.Close(context.Background())

	// Initialize actor system
	system := actor.NewActorSystem()
	chatEngine := engine.NewEngine(system, metrics, mongodb, cfg.TypingLeaseTTL)

	hub := websocket.NewHub()
	go hub.Run()

	aiClient := ai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	rooms := rtc.NewTokenIssuer(cfg.Room.APIKey, cfg.Room.APISecret, cfg.Room.TokenTTL)

	server := handlers.NewServer(system, system.Root, chatEngine, hub, metrics, mongodb, aiClient, rooms)

	// WebSocket connects and disconnects drive presence.
	hub.OnConnect = server.OnUserConnected
	hub.OnDisconnect = server.OnUserDisconnected

	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	register := func(path string, handler http.HandlerFunc) {
		http.HandleFunc(path, middleware.ApplyCORS(middleware.ApplyJWTMiddleware(handler, path), corsConfig))
	}

	register("/health", server.HandleHealth())

	register("/user/register", server.HandleUserRegistration())
	register("/user/login", server.HandleUserLogin())
	register("/user/sync", server.HandleUserSync())
	register("/user/me", server.HandleCurrentUser())
	register("/user/search", server.HandleUserSearch())
	register("/user/presence", server.HandlePresence())

	register("/conversation", server.HandleConversations())
	register("/conversation/group", server.HandleCreateGroup())
	register("/conversation/view", server.HandleMarkViewed())
	register("/conversation/leave", server.HandleLeaveGroup())
	register("/conversation/clear", server.HandleClearConversation())
	register("/conversation/typing", server.HandleTyping())
	register("/conversation/summary", server.HandleConversationSummary())
	register("/conversation/replies", server.HandleSmartReplies())

	register("/message", server.HandleMessages())
	register("/message/delete", server.HandleDeleteMessage())
	register("/message/delete-for-me", server.HandleDeleteForMe())
	register("/message/media", server.HandleUpdateMedia())
	register("/message/reaction", server.HandleReactions())

	register("/call/start", server.HandleStartCall())
	register("/call/accept", server.HandleAcceptCall())
	register("/call/decline", server.HandleDeclineCall())
	register("/call/ongoing", server.HandleOngoingCall())

	// WebSocket authenticates via query token, not the Authorization header.
	http.HandleFunc("/ws", middleware.ApplyCORS(server.HandleWebSocket(), corsConfig))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, nil); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
