package engine

import (
	"time"

	"github.com/ygstudio-game/chatPulse/internal/database"
	"github.com/ygstudio-game/chatPulse/internal/engine/actors"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine coordinates communication between actors
type Engine struct {
	conversationActor *actor.PID
	messageActor      *actor.PID
	userActor         *actor.PID
}

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector, mongodb *database.MongoDB, typingLeaseTTL time.Duration) *Engine {
	context := system.Root

	conversationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewConversationActor(metrics, mongodb, typingLeaseTTL)
	})
	conversationPID := context.Spawn(conversationProps)

	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(metrics, mongodb)
	})
	messagePID := context.Spawn(messageProps)

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor(metrics, mongodb)
	})
	userPID := context.Spawn(userProps)

	// Cross-wire the store and the ledger: appends notify the ledger,
	// markViewed can fall back to the store for the newest message.
	context.Send(conversationPID, &actors.BindMessageActorMsg{PID: messagePID})
	context.Send(messagePID, &actors.BindConversationActorMsg{PID: conversationPID})

	return &Engine{
		conversationActor: conversationPID,
		messageActor:      messagePID,
		userActor:         userPID,
	}
}

// GetConversationActor returns the PID of the conversation actor
func (e *Engine) GetConversationActor() *actor.PID {
	return e.conversationActor
}

// GetMessageActor returns the PID of the message actor
func (e *Engine) GetMessageActor() *actor.PID {
	return e.messageActor
}

// GetUserActor returns the PID of the user actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.userActor
}
