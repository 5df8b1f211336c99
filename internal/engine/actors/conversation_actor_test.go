package actors

import (
	"testing"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func spawnLedger(system *actor.ActorSystem, leaseTTL time.Duration) *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewConversationActor(utils.NewMetricsCollector(), nil, leaseTTL)
	})
	return system.Root.Spawn(props)
}

func TestUnreadCountersFollowAppendsAndViews(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 3*time.Second)

	creator := uuid.New()
	memberB := uuid.New()
	memberC := uuid.New()

	future := system.Root.RequestFuture(pid, &CreateGroupMsg{
		CreatorID: creator,
		Name:      "weekend plans",
		MemberIDs: []uuid.UUID{memberB, memberC},
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	conversation := result.(*models.Conversation)

	// Two messages from the creator bump everyone else by two.
	system.Root.Send(pid, &MessageAppendedMsg{
		ConversationID: conversation.ID,
		MessageID:      uuid.New(),
		SenderID:       creator,
	})
	lastMessageID := uuid.New()
	system.Root.Send(pid, &MessageAppendedMsg{
		ConversationID: conversation.ID,
		MessageID:      lastMessageID,
		SenderID:       creator,
	})
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 2, unreadFor(t, system, pid, memberB, conversation.ID))
	assert.Equal(t, 2, unreadFor(t, system, pid, memberC, conversation.ID))
	assert.Equal(t, 0, unreadFor(t, system, pid, creator, conversation.ID))

	// B views; only B resets.
	future = system.Root.RequestFuture(pid, &MarkViewedMsg{
		UserID:         memberB,
		ConversationID: conversation.ID,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	membership := result.(*models.Membership)
	assert.Equal(t, 0, membership.UnreadCount)
	assert.Equal(t, lastMessageID, membership.LastSeenMessageID)

	assert.Equal(t, 0, unreadFor(t, system, pid, memberB, conversation.ID))
	assert.Equal(t, 2, unreadFor(t, system, pid, memberC, conversation.ID))
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 3*time.Second)

	userA := uuid.New()
	userB := uuid.New()

	future := system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userA,
		ParticipantID: userB,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	conversation := result.(*models.Conversation)

	messageID := uuid.New()
	system.Root.Send(pid, &MessageAppendedMsg{
		ConversationID: conversation.ID,
		MessageID:      messageID,
		SenderID:       userA,
	})
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		future = system.Root.RequestFuture(pid, &MarkViewedMsg{
			UserID:         userB,
			ConversationID: conversation.ID,
		}, 5*time.Second)
		result, err = future.Result()
		assert.NoError(t, err)
		membership := result.(*models.Membership)
		assert.Equal(t, 0, membership.UnreadCount)
		assert.Equal(t, messageID, membership.LastSeenMessageID)
	}
}

func TestDirectConversationIsReused(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 3*time.Second)

	userA := uuid.New()
	userB := uuid.New()

	future := system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userA,
		ParticipantID: userB,
	}, 5*time.Second)
	first, err := future.Result()
	assert.NoError(t, err)

	// Opening from the other side lands in the same conversation.
	future = system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userB,
		ParticipantID: userA,
	}, 5*time.Second)
	second, err := future.Result()
	assert.NoError(t, err)

	assert.Equal(t, first.(*models.Conversation).ID, second.(*models.Conversation).ID)
}

func TestReadStateExcludesViewer(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 3*time.Second)

	userA := uuid.New()
	userB := uuid.New()

	future := system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userA,
		ParticipantID: userB,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	conversation := result.(*models.Conversation)

	messageID := uuid.New()
	system.Root.Send(pid, &MessageAppendedMsg{
		ConversationID: conversation.ID,
		MessageID:      messageID,
		SenderID:       userA,
	})
	time.Sleep(50 * time.Millisecond)

	future = system.Root.RequestFuture(pid, &MarkViewedMsg{
		UserID:         userB,
		ConversationID: conversation.ID,
	}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	future = system.Root.RequestFuture(pid, &ReadStateMsg{
		ConversationID: conversation.ID,
		ViewerID:       userA,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	state := result.(*ReadState)

	assert.Equal(t, []uuid.UUID{userB}, state.Recipients)
	assert.Equal(t, messageID, state.Marks[userB])

	// Non-members get rejected.
	future = system.Root.RequestFuture(pid, &ReadStateMsg{
		ConversationID: conversation.ID,
		ViewerID:       uuid.New(),
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrNotConversationMember, appErr.Code)
}

func TestTypingLeaseExpires(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 150*time.Millisecond)

	userA := uuid.New()
	userB := uuid.New()

	future := system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userA,
		ParticipantID: userB,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	conversation := result.(*models.Conversation)

	future = system.Root.RequestFuture(pid, &StartTypingMsg{
		UserID:         userA,
		ConversationID: conversation.ID,
	}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	// B sees A typing; A never sees themselves.
	future = system.Root.RequestFuture(pid, &GetTypingMsg{
		ConversationID: conversation.ID,
		ViewerID:       userB,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Equal(t, []uuid.UUID{userA}, result.([]uuid.UUID))

	future = system.Root.RequestFuture(pid, &GetTypingMsg{
		ConversationID: conversation.ID,
		ViewerID:       userA,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Empty(t, result.([]uuid.UUID))

	// Lease lapses without an explicit stop.
	time.Sleep(200 * time.Millisecond)
	future = system.Root.RequestFuture(pid, &GetTypingMsg{
		ConversationID: conversation.ID,
		ViewerID:       userB,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Empty(t, result.([]uuid.UUID))
}

func TestCallLifecycle(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 3*time.Second)

	userA := uuid.New()
	userB := uuid.New()

	future := system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userA,
		ParticipantID: userB,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	conversation := result.(*models.Conversation)

	future = system.Root.RequestFuture(pid, &StartCallMsg{
		ConversationID: conversation.ID,
		CallerID:       userA,
		Type:           models.CallTypeVideo,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	call := result.(*models.OngoingCall)
	assert.Equal(t, models.CallStatusRinging, call.Status)

	// B can find the ringing call.
	future = system.Root.RequestFuture(pid, &GetOngoingCallMsg{UserID: userB}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	state := result.(*ConversationState)
	assert.NotNil(t, state.Conversation)
	assert.Equal(t, conversation.ID, state.Conversation.ID)

	future = system.Root.RequestFuture(pid, &AcceptCallMsg{
		ConversationID: conversation.ID,
		UserID:         userB,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Equal(t, models.CallStatusAccepted, result.(*models.OngoingCall).Status)

	future = system.Root.RequestFuture(pid, &DeclineCallMsg{
		ConversationID: conversation.ID,
		UserID:         userB,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.True(t, result.(bool))

	future = system.Root.RequestFuture(pid, &GetOngoingCallMsg{UserID: userA}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Nil(t, result.(*ConversationState).Conversation)
}

func TestCallAcceptRequiresMembership(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnLedger(system, 3*time.Second)

	userA := uuid.New()
	userB := uuid.New()
	outsider := uuid.New()

	future := system.Root.RequestFuture(pid, &GetOrCreateDirectMsg{
		UserID:        userA,
		ParticipantID: userB,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	conversation := result.(*models.Conversation)

	future = system.Root.RequestFuture(pid, &StartCallMsg{
		ConversationID: conversation.ID,
		CallerID:       userA,
		Type:           models.CallTypeAudio,
	}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	future = system.Root.RequestFuture(pid, &AcceptCallMsg{
		ConversationID: conversation.ID,
		UserID:         outsider,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr := result.(*utils.AppError)
	assert.Equal(t, utils.ErrNotConversationMember, appErr.Code)

	// The call is still ringing for the real members.
	future = system.Root.RequestFuture(pid, &GetOngoingCallMsg{UserID: userB}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	state := result.(*ConversationState)
	assert.NotNil(t, state.Conversation)
	assert.Equal(t, models.CallStatusRinging, state.Conversation.OngoingCall.Status)
}

func unreadFor(t *testing.T, system *actor.ActorSystem, pid *actor.PID, userID, conversationID uuid.UUID) int {
	t.Helper()
	future := system.Root.RequestFuture(pid, &ListConversationsMsg{UserID: userID}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	for _, summary := range result.([]*ConversationSummary) {
		if summary.Conversation.ID == conversationID {
			return summary.UnreadCount
		}
	}
	t.Fatalf("conversation %s not listed for user %s", conversationID, userID)
	return -1
}
