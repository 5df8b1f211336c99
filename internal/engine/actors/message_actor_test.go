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

func spawnMessageStore(system *actor.ActorSystem) *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(utils.NewMetricsCollector(), nil)
	})
	return system.Root.Spawn(props)
}

func appendText(t *testing.T, system *actor.ActorSystem, pid *actor.PID, conversationID, senderID uuid.UUID, content string) *models.Message {
	t.Helper()
	future := system.Root.RequestFuture(pid, &AppendMessageMsg{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	return result.(*models.Message)
}

func TestReconcileReceipt(t *testing.T) {
	now := time.Now()
	recipientB := uuid.New()
	recipientC := uuid.New()
	recipients := []uuid.UUID{recipientB, recipientC}

	// Nobody has a mark, nobody online: stays sent.
	status := reconcileReceipt(now, recipients, map[uuid.UUID]time.Time{}, false)
	assert.Equal(t, models.ReceiptSent, status)

	// Someone online upgrades to delivered.
	status = reconcileReceipt(now, recipients, map[uuid.UUID]time.Time{}, true)
	assert.Equal(t, models.ReceiptDelivered, status)

	// One mark past the message is not enough for read.
	partial := map[uuid.UUID]time.Time{recipientB: now.Add(time.Second)}
	status = reconcileReceipt(now, recipients, partial, true)
	assert.Equal(t, models.ReceiptDelivered, status)

	// Every mark at or past the message: read, even with nobody online.
	all := map[uuid.UUID]time.Time{
		recipientB: now.Add(time.Second),
		recipientC: now,
	}
	status = reconcileReceipt(now, recipients, all, false)
	assert.Equal(t, models.ReceiptRead, status)

	// A mark behind the message keeps it unread.
	stale := map[uuid.UUID]time.Time{
		recipientB: now.Add(time.Second),
		recipientC: now.Add(-time.Second),
	}
	status = reconcileReceipt(now, recipients, stale, false)
	assert.Equal(t, models.ReceiptSent, status)

	// No recipients at all: sent.
	status = reconcileReceipt(now, nil, nil, true)
	assert.Equal(t, models.ReceiptSent, status)
}

func TestReceiptLifecycleThroughList(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()
	recipient := uuid.New()

	first := appendText(t, system, pid, conversationID, sender, "hello")
	second := appendText(t, system, pid, conversationID, sender, "are you there?")

	list := func(marks map[uuid.UUID]uuid.UUID, anyoneOnline bool) map[uuid.UUID]models.Receipt {
		future := system.Root.RequestFuture(pid, &ListMessagesMsg{
			ConversationID: conversationID,
			ViewerID:       sender,
			Recipients:     []uuid.UUID{recipient},
			Marks:          marks,
			AnyoneOnline:   anyoneOnline,
		}, 5*time.Second)
		result, err := future.Result()
		assert.NoError(t, err)
		receipts := make(map[uuid.UUID]models.Receipt)
		for _, view := range result.(*MessagePage).Messages {
			receipts[view.ID] = view.Receipt
		}
		return receipts
	}

	// Recipient offline with no mark: everything sent.
	receipts := list(nil, false)
	assert.Equal(t, models.ReceiptSent, receipts[first.ID])
	assert.Equal(t, models.ReceiptSent, receipts[second.ID])

	// Recipient comes online: delivered.
	receipts = list(nil, true)
	assert.Equal(t, models.ReceiptDelivered, receipts[first.ID])
	assert.Equal(t, models.ReceiptDelivered, receipts[second.ID])

	// Mark at the first message: first read, second still delivered.
	receipts = list(map[uuid.UUID]uuid.UUID{recipient: first.ID}, true)
	assert.Equal(t, models.ReceiptRead, receipts[first.ID])
	assert.Equal(t, models.ReceiptDelivered, receipts[second.ID])

	// Mark at the latest: everything read, online or not.
	receipts = list(map[uuid.UUID]uuid.UUID{recipient: second.ID}, false)
	assert.Equal(t, models.ReceiptRead, receipts[first.ID])
	assert.Equal(t, models.ReceiptRead, receipts[second.ID])
}

func TestReceiptOnlyComputedForOwnMessages(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()
	viewer := uuid.New()

	appendText(t, system, pid, conversationID, sender, "hi")

	future := system.Root.RequestFuture(pid, &ListMessagesMsg{
		ConversationID: conversationID,
		ViewerID:       viewer,
		Recipients:     []uuid.UUID{sender},
		Marks:          map[uuid.UUID]uuid.UUID{},
		AnyoneOnline:   true,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	page := result.(*MessagePage)
	assert.Len(t, page.Messages, 1)
	// Not the viewer's message, so no receipt is derived for it.
	assert.Equal(t, models.ReceiptSent, page.Messages[0].Receipt)
}

func TestMessagePagination(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		message := appendText(t, system, pid, conversationID, sender, "msg")
		ids = append(ids, message.ID)
	}

	future := system.Root.RequestFuture(pid, &ListMessagesMsg{
		ConversationID: conversationID,
		ViewerID:       sender,
		Limit:          2,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	page := result.(*MessagePage)
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	// Newest first.
	assert.Equal(t, ids[4], page.Messages[0].ID)
	assert.Equal(t, ids[3], page.Messages[1].ID)

	future = system.Root.RequestFuture(pid, &ListMessagesMsg{
		ConversationID: conversationID,
		ViewerID:       sender,
		Limit:          2,
		Before:         page.NextCursor,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	page = result.(*MessagePage)
	assert.Equal(t, ids[2], page.Messages[0].ID)
	assert.Equal(t, ids[1], page.Messages[1].ID)
	assert.True(t, page.HasMore)
}

func TestDeleteMessageForEveryone(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()
	other := uuid.New()

	future := system.Root.RequestFuture(pid, &AppendMessageMsg{
		ConversationID: conversationID,
		SenderID:       sender,
		Content:        "voice note",
		Type:           models.MessageTypeText,
		MediaURL:       "https://cdn.example.com/note.ogg",
		MediaType:      models.MediaTypeAudio,
		FileName:       "note.ogg",
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	message := result.(*models.Message)

	// Someone else cannot delete it.
	future = system.Root.RequestFuture(pid, &DeleteMessageMsg{
		MessageID:   message.ID,
		RequesterID: other,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, isAppErr := result.(*utils.AppError)
	assert.True(t, isAppErr)
	assert.Equal(t, utils.ErrUnauthorized, appErr.Code)

	// The sender can; content is tombstoned and media cleared.
	future = system.Root.RequestFuture(pid, &DeleteMessageMsg{
		MessageID:   message.ID,
		RequesterID: sender,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	deleted := result.(*models.Message)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, models.DeletedPlaceholder, deleted.Content)
	assert.Empty(t, deleted.MediaURL)
	assert.Empty(t, deleted.FileName)
}

func TestDeleteForViewerHidesOnlyForThatViewer(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()
	viewer := uuid.New()

	message := appendText(t, system, pid, conversationID, sender, "secret")

	future := system.Root.RequestFuture(pid, &DeleteForViewerMsg{
		MessageID: message.ID,
		ViewerID:  viewer,
	}, 5*time.Second)
	_, err := future.Result()
	assert.NoError(t, err)

	listFor := func(viewerID uuid.UUID) int {
		future := system.Root.RequestFuture(pid, &ListMessagesMsg{
			ConversationID: conversationID,
			ViewerID:       viewerID,
		}, 5*time.Second)
		result, err := future.Result()
		assert.NoError(t, err)
		return len(result.(*MessagePage).Messages)
	}

	assert.Equal(t, 0, listFor(viewer))
	assert.Equal(t, 1, listFor(sender))
}

func TestReactionToggleIsItsOwnInverse(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()
	reactor := uuid.New()

	message := appendText(t, system, pid, conversationID, sender, "nice")

	toggle := func(userID uuid.UUID, emoji string) interface{} {
		future := system.Root.RequestFuture(pid, &ToggleReactionMsg{
			MessageID: message.ID,
			UserID:    userID,
			Emoji:     emoji,
		}, 5*time.Second)
		result, err := future.Result()
		assert.NoError(t, err)
		return result
	}

	// Senders cannot react to their own messages.
	appErr, isAppErr := toggle(sender, "👍").(*utils.AppError)
	assert.True(t, isAppErr)
	assert.Equal(t, utils.ErrOwnMessageReaction, appErr.Code)

	added := toggle(reactor, "👍").(*ReactionToggleResult)
	assert.True(t, added.Added)
	assert.Len(t, added.Groups, 1)
	assert.Equal(t, 1, added.Groups[0].Count)

	// Same (user, emoji) again removes it.
	removed := toggle(reactor, "👍").(*ReactionToggleResult)
	assert.False(t, removed.Added)
	assert.Empty(t, removed.Groups)

	// Different emojis coexist.
	toggle(reactor, "❤️")
	result := toggle(reactor, "🔥").(*ReactionToggleResult)
	assert.Len(t, result.Groups, 2)
}

func TestReplyPreviewIsSanitizedAfterDelete(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	original := appendText(t, system, pid, conversationID, userA, "original")

	future := system.Root.RequestFuture(pid, &AppendMessageMsg{
		ConversationID: conversationID,
		SenderID:       userB,
		Content:        "replying to you",
		ReplyToID:      original.ID,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	reply := result.(*models.Message)

	future = system.Root.RequestFuture(pid, &DeleteMessageMsg{
		MessageID:   original.ID,
		RequesterID: userA,
	}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	future = system.Root.RequestFuture(pid, &ListMessagesMsg{
		ConversationID: conversationID,
		ViewerID:       userB,
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	page := result.(*MessagePage)

	var replyView *MessageView
	for _, view := range page.Messages {
		if view.ID == reply.ID {
			replyView = view
		}
	}
	assert.NotNil(t, replyView)
	assert.NotNil(t, replyView.ReplyTo)
	assert.Equal(t, models.DeletedPlaceholder, replyView.ReplyTo.Content)
	assert.Empty(t, replyView.ReplyTo.MediaURL)
}

func TestTranscriptAndMediaUpdates(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnMessageStore(system)

	conversationID := uuid.New()
	sender := uuid.New()

	future := system.Root.RequestFuture(pid, &AppendMessageMsg{
		ConversationID: conversationID,
		SenderID:       sender,
		MediaType:      models.MediaTypeAudio,
		FileName:       "note.ogg",
		IsUploading:    true,
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	message := result.(*models.Message)
	assert.True(t, message.IsUploading)

	future = system.Root.RequestFuture(pid, &UpdateMediaMsg{
		MessageID: message.ID,
		MediaURL:  "https://cdn.example.com/note.ogg",
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	updated := result.(*models.Message)
	assert.False(t, updated.IsUploading)
	assert.Equal(t, "https://cdn.example.com/note.ogg", updated.MediaURL)

	future = system.Root.RequestFuture(pid, &SetTranscriptMsg{
		MessageID:  message.ID,
		Transcript: "see you at noon",
	}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	future = system.Root.RequestFuture(pid, &GetMessageMsg{MessageID: message.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Equal(t, "see you at noon", result.(*models.Message).Transcript)
}
