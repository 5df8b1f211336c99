package actors

import (
	"log"
	"time"

	stdctx "context"

	"github.com/ygstudio-game/chatPulse/internal/database"
	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for MessageActor
type (
	// BindConversationActorMsg wires the conversation actor PID so appends
	// can notify the ledger.
	BindConversationActorMsg struct {
		PID *actor.PID
	}

	AppendMessageMsg struct {
		ConversationID uuid.UUID          `json:"conversationId"`
		SenderID       uuid.UUID          `json:"senderId"`
		Content        string             `json:"content"`
		Type           models.MessageType `json:"type"`
		MediaURL       string             `json:"mediaUrl"`
		MediaType      models.MediaType   `json:"mediaType"`
		FileName       string             `json:"fileName"`
		IsUploading    bool               `json:"isUploading"`
		ReplyToID      uuid.UUID          `json:"replyToId"`
	}

	// ListMessagesMsg carries ledger and presence snapshots taken by the
	// caller; marks are resolved to creation times against the local log.
	ListMessagesMsg struct {
		ConversationID uuid.UUID
		ViewerID       uuid.UUID
		Limit          int
		Before         uuid.UUID // exclusive cursor, uuid.Nil for newest page
		Recipients     []uuid.UUID
		Marks          map[uuid.UUID]uuid.UUID
		AnyoneOnline   bool
	}

	DeleteMessageMsg struct {
		MessageID   uuid.UUID `json:"messageId"`
		RequesterID uuid.UUID `json:"requesterId"`
	}

	DeleteForViewerMsg struct {
		MessageID uuid.UUID `json:"messageId"`
		ViewerID  uuid.UUID `json:"viewerId"`
	}

	HideConversationMsg struct {
		ConversationID uuid.UUID `json:"conversationId"`
		ViewerID       uuid.UUID `json:"viewerId"`
	}

	ToggleReactionMsg struct {
		MessageID uuid.UUID `json:"messageId"`
		UserID    uuid.UUID `json:"userId"`
		Emoji     string    `json:"emoji"`
	}

	GetReactionsMsg struct {
		MessageID uuid.UUID `json:"messageId"`
	}

	UpdateMediaMsg struct {
		MessageID uuid.UUID `json:"messageId"`
		MediaURL  string    `json:"mediaUrl"`
	}

	SetTranscriptMsg struct {
		MessageID  uuid.UUID `json:"messageId"`
		Transcript string    `json:"transcript"`
	}

	GetMessageMsg struct {
		MessageID uuid.UUID `json:"messageId"`
	}

	LatestMessageMsg struct {
		ConversationID uuid.UUID `json:"conversationId"`
	}

	GetHistoryMsg struct {
		ConversationID uuid.UUID `json:"conversationId"`
		Limit          int       `json:"limit"`
	}
)

// MessageView is a message enriched for display: the effective receipt
// recomputed from the ledger snapshot, a sanitized reply preview and
// grouped reactions.
type MessageView struct {
	models.Message
	Receipt   models.Receipt         `json:"receipt"`
	ReplyTo   *models.Message        `json:"replyToMessage,omitempty"`
	Reactions []models.ReactionGroup `json:"reactions"`
}

// MessagePage is one reverse-chronological page of a conversation.
type MessagePage struct {
	Messages   []*MessageView `json:"messages"`
	HasMore    bool           `json:"hasMore"`
	NextCursor uuid.UUID      `json:"nextCursor,omitempty"`
}

// ReactionToggleResult reports the outcome of a toggle and the resulting
// grouped reactions for the message.
type ReactionToggleResult struct {
	Added  bool                   `json:"added"`
	Groups []models.ReactionGroup `json:"groups"`
}

// MessageActor owns the per-conversation message log and reactions, and
// computes effective receipt status at read time. Receipt status is a
// view over the ledger snapshot handed in with each list request, never a
// stored per-message transition.
type MessageActor struct {
	messagesByID    map[uuid.UUID]*models.Message
	byConversation  map[uuid.UUID][]*models.Message // append order, oldest first
	reactions       map[uuid.UUID][]*models.Reaction
	conversationPID *actor.PID
	mongodb         *database.MongoDB
	metrics         *utils.MetricsCollector
}

func NewMessageActor(metrics *utils.MetricsCollector, mongodb *database.MongoDB) actor.Actor {
	return &MessageActor{
		messagesByID:   make(map[uuid.UUID]*models.Message),
		byConversation: make(map[uuid.UUID][]*models.Message),
		reactions:      make(map[uuid.UUID][]*models.Reaction),
		mongodb:        mongodb,
		metrics:        metrics,
	}
}

func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.loadFromMongo()

	case *BindConversationActorMsg:
		a.conversationPID = msg.PID

	case *AppendMessageMsg:
		a.handleAppend(context, msg)

	case *ListMessagesMsg:
		a.handleList(context, msg)

	case *DeleteMessageMsg:
		a.handleDelete(context, msg)

	case *DeleteForViewerMsg:
		a.handleDeleteForViewer(context, msg)

	case *HideConversationMsg:
		a.handleHideConversation(context, msg)

	case *ToggleReactionMsg:
		a.handleToggleReaction(context, msg)

	case *GetReactionsMsg:
		context.Respond(a.groupReactions(msg.MessageID))

	case *UpdateMediaMsg:
		message, exists := a.messagesByID[msg.MessageID]
		if !exists {
			context.Respond(utils.NewMessageNotFoundError(msg.MessageID.String()))
			return
		}
		message.MediaURL = msg.MediaURL
		message.IsUploading = false
		a.persistMessage(message)
		context.Respond(message)

	case *SetTranscriptMsg:
		message, exists := a.messagesByID[msg.MessageID]
		if !exists {
			context.Respond(utils.NewMessageNotFoundError(msg.MessageID.String()))
			return
		}
		message.Transcript = msg.Transcript
		a.persistMessage(message)
		context.Respond(true)

	case *GetMessageMsg:
		if message, exists := a.messagesByID[msg.MessageID]; exists {
			context.Respond(message)
		} else {
			context.Respond(utils.NewMessageNotFoundError(msg.MessageID.String()))
		}

	case *LatestMessageMsg:
		conversationLog := a.byConversation[msg.ConversationID]
		if len(conversationLog) == 0 {
			context.Respond(utils.NewAppError(utils.ErrNotFound, "conversation has no messages", nil))
			return
		}
		context.Respond(conversationLog[len(conversationLog)-1])

	case *GetHistoryMsg:
		a.handleHistory(context, msg)

	case *GetCountsMsg:
		context.Respond(len(a.messagesByID))
	}
}

func (a *MessageActor) handleAppend(context actor.Context, msg *AppendMessageMsg) {
	startTime := time.Now()

	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		Receipt:        models.ReceiptSent,
		MediaURL:       msg.MediaURL,
		MediaType:      msg.MediaType,
		FileName:       msg.FileName,
		IsUploading:    msg.IsUploading,
		ReplyToID:      msg.ReplyToID,
		CreatedAt:      time.Now(),
	}
	if message.Type == "" {
		message.Type = models.MessageTypeText
	}

	a.messagesByID[message.ID] = message
	a.byConversation[msg.ConversationID] = append(a.byConversation[msg.ConversationID], message)
	a.persistMessage(message)

	// Ledger side: bump unread counters and the cached latest pointer.
	// Fire and forget; the two writes are eventually consistent.
	if a.conversationPID != nil {
		context.Send(a.conversationPID, &MessageAppendedMsg{
			ConversationID: msg.ConversationID,
			MessageID:      message.ID,
			SenderID:       msg.SenderID,
		})
	}

	a.metrics.AddOperationLatency("append_message", time.Since(startTime))
	context.Respond(message)
}

func (a *MessageActor) handleList(context actor.Context, msg *ListMessagesMsg) {
	startTime := time.Now()

	limit := msg.Limit
	if limit <= 0 {
		limit = 30
	}

	// Resolve each recipient's high-water mark to a creation time. An
	// unknown or missing mark resolves to zero, which counts as unread.
	readTimes := make(map[uuid.UUID]time.Time, len(msg.Recipients))
	for _, recipient := range msg.Recipients {
		if markID, ok := msg.Marks[recipient]; ok {
			if marked, exists := a.messagesByID[markID]; exists {
				readTimes[recipient] = marked.CreatedAt
			}
		}
	}

	conversationLog := a.byConversation[msg.ConversationID]
	start := len(conversationLog)
	if msg.Before != uuid.Nil {
		for i := len(conversationLog) - 1; i >= 0; i-- {
			if conversationLog[i].ID == msg.Before {
				start = i
				break
			}
		}
	}

	page := &MessagePage{Messages: make([]*MessageView, 0, limit)}
	i := start - 1
	for ; i >= 0 && len(page.Messages) < limit; i-- {
		message := conversationLog[i]
		if message.HiddenFor(msg.ViewerID) {
			continue
		}
		page.Messages = append(page.Messages, a.enrich(message, msg, readTimes))
	}
	page.HasMore = i >= 0
	if n := len(page.Messages); n > 0 {
		page.NextCursor = page.Messages[n-1].ID
	}

	a.metrics.AddOperationLatency("list_messages", time.Since(startTime))
	context.Respond(page)
}

// enrich builds the display view of one message: effective receipt for the
// viewer's own messages, sanitized reply preview, grouped reactions.
func (a *MessageActor) enrich(message *models.Message, msg *ListMessagesMsg, readTimes map[uuid.UUID]time.Time) *MessageView {
	view := &MessageView{
		Message:   *message,
		Receipt:   models.ReceiptSent,
		Reactions: a.groupReactions(message.ID),
	}

	if message.SenderID == msg.ViewerID {
		view.Receipt = reconcileReceipt(message.CreatedAt, msg.Recipients, readTimes, msg.AnyoneOnline)
	}

	if message.ReplyToID != uuid.Nil {
		if replyTo, exists := a.messagesByID[message.ReplyToID]; exists {
			preview := *replyTo
			if preview.Deleted || preview.HiddenFor(msg.ViewerID) {
				preview.Content = models.DeletedPlaceholder
				preview.MediaURL = ""
				preview.MediaType = ""
			}
			view.ReplyTo = &preview
		}
	}

	return view
}

// reconcileReceipt derives the status shown to a message's sender from the
// recipients' current high-water marks:
//
//	"read"      every recipient's mark is at or past the message
//	"delivered" not all read, but some recipient is online right now
//	"sent"      otherwise, and always when there are no recipients
//
// Recipients with no resolvable mark count as unread; missing presence
// counts as offline. Status is never upgraded on missing data.
func reconcileReceipt(createdAt time.Time, recipients []uuid.UUID, readTimes map[uuid.UUID]time.Time, anyoneOnline bool) models.Receipt {
	if len(recipients) == 0 {
		return models.ReceiptSent
	}

	allRead := true
	for _, recipient := range recipients {
		readTime, ok := readTimes[recipient]
		if !ok || readTime.Before(createdAt) {
			allRead = false
			break
		}
	}
	if allRead {
		return models.ReceiptRead
	}
	if anyoneOnline {
		return models.ReceiptDelivered
	}
	return models.ReceiptSent
}

func (a *MessageActor) handleDelete(context actor.Context, msg *DeleteMessageMsg) {
	message, exists := a.messagesByID[msg.MessageID]
	if !exists {
		context.Respond(utils.NewMessageNotFoundError(msg.MessageID.String()))
		return
	}
	if message.SenderID != msg.RequesterID {
		context.Respond(utils.NewUnauthorizedError("only the sender can delete this message"))
		return
	}

	message.Deleted = true
	message.Content = models.DeletedPlaceholder
	// Clear media references so renderers never try to resolve them.
	message.MediaURL = ""
	message.MediaType = ""
	message.FileName = ""
	message.IsUploading = false
	a.persistMessage(message)
	context.Respond(message)
}

func (a *MessageActor) handleDeleteForViewer(context actor.Context, msg *DeleteForViewerMsg) {
	message, exists := a.messagesByID[msg.MessageID]
	if !exists {
		context.Respond(utils.NewMessageNotFoundError(msg.MessageID.String()))
		return
	}
	if !message.HiddenFor(msg.ViewerID) {
		message.DeletedBy = append(message.DeletedBy, msg.ViewerID)
		a.persistMessage(message)
	}
	context.Respond(true)
}

func (a *MessageActor) handleHideConversation(context actor.Context, msg *HideConversationMsg) {
	hidden := 0
	for _, message := range a.byConversation[msg.ConversationID] {
		if message.HiddenFor(msg.ViewerID) {
			continue
		}
		message.DeletedBy = append(message.DeletedBy, msg.ViewerID)
		a.persistMessage(message)
		hidden++
	}
	context.Respond(hidden)
}

func (a *MessageActor) handleToggleReaction(context actor.Context, msg *ToggleReactionMsg) {
	startTime := time.Now()

	message, exists := a.messagesByID[msg.MessageID]
	if !exists {
		context.Respond(utils.NewMessageNotFoundError(msg.MessageID.String()))
		return
	}
	if message.SenderID == msg.UserID {
		context.Respond(utils.NewAppError(utils.ErrOwnMessageReaction, "you cannot react to your own message", nil))
		return
	}

	// At most one reaction per (message, user, emoji); a second add removes it.
	for i, reaction := range a.reactions[msg.MessageID] {
		if reaction.UserID == msg.UserID && reaction.Emoji == msg.Emoji {
			a.reactions[msg.MessageID] = append(a.reactions[msg.MessageID][:i], a.reactions[msg.MessageID][i+1:]...)
			if a.mongodb != nil {
				if err := a.mongodb.DeleteReaction(stdctx.Background(), reaction.ID); err != nil {
					log.Printf("Failed to delete reaction from MongoDB: %v", err)
				}
			}
			a.metrics.AddOperationLatency("toggle_reaction", time.Since(startTime))
			context.Respond(&ReactionToggleResult{Added: false, Groups: a.groupReactions(msg.MessageID)})
			return
		}
	}

	reaction := &models.Reaction{
		ID:        uuid.New(),
		MessageID: msg.MessageID,
		UserID:    msg.UserID,
		Emoji:     msg.Emoji,
		CreatedAt: time.Now(),
	}
	a.reactions[msg.MessageID] = append(a.reactions[msg.MessageID], reaction)
	if a.mongodb != nil {
		if err := a.mongodb.SaveReaction(stdctx.Background(), reaction); err != nil {
			log.Printf("Failed to save reaction to MongoDB: %v", err)
		}
	}

	a.metrics.AddOperationLatency("toggle_reaction", time.Since(startTime))
	context.Respond(&ReactionToggleResult{Added: true, Groups: a.groupReactions(msg.MessageID)})
}

func (a *MessageActor) handleHistory(context actor.Context, msg *GetHistoryMsg) {
	limit := msg.Limit
	if limit <= 0 {
		limit = 30
	}

	conversationLog := a.byConversation[msg.ConversationID]
	start := len(conversationLog) - limit
	if start < 0 {
		start = 0
	}

	history := make([]*models.Message, 0, len(conversationLog)-start)
	history = append(history, conversationLog[start:]...)
	context.Respond(history)
}

func (a *MessageActor) groupReactions(messageID uuid.UUID) []models.ReactionGroup {
	groups := make([]models.ReactionGroup, 0)
	index := make(map[string]int)
	for _, reaction := range a.reactions[messageID] {
		i, exists := index[reaction.Emoji]
		if !exists {
			i = len(groups)
			index[reaction.Emoji] = i
			groups = append(groups, models.ReactionGroup{Emoji: reaction.Emoji})
		}
		groups[i].Count++
		groups[i].UserIDs = append(groups[i].UserIDs, reaction.UserID)
	}
	return groups
}

// loadFromMongo warms the actor with persisted state on startup. Messages
// come back sorted by creation time, so the per-conversation slices keep
// append order.
func (a *MessageActor) loadFromMongo() {
	if a.mongodb == nil {
		return
	}
	ctx := stdctx.Background()

	messages, err := a.mongodb.LoadMessages(ctx)
	if err != nil {
		log.Printf("Failed to load messages from MongoDB: %v", err)
		return
	}
	for _, message := range messages {
		a.messagesByID[message.ID] = message
		a.byConversation[message.ConversationID] = append(a.byConversation[message.ConversationID], message)
	}

	reactions, err := a.mongodb.LoadReactions(ctx)
	if err != nil {
		log.Printf("Failed to load reactions from MongoDB: %v", err)
		return
	}
	for _, reaction := range reactions {
		a.reactions[reaction.MessageID] = append(a.reactions[reaction.MessageID], reaction)
	}

	log.Printf("Loaded %d messages and %d reactions from MongoDB", len(messages), len(reactions))
}

func (a *MessageActor) persistMessage(message *models.Message) {
	if a.mongodb == nil {
		return
	}
	if err := a.mongodb.SaveMessage(stdctx.Background(), message); err != nil {
		log.Printf("Failed to save message to MongoDB: %v", err)
	}
}
