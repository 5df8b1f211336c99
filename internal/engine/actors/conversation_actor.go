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

// Message types for ConversationActor
type (
	// BindMessageActorMsg wires the message actor PID after both actors are
	// spawned, for the latest-message fallback query in markViewed.
	BindMessageActorMsg struct {
		PID *actor.PID
	}

	GetOrCreateDirectMsg struct {
		UserID        uuid.UUID `json:"userId"`
		ParticipantID uuid.UUID `json:"participantId"`
	}

	CreateGroupMsg struct {
		CreatorID uuid.UUID   `json:"creatorId"`
		Name      string      `json:"name"`
		MemberIDs []uuid.UUID `json:"memberIds"`
	}

	GetConversationMsg struct {
		ConversationID uuid.UUID `json:"conversationId"`
	}

	ListConversationsMsg struct {
		UserID uuid.UUID `json:"userId"`
	}

	EnsureMembershipMsg struct {
		UserID         uuid.UUID `json:"userId"`
		ConversationID uuid.UUID `json:"conversationId"`
	}

	// MessageAppendedMsg is sent (fire and forget) by the message actor
	// after every append: bumps the unread counter of every member except
	// the sender and refreshes the cached latest-message pointer.
	MessageAppendedMsg struct {
		ConversationID uuid.UUID
		MessageID      uuid.UUID
		SenderID       uuid.UUID
	}

	MarkViewedMsg struct {
		UserID         uuid.UUID `json:"userId"`
		ConversationID uuid.UUID `json:"conversationId"`
	}

	// ReadStateMsg snapshots the ledger for the receipt reconciler: the
	// viewer's co-members and their high-water marks.
	ReadStateMsg struct {
		ConversationID uuid.UUID
		ViewerID       uuid.UUID
	}

	GetMembersMsg struct {
		ConversationID uuid.UUID
	}

	LeaveGroupMsg struct {
		UserID         uuid.UUID `json:"userId"`
		ConversationID uuid.UUID `json:"conversationId"`
	}

	ClearMembershipMsg struct {
		UserID         uuid.UUID `json:"userId"`
		ConversationID uuid.UUID `json:"conversationId"`
	}

	StartTypingMsg struct {
		UserID         uuid.UUID `json:"userId"`
		ConversationID uuid.UUID `json:"conversationId"`
	}

	StopTypingMsg struct {
		UserID         uuid.UUID `json:"userId"`
		ConversationID uuid.UUID `json:"conversationId"`
	}

	GetTypingMsg struct {
		ConversationID uuid.UUID
		ViewerID       uuid.UUID
	}

	StartCallMsg struct {
		ConversationID uuid.UUID       `json:"conversationId"`
		CallerID       uuid.UUID       `json:"callerId"`
		Type           models.CallType `json:"type"`
	}

	AcceptCallMsg struct {
		ConversationID uuid.UUID `json:"conversationId"`
		UserID         uuid.UUID `json:"userId"`
	}

	DeclineCallMsg struct {
		ConversationID uuid.UUID `json:"conversationId"`
		UserID         uuid.UUID `json:"userId"`
	}

	GetOngoingCallMsg struct {
		UserID uuid.UUID
	}
)

// ReadState is the ledger snapshot handed to the receipt reconciler.
// Marks holds each recipient's last-seen message id; a recipient missing
// from Marks has seen nothing and counts as unread.
type ReadState struct {
	Recipients []uuid.UUID
	Marks      map[uuid.UUID]uuid.UUID
}

// ConversationSummary is the sidebar row for one conversation.
type ConversationSummary struct {
	Conversation *models.Conversation `json:"conversation"`
	OtherUserID  uuid.UUID            `json:"otherUserId,omitempty"` // 1:1 only
	MemberIDs    []uuid.UUID          `json:"memberIds"`
	UnreadCount  int                  `json:"unreadCount"`
	IsTyping     bool                 `json:"isTyping"`
}

// ConversationState is the detail view: the conversation plus its members.
type ConversationState struct {
	Conversation *models.Conversation `json:"conversation"`
	MemberIDs    []uuid.UUID          `json:"memberIds"`
}

// ConversationActor owns conversations, the membership ledger, typing
// leases and call lifecycle state. Serializing every ledger write through
// this actor is what makes unread increments relative (+1 per appended
// message) instead of racing read-modify-writes.
type ConversationActor struct {
	conversations map[uuid.UUID]*models.Conversation
	memberships   map[uuid.UUID]map[uuid.UUID]*models.Membership // ConversationID -> UserID -> row
	typing        map[uuid.UUID]map[uuid.UUID]*models.TypingIndicator // ConversationID -> UserID -> lease
	messagePID    *actor.PID
	mongodb       *database.MongoDB
	metrics       *utils.MetricsCollector
	leaseTTL      time.Duration
	queryTimeout  time.Duration
}

func NewConversationActor(metrics *utils.MetricsCollector, mongodb *database.MongoDB, leaseTTL time.Duration) actor.Actor {
	if leaseTTL <= 0 {
		leaseTTL = 3 * time.Second
	}
	return &ConversationActor{
		conversations: make(map[uuid.UUID]*models.Conversation),
		memberships:   make(map[uuid.UUID]map[uuid.UUID]*models.Membership),
		typing:        make(map[uuid.UUID]map[uuid.UUID]*models.TypingIndicator),
		mongodb:       mongodb,
		metrics:       metrics,
		leaseTTL:      leaseTTL,
		queryTimeout:  2 * time.Second,
	}
}

func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.loadFromMongo()

	case *BindMessageActorMsg:
		a.messagePID = msg.PID

	case *GetOrCreateDirectMsg:
		a.handleGetOrCreateDirect(context, msg)

	case *CreateGroupMsg:
		a.handleCreateGroup(context, msg)

	case *GetConversationMsg:
		conversation, exists := a.conversations[msg.ConversationID]
		if !exists {
			context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
			return
		}
		context.Respond(&ConversationState{
			Conversation: conversation,
			MemberIDs:    a.memberIDs(msg.ConversationID),
		})

	case *ListConversationsMsg:
		a.handleListConversations(context, msg)

	case *EnsureMembershipMsg:
		membership := a.ensureMembership(msg.UserID, msg.ConversationID)
		if membership == nil {
			context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
			return
		}
		context.Respond(membership)

	case *MessageAppendedMsg:
		a.handleMessageAppended(msg)

	case *MarkViewedMsg:
		a.handleMarkViewed(context, msg)

	case *ReadStateMsg:
		a.handleReadState(context, msg)

	case *GetMembersMsg:
		context.Respond(a.memberIDs(msg.ConversationID))

	case *LeaveGroupMsg:
		a.handleLeaveGroup(context, msg)

	case *ClearMembershipMsg:
		a.handleClearMembership(context, msg)

	case *StartTypingMsg:
		if _, exists := a.conversations[msg.ConversationID]; !exists {
			context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
			return
		}
		if _, exists := a.typing[msg.ConversationID]; !exists {
			a.typing[msg.ConversationID] = make(map[uuid.UUID]*models.TypingIndicator)
		}
		a.typing[msg.ConversationID][msg.UserID] = &models.TypingIndicator{
			ConversationID: msg.ConversationID,
			UserID:         msg.UserID,
			ExpiresAt:      time.Now().Add(a.leaseTTL),
		}
		context.Respond(true)

	case *StopTypingMsg:
		if leases, exists := a.typing[msg.ConversationID]; exists {
			delete(leases, msg.UserID)
		}
		context.Respond(true)

	case *GetTypingMsg:
		context.Respond(a.activeTypers(msg.ConversationID, msg.ViewerID))

	case *StartCallMsg:
		a.handleStartCall(context, msg)

	case *AcceptCallMsg:
		a.handleAcceptCall(context, msg)

	case *DeclineCallMsg:
		a.handleDeclineCall(context, msg)

	case *GetOngoingCallMsg:
		a.handleGetOngoingCall(context, msg)

	case *GetCountsMsg:
		context.Respond(len(a.conversations))
	}
}

func (a *ConversationActor) handleGetOrCreateDirect(context actor.Context, msg *GetOrCreateDirectMsg) {
	startTime := time.Now()

	// Reuse an existing 1:1 conversation between the two users if any
	for conversationID, members := range a.memberships {
		conversation := a.conversations[conversationID]
		if conversation == nil || conversation.IsGroup {
			continue
		}
		if _, hasOwner := members[msg.UserID]; !hasOwner {
			continue
		}
		if _, hasOther := members[msg.ParticipantID]; hasOther {
			context.Respond(conversation)
			return
		}
	}

	conversation := &models.Conversation{
		ID:        uuid.New(),
		IsGroup:   false,
		CreatedAt: time.Now(),
	}
	a.conversations[conversation.ID] = conversation
	a.memberships[conversation.ID] = make(map[uuid.UUID]*models.Membership)
	a.ensureMembership(msg.UserID, conversation.ID)
	a.ensureMembership(msg.ParticipantID, conversation.ID)
	a.persistConversation(conversation)

	a.metrics.AddOperationLatency("create_conversation", time.Since(startTime))
	context.Respond(conversation)
}

func (a *ConversationActor) handleCreateGroup(context actor.Context, msg *CreateGroupMsg) {
	startTime := time.Now()

	conversation := &models.Conversation{
		ID:        uuid.New(),
		Name:      msg.Name,
		IsGroup:   true,
		CreatedAt: time.Now(),
	}
	a.conversations[conversation.ID] = conversation
	a.memberships[conversation.ID] = make(map[uuid.UUID]*models.Membership)

	// Creator is always a member, listed or not
	a.ensureMembership(msg.CreatorID, conversation.ID)
	for _, memberID := range msg.MemberIDs {
		a.ensureMembership(memberID, conversation.ID)
	}
	a.persistConversation(conversation)

	a.metrics.AddOperationLatency("create_group", time.Since(startTime))
	context.Respond(conversation)
}

func (a *ConversationActor) handleListConversations(context actor.Context, msg *ListConversationsMsg) {
	var summaries []*ConversationSummary
	for conversationID, members := range a.memberships {
		membership, exists := members[msg.UserID]
		if !exists {
			continue
		}
		conversation := a.conversations[conversationID]
		if conversation == nil {
			continue
		}

		summary := &ConversationSummary{
			Conversation: conversation,
			MemberIDs:    a.memberIDs(conversationID),
			UnreadCount:  membership.UnreadCount,
			IsTyping:     len(a.activeTypers(conversationID, msg.UserID)) > 0,
		}
		if !conversation.IsGroup {
			for memberID := range members {
				if memberID != msg.UserID {
					summary.OtherUserID = memberID
					break
				}
			}
		}
		summaries = append(summaries, summary)
	}
	if summaries == nil {
		summaries = []*ConversationSummary{}
	}
	context.Respond(summaries)
}

// ensureMembership creates the (user, conversation) ledger row with
// unread=0 if absent. Idempotent; returns nil if the conversation does
// not exist.
func (a *ConversationActor) ensureMembership(userID, conversationID uuid.UUID) *models.Membership {
	if _, exists := a.conversations[conversationID]; !exists {
		return nil
	}
	members, exists := a.memberships[conversationID]
	if !exists {
		members = make(map[uuid.UUID]*models.Membership)
		a.memberships[conversationID] = members
	}
	if membership, exists := members[userID]; exists {
		return membership
	}

	now := time.Now()
	membership := &models.Membership{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: conversationID,
		UnreadCount:    0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	members[userID] = membership
	a.persistMembership(membership)
	return membership
}

func (a *ConversationActor) handleMessageAppended(msg *MessageAppendedMsg) {
	startTime := time.Now()

	conversation, exists := a.conversations[msg.ConversationID]
	if !exists {
		log.Printf("Appended message %s for unknown conversation %s", msg.MessageID, msg.ConversationID)
		return
	}

	conversation.LastMessageID = msg.MessageID
	a.persistConversation(conversation)

	// Relative +1 per appended message; never a read-modify-write on a
	// value observed outside this actor.
	for userID, membership := range a.memberships[msg.ConversationID] {
		if userID == msg.SenderID {
			continue
		}
		membership.UnreadCount++
		membership.UpdatedAt = time.Now()
		a.persistMembership(membership)
	}

	a.metrics.AddOperationLatency("increment_unread", time.Since(startTime))
}

func (a *ConversationActor) handleMarkViewed(context actor.Context, msg *MarkViewedMsg) {
	startTime := time.Now()

	conversation, exists := a.conversations[msg.ConversationID]
	if !exists {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	membership, exists := a.memberships[msg.ConversationID][msg.UserID]
	if !exists {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}

	latestID := conversation.LastMessageID
	if latestID == uuid.Nil && a.messagePID != nil {
		// Cached pointer absent; fall back to querying the message store
		// for the newest message.
		future := context.RequestFuture(a.messagePID, &LatestMessageMsg{ConversationID: msg.ConversationID}, a.queryTimeout)
		if result, err := future.Result(); err == nil {
			if latest, ok := result.(*models.Message); ok {
				latestID = latest.ID
			}
		}
	}

	if latestID != uuid.Nil && membership.LastSeenMessageID != latestID {
		membership.LastSeenMessageID = latestID
		membership.UnreadCount = 0
		membership.UpdatedAt = time.Now()
		a.persistMembership(membership)
	} else if membership.UnreadCount > 0 {
		// Pointer already current but the counter drifted; self-heal.
		membership.UnreadCount = 0
		membership.UpdatedAt = time.Now()
		a.persistMembership(membership)
	}

	a.metrics.AddOperationLatency("mark_viewed", time.Since(startTime))
	context.Respond(membership)
}

func (a *ConversationActor) handleReadState(context actor.Context, msg *ReadStateMsg) {
	if _, exists := a.conversations[msg.ConversationID]; !exists {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	members := a.memberships[msg.ConversationID]
	if _, exists := members[msg.ViewerID]; !exists {
		context.Respond(utils.NewNotMemberError(msg.ViewerID.String(), msg.ConversationID.String()))
		return
	}

	state := &ReadState{
		Recipients: make([]uuid.UUID, 0, len(members)),
		Marks:      make(map[uuid.UUID]uuid.UUID),
	}
	for userID, membership := range members {
		if userID == msg.ViewerID {
			// The viewer's own mark never participates in reconciliation;
			// a sender is trivially caught up.
			continue
		}
		state.Recipients = append(state.Recipients, userID)
		if membership.LastSeenMessageID != uuid.Nil {
			state.Marks[userID] = membership.LastSeenMessageID
		}
	}
	context.Respond(state)
}

func (a *ConversationActor) handleLeaveGroup(context actor.Context, msg *LeaveGroupMsg) {
	conversation, exists := a.conversations[msg.ConversationID]
	if !exists {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	membership, exists := a.memberships[msg.ConversationID][msg.UserID]
	if !exists {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}
	if !conversation.IsGroup {
		context.Respond(utils.NewAppError(utils.ErrNotGroupConversation, "cannot leave a 1:1 conversation", nil))
		return
	}

	delete(a.memberships[msg.ConversationID], msg.UserID)
	if a.mongodb != nil {
		if err := a.mongodb.DeleteMembership(stdctx.Background(), membership.ID); err != nil {
			log.Printf("Failed to delete membership from MongoDB: %v", err)
		}
	}
	context.Respond(true)
}

func (a *ConversationActor) handleClearMembership(context actor.Context, msg *ClearMembershipMsg) {
	membership, exists := a.memberships[msg.ConversationID][msg.UserID]
	if !exists {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}
	membership.UnreadCount = 0
	membership.LastSeenMessageID = uuid.Nil
	membership.UpdatedAt = time.Now()
	a.persistMembership(membership)
	context.Respond(true)
}

func (a *ConversationActor) handleStartCall(context actor.Context, msg *StartCallMsg) {
	conversation, exists := a.conversations[msg.ConversationID]
	if !exists {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	if _, member := a.memberships[msg.ConversationID][msg.CallerID]; !member {
		context.Respond(utils.NewNotMemberError(msg.CallerID.String(), msg.ConversationID.String()))
		return
	}

	conversation.OngoingCall = &models.OngoingCall{
		CallerID: msg.CallerID,
		Type:     msg.Type,
		Status:   models.CallStatusRinging,
	}
	a.persistConversation(conversation)
	context.Respond(conversation.OngoingCall)
}

func (a *ConversationActor) handleAcceptCall(context actor.Context, msg *AcceptCallMsg) {
	conversation, exists := a.conversations[msg.ConversationID]
	if !exists {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	if _, member := a.memberships[msg.ConversationID][msg.UserID]; !member {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}
	if conversation.OngoingCall == nil {
		context.Respond(utils.NewAppError(utils.ErrNotFound, "no ongoing call", nil))
		return
	}
	conversation.OngoingCall.Status = models.CallStatusAccepted
	a.persistConversation(conversation)
	context.Respond(conversation.OngoingCall)
}

func (a *ConversationActor) handleDeclineCall(context actor.Context, msg *DeclineCallMsg) {
	conversation, exists := a.conversations[msg.ConversationID]
	if !exists {
		context.Respond(utils.NewConversationNotFoundError(msg.ConversationID.String()))
		return
	}
	if _, member := a.memberships[msg.ConversationID][msg.UserID]; !member {
		context.Respond(utils.NewNotMemberError(msg.UserID.String(), msg.ConversationID.String()))
		return
	}
	conversation.OngoingCall = nil
	a.persistConversation(conversation)
	context.Respond(true)
}

func (a *ConversationActor) handleGetOngoingCall(context actor.Context, msg *GetOngoingCallMsg) {
	for conversationID, members := range a.memberships {
		if _, member := members[msg.UserID]; !member {
			continue
		}
		conversation := a.conversations[conversationID]
		if conversation != nil && conversation.OngoingCall != nil {
			context.Respond(&ConversationState{
				Conversation: conversation,
				MemberIDs:    a.memberIDs(conversationID),
			})
			return
		}
	}
	context.Respond(&ConversationState{})
}

func (a *ConversationActor) memberIDs(conversationID uuid.UUID) []uuid.UUID {
	members := a.memberships[conversationID]
	ids := make([]uuid.UUID, 0, len(members))
	for userID := range members {
		ids = append(ids, userID)
	}
	return ids
}

// activeTypers returns users other than the viewer holding an unexpired
// typing lease. Stale leases are dropped here; there is no cleanup timer.
func (a *ConversationActor) activeTypers(conversationID, viewerID uuid.UUID) []uuid.UUID {
	now := time.Now()
	typers := make([]uuid.UUID, 0)
	for userID, lease := range a.typing[conversationID] {
		if !lease.ExpiresAt.After(now) {
			delete(a.typing[conversationID], userID)
			continue
		}
		if userID != viewerID {
			typers = append(typers, userID)
		}
	}
	return typers
}

// loadFromMongo warms the actor with persisted state on startup.
func (a *ConversationActor) loadFromMongo() {
	if a.mongodb == nil {
		return
	}
	ctx := stdctx.Background()

	conversations, err := a.mongodb.LoadConversations(ctx)
	if err != nil {
		log.Printf("Failed to load conversations from MongoDB: %v", err)
		return
	}
	for _, conversation := range conversations {
		a.conversations[conversation.ID] = conversation
		a.memberships[conversation.ID] = make(map[uuid.UUID]*models.Membership)
	}

	memberships, err := a.mongodb.LoadMemberships(ctx)
	if err != nil {
		log.Printf("Failed to load memberships from MongoDB: %v", err)
		return
	}
	for _, membership := range memberships {
		if members, exists := a.memberships[membership.ConversationID]; exists {
			members[membership.UserID] = membership
		}
	}

	log.Printf("Loaded %d conversations and %d memberships from MongoDB", len(conversations), len(memberships))
}

func (a *ConversationActor) persistConversation(conversation *models.Conversation) {
	if a.mongodb == nil {
		return
	}
	if err := a.mongodb.SaveConversation(stdctx.Background(), conversation); err != nil {
		log.Printf("Failed to save conversation to MongoDB: %v", err)
	}
}

func (a *ConversationActor) persistMembership(membership *models.Membership) {
	if a.mongodb == nil {
		return
	}
	if err := a.mongodb.SaveMembership(stdctx.Background(), membership); err != nil {
		log.Printf("Failed to save membership to MongoDB: %v", err)
	}
}
