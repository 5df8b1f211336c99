package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationDocument represents the MongoDB document structure for conversations
type ConversationDocument struct {
	ID            string        `bson:"_id"`
	Name          string        `bson:"name,omitempty"`
	IsGroup       bool          `bson:"isGroup"`
	LastMessageID string        `bson:"lastMessageId,omitempty"`
	OngoingCall   *CallDocument `bson:"ongoingCall,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt"`
}

type CallDocument struct {
	CallerID string `bson:"callerId"`
	Type     string `bson:"type"`
	Status   string `bson:"status"`
}

// MembershipDocument represents the MongoDB document structure for the
// per-(user, conversation) ledger rows
type MembershipDocument struct {
	ID                string    `bson:"_id"`
	UserID            string    `bson:"userId"`
	ConversationID    string    `bson:"conversationId"`
	LastSeenMessageID string    `bson:"lastSeenMessageId,omitempty"`
	UnreadCount       int       `bson:"unreadCount"`
	CreatedAt         time.Time `bson:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt"`
}

// SaveConversation creates or updates a conversation in MongoDB
func (m *MongoDB) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	doc := ConversationDocument{
		ID:        conversation.ID.String(),
		Name:      conversation.Name,
		IsGroup:   conversation.IsGroup,
		CreatedAt: conversation.CreatedAt,
	}
	if conversation.LastMessageID != uuid.Nil {
		doc.LastMessageID = conversation.LastMessageID.String()
	}
	if conversation.OngoingCall != nil {
		doc.OngoingCall = &CallDocument{
			CallerID: conversation.OngoingCall.CallerID.String(),
			Type:     string(conversation.OngoingCall.Type),
			Status:   string(conversation.OngoingCall.Status),
		}
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": conversation.ID.String()}
	update := bson.M{"$set": doc}

	if _, err := m.Conversations.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save conversation: %v", err)
	}
	return nil
}

// SaveMembership creates or updates a ledger row in MongoDB
func (m *MongoDB) SaveMembership(ctx context.Context, membership *models.Membership) error {
	doc := MembershipDocument{
		ID:             membership.ID.String(),
		UserID:         membership.UserID.String(),
		ConversationID: membership.ConversationID.String(),
		UnreadCount:    membership.UnreadCount,
		CreatedAt:      membership.CreatedAt,
		UpdatedAt:      membership.UpdatedAt,
	}
	if membership.LastSeenMessageID != uuid.Nil {
		doc.LastSeenMessageID = membership.LastSeenMessageID.String()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": membership.ID.String()}
	update := bson.M{"$set": doc}

	if _, err := m.Members.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save membership: %v", err)
	}
	return nil
}

// DeleteMembership removes a ledger row (user left a group)
func (m *MongoDB) DeleteMembership(ctx context.Context, membershipID uuid.UUID) error {
	if _, err := m.Members.DeleteOne(ctx, bson.M{"_id": membershipID.String()}); err != nil {
		return fmt.Errorf("failed to delete membership: %v", err)
	}
	return nil
}

// LoadConversations retrieves all conversations, used to warm the actor on startup
func (m *MongoDB) LoadConversations(ctx context.Context) ([]*models.Conversation, error) {
	cursor, err := m.Conversations.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %v", err)
	}
	defer cursor.Close(ctx)

	var conversations []*models.Conversation
	for cursor.Next(ctx) {
		var doc ConversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		conversation := &models.Conversation{
			ID:        id,
			Name:      doc.Name,
			IsGroup:   doc.IsGroup,
			CreatedAt: doc.CreatedAt,
		}
		if doc.LastMessageID != "" {
			conversation.LastMessageID, _ = uuid.Parse(doc.LastMessageID)
		}
		if doc.OngoingCall != nil {
			callerID, _ := uuid.Parse(doc.OngoingCall.CallerID)
			conversation.OngoingCall = &models.OngoingCall{
				CallerID: callerID,
				Type:     models.CallType(doc.OngoingCall.Type),
				Status:   models.CallStatus(doc.OngoingCall.Status),
			}
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

// LoadMemberships retrieves all ledger rows, used to warm the actor on startup
func (m *MongoDB) LoadMemberships(ctx context.Context) ([]*models.Membership, error) {
	cursor, err := m.Members.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %v", err)
	}
	defer cursor.Close(ctx)

	var memberships []*models.Membership
	for cursor.Next(ctx) {
		var doc MembershipDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode membership: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		userID, _ := uuid.Parse(doc.UserID)
		conversationID, _ := uuid.Parse(doc.ConversationID)

		membership := &models.Membership{
			ID:             id,
			UserID:         userID,
			ConversationID: conversationID,
			UnreadCount:    doc.UnreadCount,
			CreatedAt:      doc.CreatedAt,
			UpdatedAt:      doc.UpdatedAt,
		}
		if doc.LastSeenMessageID != "" {
			membership.LastSeenMessageID, _ = uuid.Parse(doc.LastSeenMessageID)
		}
		memberships = append(memberships, membership)
	}

	return memberships, nil
}
