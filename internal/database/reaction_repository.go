package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// ReactionDocument represents the MongoDB document structure for reactions
type ReactionDocument struct {
	ID        string    `bson:"_id"`
	MessageID string    `bson:"messageId"`
	UserID    string    `bson:"userId"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"createdAt"`
}

// SaveReaction inserts a reaction row
func (m *MongoDB) SaveReaction(ctx context.Context, reaction *models.Reaction) error {
	doc := ReactionDocument{
		ID:        reaction.ID.String(),
		MessageID: reaction.MessageID.String(),
		UserID:    reaction.UserID.String(),
		Emoji:     reaction.Emoji,
		CreatedAt: reaction.CreatedAt,
	}

	if _, err := m.Reactions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save reaction: %v", err)
	}
	return nil
}

// DeleteReaction removes a reaction row (toggle off)
func (m *MongoDB) DeleteReaction(ctx context.Context, reactionID uuid.UUID) error {
	if _, err := m.Reactions.DeleteOne(ctx, bson.M{"_id": reactionID.String()}); err != nil {
		return fmt.Errorf("failed to delete reaction: %v", err)
	}
	return nil
}

// LoadReactions retrieves all reactions, used to warm the actor on startup
func (m *MongoDB) LoadReactions(ctx context.Context) ([]*models.Reaction, error) {
	cursor, err := m.Reactions.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load reactions: %v", err)
	}
	defer cursor.Close(ctx)

	var reactions []*models.Reaction
	for cursor.Next(ctx) {
		var doc ReactionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode reaction: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		messageID, _ := uuid.Parse(doc.MessageID)
		userID, _ := uuid.Parse(doc.UserID)

		reactions = append(reactions, &models.Reaction{
			ID:        id,
			MessageID: messageID,
			UserID:    userID,
			Emoji:     doc.Emoji,
			CreatedAt: doc.CreatedAt,
		})
	}

	return reactions, nil
}
