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

// MessageDocument represents the MongoDB document structure for messages
type MessageDocument struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversationId"`
	SenderID       string    `bson:"senderId"`
	Content        string    `bson:"content"`
	Type           string    `bson:"type"`
	Receipt        string    `bson:"receipt"`
	MediaURL       string    `bson:"mediaUrl,omitempty"`
	MediaType      string    `bson:"mediaType,omitempty"`
	FileName       string    `bson:"fileName,omitempty"`
	IsUploading    bool      `bson:"isUploading,omitempty"`
	Transcript     string    `bson:"transcript,omitempty"`
	ReplyToID      string    `bson:"replyToId,omitempty"`
	Deleted        bool      `bson:"deleted,omitempty"`
	DeletedBy      []string  `bson:"deletedBy,omitempty"`
	CreatedAt      time.Time `bson:"createdAt"`
}

// SaveMessage creates or updates a message in MongoDB
func (m *MongoDB) SaveMessage(ctx context.Context, message *models.Message) error {
	doc := MessageDocument{
		ID:             message.ID.String(),
		ConversationID: message.ConversationID.String(),
		SenderID:       message.SenderID.String(),
		Content:        message.Content,
		Type:           string(message.Type),
		Receipt:        string(message.Receipt),
		MediaURL:       message.MediaURL,
		MediaType:      string(message.MediaType),
		FileName:       message.FileName,
		IsUploading:    message.IsUploading,
		Transcript:     message.Transcript,
		Deleted:        message.Deleted,
		CreatedAt:      message.CreatedAt,
	}
	if message.ReplyToID != uuid.Nil {
		doc.ReplyToID = message.ReplyToID.String()
	}
	for _, id := range message.DeletedBy {
		doc.DeletedBy = append(doc.DeletedBy, id.String())
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": message.ID.String()}
	update := bson.M{"$set": doc}

	if _, err := m.Messages.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}
	return nil
}

// LoadMessages retrieves all messages, used to warm the actor on startup
func (m *MongoDB) LoadMessages(ctx context.Context) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": 1})
	cursor, err := m.Messages.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %v", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var doc MessageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		conversationID, _ := uuid.Parse(doc.ConversationID)
		senderID, _ := uuid.Parse(doc.SenderID)

		message := &models.Message{
			ID:             id,
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        doc.Content,
			Type:           models.MessageType(doc.Type),
			Receipt:        models.Receipt(doc.Receipt),
			MediaURL:       doc.MediaURL,
			MediaType:      models.MediaType(doc.MediaType),
			FileName:       doc.FileName,
			IsUploading:    doc.IsUploading,
			Transcript:     doc.Transcript,
			Deleted:        doc.Deleted,
			CreatedAt:      doc.CreatedAt,
		}
		if doc.ReplyToID != "" {
			message.ReplyToID, _ = uuid.Parse(doc.ReplyToID)
		}
		for _, s := range doc.DeletedBy {
			userID, err := uuid.Parse(s)
			if err == nil {
				message.DeletedBy = append(message.DeletedBy, userID)
			}
		}
		messages = append(messages, message)
	}

	return messages, nil
}
