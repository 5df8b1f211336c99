// internal/database/user_repository.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDocument represents the MongoDB schema for a user
type UserDocument struct {
	ID             string    `bson:"_id"`            // MongoDB primary key
	Name           string    `bson:"name"`           // Display name
	Email          string    `bson:"email"`          // Email address
	AvatarURL      string    `bson:"avatarUrl"`      // Avatar image URL
	ExternalID     string    `bson:"externalId"`     // Identity from the auth provider
	HashedPassword string    `bson:"hashedPassword"` // Hashed password (local accounts)
	IsOnline       bool      `bson:"isOnline"`       // Presence flag
	LastSeen       time.Time `bson:"lastSeen"`       // Last activity timestamp
	CreatedAt      time.Time `bson:"createdAt"`      // Account creation timestamp
}

// SaveUser creates or updates a user in MongoDB
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	doc := UserDocument{
		ID:             user.ID.String(),
		Name:           user.Name,
		Email:          user.Email,
		AvatarURL:      user.AvatarURL,
		ExternalID:     user.ExternalID,
		HashedPassword: user.HashedPassword,
		IsOnline:       user.IsOnline,
		LastSeen:       user.LastSeen,
		CreatedAt:      user.CreatedAt,
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": user.ID.String()}
	update := bson.M{"$set": doc}

	_, err := m.Users.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetUser retrieves a user from MongoDB by their ID
func (m *MongoDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc UserDocument
	err := m.Users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewUserNotFoundError(id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return docToUser(&doc), nil
}

// GetUserByExternalID retrieves a user by the auth provider identity
func (m *MongoDB) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var doc UserDocument
	err := m.Users.FindOne(ctx, bson.M{"externalId": externalID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewUserNotFoundError(externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by external id: %v", err)
	}
	return docToUser(&doc), nil
}

// GetUserByEmail retrieves a user by email address
func (m *MongoDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc UserDocument
	err := m.Users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewUserNotFoundError(email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %v", err)
	}
	return docToUser(&doc), nil
}

// UpdateUserPresence updates the online flag and last-seen timestamp
func (m *MongoDB) UpdateUserPresence(ctx context.Context, id uuid.UUID, isOnline bool) error {
	update := bson.M{"$set": bson.M{
		"isOnline": isOnline,
		"lastSeen": time.Now(),
	}}
	_, err := m.Users.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return fmt.Errorf("failed to update user presence: %v", err)
	}
	return nil
}

// ListUsers returns all users in the system
func (m *MongoDB) ListUsers(ctx context.Context) ([]*models.User, error) {
	cursor, err := m.Users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []*models.User
	for cursor.Next(ctx) {
		var doc UserDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user: %v", err)
		}
		users = append(users, docToUser(&doc))
	}

	return users, nil
}

func docToUser(doc *UserDocument) *models.User {
	id, _ := uuid.Parse(doc.ID)
	return &models.User{
		ID:             id,
		Name:           doc.Name,
		Email:          doc.Email,
		AvatarURL:      doc.AvatarURL,
		ExternalID:     doc.ExternalID,
		HashedPassword: doc.HashedPassword,
		IsOnline:       doc.IsOnline,
		LastSeen:       doc.LastSeen,
		CreatedAt:      doc.CreatedAt,
	}
}
