package models

import (
	"time"

	"github.com/google/uuid"
)

// Reaction is unique per (message, user, emoji); adding the same triple
// again removes it.
type Reaction struct {
	ID        uuid.UUID `json:"id"`
	MessageID uuid.UUID `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactionGroup is the per-emoji aggregate returned to clients.
type ReactionGroup struct {
	Emoji   string      `json:"emoji"`
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"userIds"`
}
