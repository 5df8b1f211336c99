package models

import (
	"time"

	"github.com/google/uuid"
)

// TypingIndicator is a short lease, not durable history. An indicator is
// active iff ExpiresAt is in the future; stale rows are dropped on read.
type TypingIndicator struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	ExpiresAt      time.Time `json:"expiresAt"`
}
