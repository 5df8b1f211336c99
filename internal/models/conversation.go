package models

import (
	"time"

	"github.com/google/uuid"
)

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusAccepted CallStatus = "accepted"
)

// OngoingCall describes the single active call on a conversation. Media
// transport is handled by the external room service; this is lifecycle
// state only.
type OngoingCall struct {
	CallerID uuid.UUID  `json:"callerId"`
	Type     CallType   `json:"type"`
	Status   CallStatus `json:"status"`
}

type Conversation struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name,omitempty"` // empty for 1:1 conversations
	IsGroup       bool         `json:"isGroup"`
	LastMessageID uuid.UUID    `json:"lastMessageId,omitempty"` // cached pointer, uuid.Nil when unset
	OngoingCall   *OngoingCall `json:"ongoingCall,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Membership is the per-(user, conversation) ledger row. Exactly one exists
// per pair. LastSeenMessageID is the user's high-water mark; UnreadCount is
// the denormalized badge counter and is never negative.
type Membership struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"userId"`
	ConversationID    uuid.UUID `json:"conversationId"`
	LastSeenMessageID uuid.UUID `json:"lastSeenMessageId,omitempty"` // uuid.Nil when nothing seen
	UnreadCount       int       `json:"unreadCount"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
