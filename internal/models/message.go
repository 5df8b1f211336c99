package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypePDF   MediaType = "pdf"
	MediaTypeAudio MediaType = "audio"
)

type Receipt string

const (
	ReceiptSent      Receipt = "sent"
	ReceiptDelivered Receipt = "delivered"
	ReceiptRead      Receipt = "read"
)

// DeletedPlaceholder replaces the content of globally deleted messages and
// of deleted reply previews.
const DeletedPlaceholder = "This message was deleted"

type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversationId"`
	SenderID       uuid.UUID   `json:"senderId"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`

	// Receipt is the historical tag written at insert time. The status a
	// sender actually sees is recomputed from recipients' high-water marks
	// on every list call, never read from this field.
	Receipt Receipt `json:"receipt"`

	MediaURL    string    `json:"mediaUrl,omitempty"`
	MediaType   MediaType `json:"mediaType,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	IsUploading bool      `json:"isUploading,omitempty"`
	Transcript  string    `json:"transcript,omitempty"`

	ReplyToID uuid.UUID `json:"replyToId,omitempty"` // uuid.Nil when not a reply

	Deleted   bool        `json:"deleted,omitempty"`
	DeletedBy []uuid.UUID `json:"-"` // users who hid this message for themselves

	CreatedAt time.Time `json:"createdAt"`
}

// HiddenFor reports whether the message was deleted "for me" by userID.
func (m *Message) HiddenFor(userID uuid.UUID) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}
