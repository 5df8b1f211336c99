package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Email          string    `json:"email" db:"email"`
	AvatarURL      string    `json:"avatarUrl" db:"avatar_url"`
	ExternalID     string    `json:"-" db:"external_id"` // identity from the auth provider
	HashedPassword string    `json:"-" db:"password_hash"`
	IsOnline       bool      `json:"isOnline" db:"is_online"`
	LastSeen       time.Time `json:"lastSeen" db:"last_seen"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
