// Package rtc issues room access tokens for audio and video calls.
// Tokens follow the LiveKit access token format: an HS256 JWT whose
// issuer is the API key and whose video claim carries the room grant.
package rtc

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant describes what the holder may do inside a room.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type roomClaims struct {
	Video VideoGrant `json:"video"`
	Name  string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints join tokens for a media server project.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}
}

// Enabled reports whether credentials were configured.
func (t *TokenIssuer) Enabled() bool {
	return t.apiKey != "" && t.apiSecret != ""
}

// JoinToken returns a signed token letting identity publish and
// subscribe in the given room. The room name is the conversation ID so
// both sides of a call land in the same room.
func (t *TokenIssuer) JoinToken(room, identity, displayName string) (string, error) {
	if !t.Enabled() {
		return "", errors.New("room credentials are not configured")
	}
	if room == "" || identity == "" {
		return "", errors.New("room and identity are required")
	}

	now := time.Now()
	claims := &roomClaims{
		Video: VideoGrant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.apiSecret))
}
