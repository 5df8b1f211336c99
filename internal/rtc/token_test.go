package rtc

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestJoinTokenCarriesRoomGrant(t *testing.T) {
	issuer := NewTokenIssuer("api-key", "api-secret", time.Hour)

	signed, err := issuer.JoinToken("conv-123", "user-456", "Sam")
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)

	claims := &roomClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("api-secret"), nil
	})
	assert.NoError(t, err)
	assert.True(t, token.Valid)

	assert.Equal(t, "api-key", claims.Issuer)
	assert.Equal(t, "user-456", claims.Subject)
	assert.Equal(t, "Sam", claims.Name)
	assert.Equal(t, "conv-123", claims.Video.Room)
	assert.True(t, claims.Video.RoomJoin)
	assert.True(t, claims.Video.CanPublish)
	assert.True(t, claims.Video.CanSubscribe)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJoinTokenValidation(t *testing.T) {
	issuer := NewTokenIssuer("", "", time.Hour)
	assert.False(t, issuer.Enabled())
	_, err := issuer.JoinToken("room", "identity", "")
	assert.Error(t, err)

	issuer = NewTokenIssuer("key", "secret", time.Hour)
	_, err = issuer.JoinToken("", "identity", "")
	assert.Error(t, err)
	_, err = issuer.JoinToken("room", "", "")
	assert.Error(t, err)
}
