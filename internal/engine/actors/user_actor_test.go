package actors

import (
	"testing"
	"time"

	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/types"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func spawnUsers(system *actor.ActorSystem) *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewUserActor(utils.NewMetricsCollector(), nil)
	})
	return system.Root.Spawn(props)
}

func TestUserAuthentication(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnUsers(system)

	// Step 1: Register a new user
	regFuture := system.Root.RequestFuture(pid, &RegisterUserMsg{
		Name:     "testuser",
		Email:    "test@example.com",
		Password: "password123",
	}, 5*time.Second)

	regResult, err := regFuture.Result()
	if err != nil {
		t.Fatalf("Registration failed: %v", err)
	}

	user, ok := regResult.(*models.User)
	if !ok {
		t.Fatal("Failed to get user from registration")
	}
	assert.Equal(t, "testuser", user.Name)

	// Step 2: Try logging in
	loginFuture := system.Root.RequestFuture(pid, &LoginMsg{
		Email:    "test@example.com",
		Password: "password123",
	}, 5*time.Second)

	loginResult, err := loginFuture.Result()
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	loginResponse, ok := loginResult.(*types.LoginResponse)
	if !ok {
		t.Fatal("Failed to get login response")
	}
	assert.True(t, loginResponse.Success)
	assert.Equal(t, user.ID.String(), loginResponse.UserID)

	// Step 3: Test invalid login
	badLoginFuture := system.Root.RequestFuture(pid, &LoginMsg{
		Email:    "test@example.com",
		Password: "wrongpassword",
	}, 5*time.Second)

	badLoginResult, err := badLoginFuture.Result()
	if err != nil {
		t.Fatalf("Bad login request failed: %v", err)
	}

	badLoginResponse, ok := badLoginResult.(*types.LoginResponse)
	if !ok {
		t.Fatal("Failed to get bad login response")
	}
	assert.False(t, badLoginResponse.Success)
	assert.Equal(t, "Invalid credentials", badLoginResponse.Error)

	// Step 4: Duplicate registration is rejected
	dupFuture := system.Root.RequestFuture(pid, &RegisterUserMsg{
		Name:     "testuser2",
		Email:    "test@example.com",
		Password: "password456",
	}, 5*time.Second)
	dupResult, err := dupFuture.Result()
	assert.NoError(t, err)
	appErr, isAppErr := dupResult.(*utils.AppError)
	assert.True(t, isAppErr)
	assert.Equal(t, utils.ErrUserAlreadyExists, appErr.Code)
}

func TestSyncUserIsUpsert(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnUsers(system)

	future := system.Root.RequestFuture(pid, &SyncUserMsg{
		ExternalID: "auth0|abc123",
		Name:       "Riley",
		Email:      "riley@example.com",
		AvatarURL:  "https://cdn.example.com/riley.png",
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	created := result.(*models.User)
	assert.Equal(t, "Riley", created.Name)

	// Same external identity with a new avatar updates in place.
	future = system.Root.RequestFuture(pid, &SyncUserMsg{
		ExternalID: "auth0|abc123",
		Name:       "Riley",
		Email:      "riley@example.com",
		AvatarURL:  "https://cdn.example.com/riley-v2.png",
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	updated := result.(*models.User)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "https://cdn.example.com/riley-v2.png", updated.AvatarURL)
}

func TestPresenceFeedsAnyOnline(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnUsers(system)

	future := system.Root.RequestFuture(pid, &SyncUserMsg{
		ExternalID: "ext-1",
		Name:       "Sam",
		Email:      "sam@example.com",
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	sam := result.(*models.User)

	future = system.Root.RequestFuture(pid, &SyncUserMsg{
		ExternalID: "ext-2",
		Name:       "Alex",
		Email:      "alex@example.com",
	}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	alex := result.(*models.User)

	anyOnline := func(ids ...uuid.UUID) bool {
		future := system.Root.RequestFuture(pid, &AnyOnlineMsg{UserIDs: ids}, 5*time.Second)
		result, err := future.Result()
		assert.NoError(t, err)
		return result.(bool)
	}

	// Both came online at sync time.
	assert.True(t, anyOnline(sam.ID, alex.ID))

	for _, id := range []uuid.UUID{sam.ID, alex.ID} {
		future = system.Root.RequestFuture(pid, &SetPresenceMsg{UserID: id, IsOnline: false}, 5*time.Second)
		_, err = future.Result()
		assert.NoError(t, err)
	}
	assert.False(t, anyOnline(sam.ID, alex.ID))

	future = system.Root.RequestFuture(pid, &SetPresenceMsg{UserID: alex.ID, IsOnline: true}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)
	assert.True(t, anyOnline(sam.ID, alex.ID))

	// Unknown users count as offline.
	assert.False(t, anyOnline(uuid.New()))
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnUsers(system)

	names := []string{"maria", "mario", "luigi"}
	ids := make(map[string]uuid.UUID)
	for i, name := range names {
		future := system.Root.RequestFuture(pid, &SyncUserMsg{
			ExternalID: name,
			Name:       name,
			Email:      name + "@example.com",
		}, 5*time.Second)
		result, err := future.Result()
		assert.NoError(t, err)
		ids[names[i]] = result.(*models.User).ID
	}

	future := system.Root.RequestFuture(pid, &SearchUsersMsg{
		Query:     "mari",
		ExcludeID: ids["maria"],
	}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	matches := result.([]*models.User)
	assert.Len(t, matches, 1)
	assert.Equal(t, "mario", matches[0].Name)
}
