package actors

import (
	"log"
	"strings"
	"time"

	stdctx "context"

	"github.com/ygstudio-game/chatPulse/internal/database"
	"github.com/ygstudio-game/chatPulse/internal/models"
	"github.com/ygstudio-game/chatPulse/internal/types"
	"github.com/ygstudio-game/chatPulse/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type GetCountsMsg struct{}

// Message types for UserActor
type (
	// SyncUserMsg maps an external auth-provider identity to an internal
	// user record: create-if-absent, refresh name/avatar if they changed.
	SyncUserMsg struct {
		ExternalID string `json:"externalId"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		AvatarURL  string `json:"avatarUrl"`
	}

	RegisterUserMsg struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginMsg struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// SetPresenceMsg is last-write-wins; presence is approximate by design.
	SetPresenceMsg struct {
		UserID   uuid.UUID `json:"userId"`
		IsOnline bool      `json:"isOnline"`
	}

	GetUserMsg struct {
		UserID uuid.UUID `json:"userId"`
	}

	GetUsersMsg struct {
		UserIDs []uuid.UUID `json:"userIds"`
	}

	SearchUsersMsg struct {
		Query     string    `json:"query"`
		ExcludeID uuid.UUID `json:"excludeId"`
	}

	AnyOnlineMsg struct {
		UserIDs []uuid.UUID `json:"userIds"`
	}
)

// UserActor owns user records and the presence flags consumed by the
// receipt reconciler.
type UserActor struct {
	usersByID    map[uuid.UUID]*models.User
	byExternalID map[string]uuid.UUID
	byEmail      map[string]uuid.UUID
	mongodb      *database.MongoDB
	metrics      *utils.MetricsCollector
}

func NewUserActor(metrics *utils.MetricsCollector, mongodb *database.MongoDB) actor.Actor {
	return &UserActor{
		usersByID:    make(map[uuid.UUID]*models.User),
		byExternalID: make(map[string]uuid.UUID),
		byEmail:      make(map[string]uuid.UUID),
		mongodb:      mongodb,
		metrics:      metrics,
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.loadFromMongo()

	case *SyncUserMsg:
		a.handleSync(context, msg)

	case *RegisterUserMsg:
		a.handleRegister(context, msg)

	case *LoginMsg:
		a.handleLogin(context, msg)

	case *SetPresenceMsg:
		user, exists := a.usersByID[msg.UserID]
		if !exists {
			context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
			return
		}
		user.IsOnline = msg.IsOnline
		user.LastSeen = time.Now()
		a.persistPresence(user)
		context.Respond(user)

	case *GetUserMsg:
		if user, exists := a.usersByID[msg.UserID]; exists {
			context.Respond(user)
		} else {
			context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
		}

	case *GetUsersMsg:
		users := make(map[uuid.UUID]*models.User, len(msg.UserIDs))
		for _, userID := range msg.UserIDs {
			if user, exists := a.usersByID[userID]; exists {
				users[userID] = user
			}
		}
		context.Respond(users)

	case *SearchUsersMsg:
		query := strings.ToLower(msg.Query)
		matches := make([]*models.User, 0)
		for _, user := range a.usersByID {
			if user.ID == msg.ExcludeID {
				continue
			}
			if query == "" || strings.Contains(strings.ToLower(user.Name), query) {
				matches = append(matches, user)
			}
		}
		context.Respond(matches)

	case *AnyOnlineMsg:
		for _, userID := range msg.UserIDs {
			if user, exists := a.usersByID[userID]; exists && user.IsOnline {
				context.Respond(true)
				return
			}
		}
		context.Respond(false)

	case *GetCountsMsg:
		context.Respond(len(a.usersByID))
	}
}

func (a *UserActor) handleSync(context actor.Context, msg *SyncUserMsg) {
	startTime := time.Now()

	if userID, exists := a.byExternalID[msg.ExternalID]; exists {
		user := a.usersByID[userID]
		if user.Name != msg.Name || user.AvatarURL != msg.AvatarURL {
			user.Name = msg.Name
			user.AvatarURL = msg.AvatarURL
			a.persistUser(user)
		}
		context.Respond(user)
		return
	}

	user := &models.User{
		ID:         uuid.New(),
		Name:       msg.Name,
		Email:      msg.Email,
		AvatarURL:  msg.AvatarURL,
		ExternalID: msg.ExternalID,
		IsOnline:   true,
		LastSeen:   time.Now(),
		CreatedAt:  time.Now(),
	}
	a.usersByID[user.ID] = user
	a.byExternalID[msg.ExternalID] = user.ID
	if msg.Email != "" {
		a.byEmail[msg.Email] = user.ID
	}
	a.persistUser(user)

	a.metrics.AddOperationLatency("sync_user", time.Since(startTime))
	context.Respond(user)
}

func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	if _, exists := a.byEmail[msg.Email]; exists {
		context.Respond(utils.NewAppError(utils.ErrUserAlreadyExists, "Email already registered", nil))
		return
	}

	hashedPassword, err := hashPassword(msg.Password)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err))
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Name:           msg.Name,
		Email:          msg.Email,
		HashedPassword: hashedPassword,
		IsOnline:       true,
		LastSeen:       time.Now(),
		CreatedAt:      time.Now(),
	}
	a.usersByID[user.ID] = user
	a.byEmail[msg.Email] = user.ID
	a.persistUser(user)

	log.Printf("Successfully created user %s", user.ID)
	context.Respond(user)
}

func (a *UserActor) handleLogin(context actor.Context, msg *LoginMsg) {
	userID, exists := a.byEmail[msg.Email]
	if !exists {
		context.Respond(&types.LoginResponse{
			Success: false,
			Error:   "Invalid credentials",
		})
		return
	}
	user := a.usersByID[userID]

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(&types.LoginResponse{
			Success: false,
			Error:   "Invalid credentials",
		})
		return
	}

	user.IsOnline = true
	user.LastSeen = time.Now()
	a.persistPresence(user)

	context.Respond(&types.LoginResponse{
		Success: true,
		UserID:  user.ID.String(),
	})
}

// loadFromMongo warms the actor with persisted users on startup.
func (a *UserActor) loadFromMongo() {
	if a.mongodb == nil {
		return
	}

	users, err := a.mongodb.ListUsers(stdctx.Background())
	if err != nil {
		log.Printf("Failed to load users from MongoDB: %v", err)
		return
	}
	for _, user := range users {
		a.usersByID[user.ID] = user
		if user.ExternalID != "" {
			a.byExternalID[user.ExternalID] = user.ID
		}
		if user.Email != "" {
			a.byEmail[user.Email] = user.ID
		}
	}

	log.Printf("Loaded %d users from MongoDB", len(users))
}

func (a *UserActor) persistUser(user *models.User) {
	if a.mongodb == nil {
		return
	}
	if err := a.mongodb.SaveUser(stdctx.Background(), user); err != nil {
		log.Printf("Failed to save user to MongoDB: %v", err)
	}
}

func (a *UserActor) persistPresence(user *models.User) {
	if a.mongodb == nil {
		return
	}
	if err := a.mongodb.UpdateUserPresence(stdctx.Background(), user.ID, user.IsOnline); err != nil {
		log.Printf("Failed to update user presence in MongoDB: %v", err)
	}
}
