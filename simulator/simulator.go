package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	NumUsers          int
	NumGroups         int
	SimulationTime    time.Duration
	MessageFrequency  float64 // messages per user per hour
	ViewFrequency     float64 // conversation views per user per hour
	ReactionFrequency float64 // reactions per user per hour
	DisconnectRate    float64
	ReconnectRate     float64
	ZipfS             float64
	EngineURL         string
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	AverageLatency   time.Duration
	ActiveUsers      int
	TotalMessages    int
	TotalViews       int
	TotalReactions   int
	RequestLatencies []time.Duration
}

// SimulatedUser is one chat participant with its session token and the
// conversations it belongs to.
type SimulatedUser struct {
	ID               uuid.UUID
	Token            string
	Name             string
	Email            string
	IsConnected      bool
	Conversations    []uuid.UUID
	SeenMessages     []uuid.UUID        // other users' messages this user may react to
	ReactedMessages  map[uuid.UUID]bool // messages already reacted to
	LastConversation uuid.UUID
}

type ChatSimulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	groups []uuid.UUID
	client *http.Client
	mu     sync.RWMutex
}

func NewChatSimulator(config SimConfig) *ChatSimulator {
	return &ChatSimulator{
		config: config,
		stats: &SimulationStats{
			StartTime:        time.Now(),
			RequestLatencies: make([]time.Duration, 0),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *ChatSimulator) Run(ctx context.Context) error {
	log.Printf("Starting chat simulation...")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.SimulateActivities(ctx); err != nil {
			log.Printf("Activities simulation error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *ChatSimulator) initialize(ctx context.Context) error {
	log.Printf("Starting initialization...")

	log.Printf("Phase 1: Creating %d users...", s.config.NumUsers)
	if err := s.createInitialUsers(ctx); err != nil {
		return fmt.Errorf("failed to create initial users: %v", err)
	}

	log.Printf("Phase 2: Pairing users into direct conversations...")
	if err := s.createDirectConversations(ctx); err != nil {
		return fmt.Errorf("failed to create direct conversations: %v", err)
	}

	log.Printf("Phase 3: Creating %d group conversations...", s.config.NumGroups)
	if err := s.createGroups(ctx); err != nil {
		return fmt.Errorf("failed to create groups: %v", err)
	}

	log.Printf("Initialization completed successfully")
	return nil
}

func (s *ChatSimulator) createInitialUsers(ctx context.Context) error {
	s.users = make([]*SimulatedUser, 0, s.config.NumUsers)
	s.mu.Lock()
	defer s.mu.Unlock()

	numWorkers := 5
	userJobs := make(chan int, numWorkers)
	results := make(chan *SimulatedUser, numWorkers)

	var wg sync.WaitGroup

	rateLimiter := time.NewTicker(200 * time.Millisecond) // 5 requests per second
	defer rateLimiter.Stop()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for userNum := range userJobs {
				<-rateLimiter.C

				user := &SimulatedUser{
					Name:            fmt.Sprintf("user_%d", userNum),
					Email:           fmt.Sprintf("user_%d@test.com", userNum),
					IsConnected:     true,
					ReactedMessages: make(map[uuid.UUID]bool),
					Conversations:   make([]uuid.UUID, 0),
				}

				var err error
				for retries := 0; retries < 3; retries++ {
					if err = s.registerUserWithClient(ctx, user, client); err == nil {
						results <- user
						break
					}
					backoffDuration := time.Duration(math.Pow(2, float64(retries))) * time.Second
					log.Printf("Worker %d: Retry %d for user %s after %v delay",
						workerID, retries+1, user.Name, backoffDuration)
					time.Sleep(backoffDuration)
				}

				if err != nil {
					log.Printf("Worker %d: Failed to register user %s after retries: %v",
						workerID, user.Name, err)
				}
			}
		}(i)
	}

	go func() {
		for i := 0; i < s.config.NumUsers; i++ {
			userJobs <- i
		}
		close(userJobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for user := range results {
		s.users = append(s.users, user)
		time.Sleep(50 * time.Millisecond)
	}

	log.Printf("Successfully created %d users", len(s.users))
	return nil
}

func (s *ChatSimulator) registerUserWithClient(ctx context.Context, user *SimulatedUser, client *http.Client) error {
	data := map[string]interface{}{
		"name":     user.Name,
		"email":    user.Email,
		"password": "testpass123",
	}

	resp, err := s.makeRequestWithClient(client, "POST", "/user/register", "", data)
	if err != nil {
		return fmt.Errorf("failed to register user: %v", err)
	}

	var result struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		UserID  string `json:"userId"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to parse registration response: %v", err)
	}
	if !result.Success || result.Token == "" {
		return fmt.Errorf("registration rejected for %s", user.Email)
	}

	registeredID, err := uuid.Parse(result.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID returned: %v", err)
	}

	user.ID = registeredID
	user.Token = result.Token

	// Give the actor system time to process the registration
	time.Sleep(200 * time.Millisecond)

	return nil
}

// createDirectConversations pairs each user with a few random peers.
func (s *ChatSimulator) createDirectConversations(ctx context.Context) error {
	for _, user := range s.users {
		numPeers := rand.Intn(3) + 1
		for i := 0; i < numPeers; i++ {
			peer := s.users[rand.Intn(len(s.users))]
			if peer.ID == user.ID {
				continue
			}

			data := map[string]interface{}{
				"participantId": peer.ID.String(),
			}
			resp, err := s.makeRequest("POST", "/conversation", user.Token, data)
			if err != nil {
				log.Printf("Failed to open conversation for %s: %v", user.Name, err)
				continue
			}

			var conversation struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(resp, &conversation) != nil || conversation.ID == "" {
				continue
			}
			conversationID, err := uuid.Parse(conversation.ID)
			if err != nil {
				continue
			}

			user.Conversations = appendUnique(user.Conversations, conversationID)
			peer.Conversations = appendUnique(peer.Conversations, conversationID)

			time.Sleep(50 * time.Millisecond)
		}
	}
	return nil
}

// createGroups creates named groups whose sizes follow a Zipf
// distribution, so a few groups are busy and most are quiet.
func (s *ChatSimulator) createGroups(ctx context.Context) error {
	if len(s.users) < 3 {
		return nil
	}

	zipf := rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())),
		s.config.ZipfS, 1, uint64(len(s.users)-2))

	s.groups = make([]uuid.UUID, 0, s.config.NumGroups)
	for i := 0; i < s.config.NumGroups; i++ {
		creator := s.users[rand.Intn(len(s.users))]
		groupSize := int(zipf.Uint64()) + 2

		memberIDs := make([]string, 0, groupSize)
		members := make([]*SimulatedUser, 0, groupSize)
		for _, member := range shuffledUsers(s.users) {
			if member.ID == creator.ID {
				continue
			}
			memberIDs = append(memberIDs, member.ID.String())
			members = append(members, member)
			if len(memberIDs) == groupSize {
				break
			}
		}

		data := map[string]interface{}{
			"name":      fmt.Sprintf("%s_%d", getRandomTheme(), i),
			"memberIds": memberIDs,
		}
		resp, err := s.makeRequest("POST", "/conversation/group", creator.Token, data)
		if err != nil {
			log.Printf("Failed to create group: %v", err)
			continue
		}

		var conversation struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(resp, &conversation) != nil || conversation.ID == "" {
			continue
		}
		groupID, err := uuid.Parse(conversation.ID)
		if err != nil {
			continue
		}

		s.groups = append(s.groups, groupID)
		creator.Conversations = appendUnique(creator.Conversations, groupID)
		for _, member := range members {
			member.Conversations = appendUnique(member.Conversations, groupID)
		}

		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func getRandomTheme() string {
	themes := []string{
		"standup", "weekend-plans", "project", "family", "gaming",
		"lunch", "watchparty", "trip", "study", "random",
	}
	return themes[rand.Intn(len(themes))]
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func shuffledUsers(users []*SimulatedUser) []*SimulatedUser {
	shuffled := make([]*SimulatedUser, len(users))
	copy(shuffled, users)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Helper method to make HTTP requests
func (s *ChatSimulator) makeRequest(method, endpoint, token string, data interface{}) ([]byte, error) {
	return s.makeRequestWithClient(s.client, method, endpoint, token, data)
}

func (s *ChatSimulator) makeRequestWithClient(client *http.Client, method, endpoint, token string, data interface{}) ([]byte, error) {
	var body []byte
	var err error

	if data != nil {
		body, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, s.config.EngineURL+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	s.recordRequestMetrics(start, err)

	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (s *ChatSimulator) simulateConnectivity(ctx context.Context) {
	log.Printf("Starting connectivity simulation...")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for _, user := range s.users {
				if user.IsConnected {
					if rand.Float64() < s.config.DisconnectRate {
						user.IsConnected = false
						data := map[string]interface{}{"isOnline": false}
						s.makeRequest("POST", "/user/presence", user.Token, data) // Ignore error as this is just simulation
					}
				} else {
					if rand.Float64() < s.config.ReconnectRate {
						user.IsConnected = true
						data := map[string]interface{}{"isOnline": true}
						s.makeRequest("POST", "/user/presence", user.Token, data) // Ignore error as this is just simulation
					}
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *ChatSimulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)

	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *ChatSimulator) collectMetrics(ctx context.Context) {
	log.Printf("Starting metrics collection...")
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.stats.mu.RLock()
			elapsed := time.Since(s.stats.StartTime)
			requestRate := float64(s.stats.TotalRequests) / elapsed.Seconds()
			successRate := 0.0
			if s.stats.TotalRequests > 0 {
				successRate = float64(s.stats.SuccessRequests) / float64(s.stats.TotalRequests) * 100
			}

			activeUsers := 0
			s.mu.RLock()
			for _, user := range s.users {
				if user.IsConnected {
					activeUsers++
				}
			}
			s.mu.RUnlock()

			s.stats.ActiveUsers = activeUsers

			log.Printf("\nSimulation Metrics (%.1f seconds elapsed):", elapsed.Seconds())
			log.Printf("- Request Rate: %.2f req/sec", requestRate)
			log.Printf("- Success Rate: %.1f%%", successRate)
			log.Printf("- Average Latency: %v", s.stats.AverageLatency)
			log.Printf("- Active Users: %d/%d", activeUsers, len(s.users))
			log.Printf("- Total Messages: %d", s.stats.TotalMessages)
			log.Printf("- Total Views: %d", s.stats.TotalViews)
			log.Printf("- Total Reactions: %d", s.stats.TotalReactions)
			log.Printf("- Failed Requests: %d", s.stats.FailedRequests)

			s.stats.mu.RUnlock()
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers        int
	ActiveUsers       int
	TotalMessages     int
	TotalViews        int
	TotalReactions    int
	AverageLatency    time.Duration
	ErrorCount        int
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *ChatSimulator) GetMetrics() SimulationMetrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	requestRate := float64(s.stats.TotalRequests) / elapsed.Seconds()

	return SimulationMetrics{
		TotalUsers:        len(s.users),
		ActiveUsers:       s.stats.ActiveUsers,
		TotalMessages:     s.stats.TotalMessages,
		TotalViews:        s.stats.TotalViews,
		TotalReactions:    s.stats.TotalReactions,
		AverageLatency:    s.stats.AverageLatency,
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: requestRate,
	}
}
