package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

func (s *ChatSimulator) SimulateActivities(ctx context.Context) error {
	log.Printf("Starting activities simulation...")

	// Views and reactions only make sense once some messages exist.
	messagesAvailable := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateMessages(ctx, messagesAvailable)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-messagesAvailable:
			log.Printf("Starting views after messages available...")
			s.simulateViews(ctx)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-messagesAvailable:
			log.Printf("Starting reactions after messages available...")
			s.simulateReactions(ctx)
		}
	}()

	wg.Wait()
	return nil
}

func (s *ChatSimulator) simulateMessages(ctx context.Context, messagesAvailable chan struct{}) {
	log.Printf("Starting message simulation...")

	tickInterval := 500 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	const numWorkers = 5
	messageJobs := make(chan *SimulatedUser, s.config.NumUsers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for user := range messageJobs {
				if !user.IsConnected || len(user.Conversations) == 0 {
					continue
				}

				if rand.Float64() < (s.config.MessageFrequency/3600.0)/2.0 {
					conversationID := user.Conversations[rand.Intn(len(user.Conversations))]

					// Typing heartbeat first, the way real clients behave.
					typingData := map[string]interface{}{
						"conversationId": conversationID.String(),
						"typing":         true,
					}
					s.makeRequest("POST", "/conversation/typing", user.Token, typingData)
					time.Sleep(time.Duration(rand.Intn(400)+100) * time.Millisecond)

					messageData := map[string]interface{}{
						"conversationId": conversationID.String(),
						"content":        fmt.Sprintf("Message from %s at %s", user.Name, time.Now().Format(time.RFC3339)),
					}

					start := time.Now()
					resp, err := s.makeRequest("POST", "/message", user.Token, messageData)
					if err != nil {
						log.Printf("Debug: Worker %d failed to send message: %v", workerID, err)
						continue
					}

					var message struct {
						ID string `json:"id"`
					}
					if json.Unmarshal(resp, &message) == nil && message.ID != "" {
						if messageID, parseErr := uuid.Parse(message.ID); parseErr == nil {
							s.shareMessageWithPeers(conversationID, user.ID, messageID)
						}
					}

					s.stats.mu.Lock()
					messageCount := s.stats.TotalMessages + 1
					s.stats.TotalMessages = messageCount
					s.stats.mu.Unlock()

					log.Printf("Sent message by user %s (Total: %d) in conversation %s",
						user.Name, messageCount, conversationID)
					s.recordRequestMetrics(start, nil)

					user.LastConversation = conversationID

					if messageCount == 10 {
						select {
						case <-messagesAvailable:
						default:
							close(messagesAvailable)
						}
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(messageJobs)
			wg.Wait()
			return
		case <-ticker.C:
			s.mu.RLock()
			for _, user := range s.users {
				if user.IsConnected {
					select {
					case messageJobs <- user:
					default: // Don't block if channel is full
					}
				}
			}
			s.mu.RUnlock()
		}
	}
}

// shareMessageWithPeers records a sent message id on every co-member so
// the reaction loop has something to react to.
func (s *ChatSimulator) shareMessageWithPeers(conversationID, senderID, messageID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, peer := range s.users {
		if peer.ID == senderID {
			continue
		}
		for _, id := range peer.Conversations {
			if id == conversationID {
				peer.SeenMessages = append(peer.SeenMessages, messageID)
				break
			}
		}
	}
}

func (s *ChatSimulator) simulateViews(ctx context.Context) {
	log.Printf("Starting view simulation...")

	tickInterval := 500 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	const numWorkers = 5
	viewJobs := make(chan *SimulatedUser, s.config.NumUsers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for user := range viewJobs {
				if !user.IsConnected || len(user.Conversations) == 0 {
					continue
				}

				if rand.Float64() < (s.config.ViewFrequency/3600.0)/2.0 {
					conversationID := user.Conversations[rand.Intn(len(user.Conversations))]

					// Fetch the page first, then acknowledge it, like a
					// client opening a conversation.
					start := time.Now()
					_, err := s.makeRequest("GET",
						fmt.Sprintf("/message?conversationId=%s&limit=30", conversationID), user.Token, nil)
					if err != nil {
						log.Printf("Debug: Worker %d failed to list messages: %v", workerID, err)
						s.recordRequestMetrics(start, err)
						continue
					}

					viewData := map[string]interface{}{
						"conversationId": conversationID.String(),
					}
					if _, err := s.makeRequest("POST", "/conversation/view", user.Token, viewData); err == nil {
						s.stats.mu.Lock()
						s.stats.TotalViews++
						viewCount := s.stats.TotalViews
						s.stats.mu.Unlock()
						log.Printf("Marked viewed by user %s (Total: %d)", user.Name, viewCount)
					}
					s.recordRequestMetrics(start, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(viewJobs)
			wg.Wait()
			return
		case <-ticker.C:
			s.mu.RLock()
			for _, user := range s.users {
				if user.IsConnected {
					select {
					case viewJobs <- user:
					default:
					}
				}
			}
			s.mu.RUnlock()
		}
	}
}

func (s *ChatSimulator) simulateReactions(ctx context.Context) {
	log.Printf("Starting reaction simulation...")

	emojis := []string{"👍", "❤️", "😂", "😮", "😢", "🔥"}

	tickInterval := 500 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	const numWorkers = 5
	reactionJobs := make(chan *SimulatedUser, s.config.NumUsers)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for user := range reactionJobs {
				if !user.IsConnected {
					continue
				}

				if rand.Float64() < (s.config.ReactionFrequency/3600.0)/2.0 {
					messageID, err := s.getRandomMessageToReact(user)
					if err != nil {
						continue
					}
					if user.ReactedMessages[messageID] {
						continue
					}

					data := map[string]interface{}{
						"messageId": messageID.String(),
						"emoji":     emojis[rand.Intn(len(emojis))],
					}

					start := time.Now()
					if _, err := s.makeRequest("POST", "/message/reaction", user.Token, data); err == nil {
						s.mu.Lock()
						user.ReactedMessages[messageID] = true
						s.mu.Unlock()
						s.stats.mu.Lock()
						s.stats.TotalReactions++
						s.stats.mu.Unlock()
						log.Printf("Added reaction by user %s", user.Name)
					}
					s.recordRequestMetrics(start, nil)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(reactionJobs)
			wg.Wait()
			return
		case <-ticker.C:
			s.mu.RLock()
			for _, user := range s.users {
				if user.IsConnected {
					select {
					case reactionJobs <- user:
					default:
					}
				}
			}
			s.mu.RUnlock()
		}
	}
}

func (s *ChatSimulator) getRandomMessageToReact(user *SimulatedUser) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(user.SeenMessages) == 0 {
		return uuid.Nil, fmt.Errorf("no messages seen yet")
	}
	return user.SeenMessages[rand.Intn(len(user.SeenMessages))], nil
}
