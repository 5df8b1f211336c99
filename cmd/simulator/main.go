package main

import (
	"context"
	"log"
	"time"

	"github.com/ygstudio-game/chatPulse/simulator"
)

func main() {
	config := simulator.SimConfig{
		NumUsers:          10,
		NumGroups:         3,
		SimulationTime:    10 * time.Minute,
		MessageFrequency:  120.0,
		ViewFrequency:     200.0,
		ReactionFrequency: 60.0,
		DisconnectRate:    0.01,
		ReconnectRate:     0.05,
		ZipfS:             1.07,
		EngineURL:         "http://localhost:8080",
	}

	sim := simulator.NewChatSimulator(config)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Engine URL: %s", config.EngineURL)
	log.Printf("- Number of users: %d", config.NumUsers)
	log.Printf("- Number of groups: %d", config.NumGroups)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Message frequency: %.2f messages/user/hour", config.MessageFrequency)
	log.Printf("- View frequency: %.2f views/user/hour", config.ViewFrequency)
	log.Printf("- Reaction frequency: %.2f reactions/user/hour", config.ReactionFrequency)
	log.Printf("- Disconnect rate: %.2f", config.DisconnectRate)
	log.Printf("- Reconnect rate: %.2f", config.ReconnectRate)

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("\nSimulation completed. Final metrics:")
	log.Printf("- Total users: %d", metrics.TotalUsers)
	log.Printf("- Active users at end: %d", metrics.ActiveUsers)
	log.Printf("- Total messages: %d", metrics.TotalMessages)
	log.Printf("- Total views: %d", metrics.TotalViews)
	log.Printf("- Total reactions: %d", metrics.TotalReactions)
	log.Printf("- Error count: %d", metrics.ErrorCount)
}
