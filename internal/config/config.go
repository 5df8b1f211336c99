// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// DatabaseConfig holds MongoDB connection settings
type DatabaseConfig struct {
	URI      string
	Database string
}

// AIConfig holds settings for the assistant service (summaries, smart
// replies, transcription). The service is optional; an empty APIKey makes
// every call degrade to its static fallback.
type AIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RoomConfig holds credentials for signing access tokens for the external
// audio/video room service.
type RoomConfig struct {
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	AI             *AIConfig
	Room           *RoomConfig
	JWTSecret      string
	TypingLeaseTTL time.Duration
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URI:      "mongodb://localhost:27017",
		Database: "chatpulse",
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",          // Current directory
		"../../.env",    // Project root when running from cmd/engine
		"../../../.env", // Even higher directory
		filepath.Join(os.Getenv("GOPATH"), "src/chatPulse/.env"), // GOPATH location
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		// Silent failure if no .env exists, which is fine
		_ = godotenv.Load()
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := DefaultDatabaseConfig()
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		dbConfig.URI = uri
	}
	if name := os.Getenv("MONGODB_DATABASE"); name != "" {
		dbConfig.Database = name
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	aiConfig := &AIConfig{
		APIKey:  getEnvOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_GEMINI_API_KEY")),
		Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		Timeout: 30 * time.Second,
	}

	roomConfig := &RoomConfig{
		APIKey:    os.Getenv("ROOM_API_KEY"),
		APISecret: os.Getenv("ROOM_API_SECRET"),
		TokenTTL:  6 * time.Hour,
	}
	if ttlStr := os.Getenv("ROOM_TOKEN_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			roomConfig.TokenTTL = ttl
		}
	}

	config := &Config{
		Server:         serverConfig,
		Database:       dbConfig,
		AI:             aiConfig,
		Room:           roomConfig,
		JWTSecret:      jwtSecret,
		TypingLeaseTTL: 3 * time.Second,
		AllowedOrigins: []string{"*"}, // Default to allow all origins
		Debug:          false,
	}

	if ttlStr := os.Getenv("TYPING_LEASE_TTL"); ttlStr != "" {
		if ttl, err := time.ParseDuration(ttlStr); err == nil {
			config.TypingLeaseTTL = ttl
		}
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
