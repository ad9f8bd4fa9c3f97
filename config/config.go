package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT signing secret and token lifetime in hours
	JWTSecret      string
	JWTExpiryHours int

	// Logging
	LogLevel string
	LogPath  string

	// Editor session tuning
	EditorTickMillis    int // Playback broadcast interval
	EditorCanvasWidth   int // Default workflow canvas size when the client reports none
	EditorCanvasHeight  int
	EditorSnapshotTTLMin int // Minutes a playback snapshot survives in redis
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "mixgrid"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:      getEnv("JWT_SECRET", "mixgrid-dev-secret"),
		JWTExpiryHours: getEnvInt("JWT_EXPIRY_HOURS", 72),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),

		EditorTickMillis:     getEnvInt("EDITOR_TICK_MILLIS", 33),
		EditorCanvasWidth:    getEnvInt("EDITOR_CANVAS_WIDTH", 800),
		EditorCanvasHeight:   getEnvInt("EDITOR_CANVAS_HEIGHT", 600),
		EditorSnapshotTTLMin: getEnvInt("EDITOR_SNAPSHOT_TTL_MIN", 60),
	}
}
