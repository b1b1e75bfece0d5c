package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the civic reports service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Auth configuration
	JWTSecret string

	// Ward reference data
	WardFilesDir string

	// Geospatial resolution
	MaxWardDistanceKm float64

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// OpenAI configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Verification cache
	VerificationCacheTTL time.Duration

	// RabbitMQ configuration
	AMQPURL      string
	AMQPExchange string

	// Nominatim configuration
	NominatimURL string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "civicreports"),

		Port: getEnv("PORT", "8080"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		WardFilesDir: getEnv("WARD_FILES_DIR", "./wards"),

		MaxWardDistanceKm: getFloatEnv("MAX_WARD_DISTANCE_KM", 10.0),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Civic Reports"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "noreply@civicreports.example"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		VerificationCacheTTL: time.Duration(getIntEnv("VERIFICATION_CACHE_TTL_HOURS", 24)) * time.Hour,

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "civic_reports"),

		NominatimURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
