// Package config provides configuration for the leadchat service.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the leadchat service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database (session persistence substrate)
	DatabaseURL string

	// Inference endpoint
	InferenceURL     string
	InferenceAPIKey  string
	InferenceModel   string
	InferenceTimeout time.Duration

	// CRM lead collaborator
	CRMBaseURL string
	CRMAPIKey  string

	// Ad-conversion collaborators (best-effort)
	GoogleAdsConversionURL string
	MetaPixelConversionURL string
	NotifyTimeout          time.Duration

	// Hand-off channel
	WhatsAppNumber string

	// Public site the widget is embedded on (conversion source URL)
	PortalURL string

	// Session lifecycle
	SessionTTL time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: failed to load .env: %v", err)
	}

	cfg := &Config{
		HTTPPort:               getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:            getEnv("DATABASE_URL", "file:leadchat.db?cache=shared&mode=rwc"),
		InferenceURL:           getEnv("INFERENCE_URL", "http://localhost:4000"),
		InferenceAPIKey:        getEnv("INFERENCE_API_KEY", ""),
		InferenceModel:         getEnv("INFERENCE_MODEL", "gpt-4o-mini"),
		InferenceTimeout:       time.Duration(getEnvInt("INFERENCE_TIMEOUT_MS", 120000)) * time.Millisecond,
		CRMBaseURL:             getEnv("CRM_BASE_URL", "http://localhost:8090"),
		CRMAPIKey:              getEnv("CRM_API_KEY", ""),
		GoogleAdsConversionURL: getEnv("GOOGLE_ADS_CONVERSION_URL", ""),
		MetaPixelConversionURL: getEnv("META_PIXEL_CONVERSION_URL", ""),
		NotifyTimeout:          time.Duration(getEnvInt("NOTIFY_TIMEOUT_MS", 3000)) * time.Millisecond,
		WhatsAppNumber:         getEnv("WHATSAPP_NUMBER", "5511999999999"),
		PortalURL:              getEnv("PORTAL_URL", "https://www.grupomeraki.com.br"),
		SessionTTL:             time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
