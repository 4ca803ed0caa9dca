package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Reconfirmation policies for a payment confirmation on an already completed client
const (
	ReconfirmRerun              = "rerun"
	ReconfirmRetryUnprovisioned = "retry-unprovisioned"
	ReconfirmReject             = "reject"
)

// LoadToolsServiceConfig loads the service configuration from environment variables.
// The .env file is loaded by the binaries before calling this.
func LoadToolsServiceConfig() *ToolsServiceConfig {
	port := getEnvOrDefault("PORT", "3000")

	cfg := &ToolsServiceConfig{
		Port:       port,
		LogEnv:     getEnvOrDefault("LOG_ENV", "development"),
		EnableCORS: getEnvAsBoolOrDefault("ENABLE_CORS", true),
		InstanceID: getDynamicInstanceID(),
		SecretKey:  os.Getenv("SECRET_KEY"),
		DBDriver:   getEnvOrDefault("DB_DRIVER", "postgres"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		SMSRatePerSecond: getEnvAsFloatOrDefault("SMS_RATE_PER_SECOND", 1),
		SMSBurst:         getEnvAsIntOrDefault("SMS_BURST", 5),

		BusinessDisplayName: getEnvOrDefault("BUSINESS_DISPLAY_NAME", "Green Glow Gardens"),
		BusinessOwnerPhone:  os.Getenv("BUSINESS_OWNER_PHONE"),
		AssistantName:       getEnvOrDefault("ASSISTANT_NAME", "Jane"),

		Vapi: LoadVapiConfig(),

		PaymentLinkBaseURL:  getEnvOrDefault("PAYMENT_LINK_BASE_URL", "https://checkout.stripe.com/pay"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnvOrDefault("GOOGLE_REDIRECT_URL", fmt.Sprintf("http://localhost:%s/oauth2callback", port)),
		CalendarID:         getEnvOrDefault("GOOGLE_CALENDAR_ID", "primary"),
		CalendarTimeZone:   getEnvOrDefault("CALENDAR_TIME_ZONE", "America/New_York"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsIntOrDefault("REDIS_DB", 0),

		OutboxDrainSchedule: getEnvOrDefault("OUTBOX_DRAIN_SCHEDULE", "@every 5m"),
		OutboxMaxAttempts:   getEnvAsIntOrDefault("OUTBOX_MAX_ATTEMPTS", 5),

		PubSubProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:     getEnvOrDefault("PUBSUB_TOPIC", "astra-onboarding-events"),

		WorkflowArchiveBucket: os.Getenv("WORKFLOW_ARCHIVE_BUCKET"),

		ReconfirmPolicy:     getEnvOrDefault("RECONFIRM_POLICY", ReconfirmRetryUnprovisioned),
		CollaboratorTimeout: time.Duration(getEnvAsIntOrDefault("COLLABORATOR_TIMEOUT_SECONDS", 20)) * time.Second,
	}

	return cfg
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDynamicInstanceID prefers the hostname (pod name in Kubernetes) and falls back to a timestamp ID
func getDynamicInstanceID() string {
	if hostname, err := os.Hostname(); err == nil && strings.TrimSpace(hostname) != "" {
		return hostname
	}
	return fmt.Sprintf("voice-tools-%d", time.Now().UnixNano())
}
