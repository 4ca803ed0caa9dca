package config

import "time"

// ToolsServiceConfig represents configuration for the voice tools service
type ToolsServiceConfig struct {
	Port       string
	LogEnv     string
	EnableCORS bool

	// Instance identifier for multi-pod monitoring
	InstanceID string

	// SecretKey signs operator API keys (X-API-Key JWT); empty disables the check
	SecretKey string

	// Storage backend: "postgres" or "memory"
	DBDriver string

	// Twilio messaging
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSRatePerSecond float64
	SMSBurst         int

	// Business the scheduling assistant works for
	BusinessDisplayName string
	BusinessOwnerPhone  string
	AssistantName       string

	// Vapi provisioning
	Vapi VapiConfig

	// Payment links and webhooks
	PaymentLinkBaseURL  string
	StripeWebhookSecret string

	// Google Calendar OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	CalendarID         string
	CalendarTimeZone   string

	// Redis (notification outbox)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Outbox redelivery
	OutboxDrainSchedule string
	OutboxMaxAttempts   int

	// Pub/Sub lifecycle events (disabled when project is empty)
	PubSubProjectID string
	PubSubTopic     string

	// GCS archive of submitted workflow specs (disabled when bucket is empty)
	WorkflowArchiveBucket string

	// Onboarding behavior
	ReconfirmPolicy     string
	CollaboratorTimeout time.Duration
}

// RedisEnabled reports whether a Redis host was configured
func (c *ToolsServiceConfig) RedisEnabled() bool {
	return c.RedisHost != ""
}
