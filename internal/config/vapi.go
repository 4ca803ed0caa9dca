package config

import (
	"os"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
)

// Phone number assignment modes
const (
	PhoneAssignmentMock = "mock"
	PhoneAssignmentVapi = "vapi"
)

// VapiConfig holds the Vapi provisioning API configuration
type VapiConfig struct {
	BaseURL             string
	APIKey              string
	SMSToolID           string
	PhoneAssignmentMode string
	MockAreaCode        string
}

// DefaultVapiConfig holds the default Vapi configuration values
var DefaultVapiConfig = VapiConfig{
	BaseURL:             "https://api.vapi.ai",
	SMSToolID:           "ea06a31a-6291-4dd7-bc46-8b1ebd79875d",
	PhoneAssignmentMode: PhoneAssignmentMock,
	MockAreaCode:        "855",
}

// LoadVapiConfig loads Vapi configuration from environment variables
func LoadVapiConfig() VapiConfig {
	config := DefaultVapiConfig

	if baseURL := os.Getenv("VAPI_API_BASE"); baseURL != "" {
		config.BaseURL = baseURL
	}
	config.APIKey = os.Getenv("VAPI_API_KEY")
	if toolID := os.Getenv("VAPI_SMS_TOOL_ID"); toolID != "" {
		config.SMSToolID = toolID
	}
	if areaCode := os.Getenv("MOCK_PHONE_AREA_CODE"); areaCode != "" {
		config.MockAreaCode = areaCode
	}

	switch mode := os.Getenv("PHONE_ASSIGNMENT_MODE"); mode {
	case "":
	case PhoneAssignmentMock, PhoneAssignmentVapi:
		config.PhoneAssignmentMode = mode
	default:
		logger.Base().Warn("unknown phone assignment mode, using mock", zap.String("mode", mode))
	}

	if config.APIKey == "" {
		logger.Base().Warn("VAPI_API_KEY not set, workflow provisioning will fail", zap.String("base_url", config.BaseURL))
	}
	if config.PhoneAssignmentMode == PhoneAssignmentMock {
		logger.Base().Warn("phone numbers are assigned by the mock generator, not suitable for production")
	}
	return config
}
