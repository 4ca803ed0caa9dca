package domain

import (
	"time"
)

// OAuthProviderGoogleCalendar identifies the stored Google Calendar credentials
const OAuthProviderGoogleCalendar = "google_calendar"

// OAuthToken stores the credentials obtained from an OAuth authorization-code exchange
type OAuthToken struct {
	Provider     string    `json:"provider" gorm:"column:provider;type:varchar(64);primaryKey"`
	AccessToken  string    `json:"-" gorm:"column:access_token;type:text"`
	RefreshToken string    `json:"-" gorm:"column:refresh_token;type:text"`
	TokenType    string    `json:"token_type" gorm:"column:token_type;type:varchar(32)"`
	Expiry       time.Time `json:"expiry" gorm:"column:expiry"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for OAuthToken
func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
