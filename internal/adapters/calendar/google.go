package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrNotAuthorized is returned when no Google Calendar token has been stored yet
var ErrNotAuthorized = errors.New("No stored OAuth tokens found. Please visit /auth first.")

// Config holds the Google OAuth client and target calendar
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
	TimeZone     string
}

// Option customizes a GoogleCalendar
type Option func(*GoogleCalendar)

// WithEndpoint points the Calendar API client at a different base URL
func WithEndpoint(endpoint string) Option {
	return func(g *GoogleCalendar) {
		g.endpoint = endpoint
	}
}

// GoogleCalendar inserts events into a Google Calendar using the stored OAuth token
type GoogleCalendar struct {
	oauth      *oauth2.Config
	tokens     repository.OAuthTokenRepository
	calendarID string
	timeZone   string
	endpoint   string
}

// NewGoogleCalendar creates the calendar collaborator
func NewGoogleCalendar(cfg Config, tokens repository.OAuthTokenRepository, opts ...Option) *GoogleCalendar {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	timeZone := cfg.TimeZone
	if timeZone == "" {
		timeZone = "America/New_York"
	}

	g := &GoogleCalendar{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		},
		tokens:     tokens,
		calendarID: calendarID,
		timeZone:   timeZone,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TimeZone returns the zone events are created in
func (g *GoogleCalendar) TimeZone() string {
	return g.timeZone
}

// AuthCodeURL returns the consent page URL requesting offline access
func (g *GoogleCalendar) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and stores it
func (g *GoogleCalendar) Exchange(ctx context.Context, code string) error {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := g.tokens.Save(ctx, tokenToDomain(token)); err != nil {
		return fmt.Errorf("failed to store oauth token: %w", err)
	}
	logger.Info(ctx, "Google Calendar token stored", zap.Time("expiry", token.Expiry))
	return nil
}

// InsertEvent creates the event and returns its HTML link, which may be empty
func (g *GoogleCalendar) InsertEvent(ctx context.Context, ev domain.CalendarEvent) (string, error) {
	stored, err := g.tokens.Get(ctx, domain.OAuthProviderGoogleCalendar)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrNotAuthorized
		}
		return "", fmt.Errorf("failed to load oauth token: %w", err)
	}

	source := &persistingTokenSource{
		ctx:    context.WithoutCancel(ctx),
		base:   g.oauth.TokenSource(ctx, tokenFromDomain(stored)),
		tokens: g.tokens,
		last:   stored.AccessToken,
	}

	opts := []option.ClientOption{option.WithTokenSource(source)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create calendar service: %w", err)
	}

	timeZone := ev.TimeZone
	if timeZone == "" {
		timeZone = g.timeZone
	}
	event := &gcal.Event{
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.StartTime, TimeZone: timeZone},
		End:         &gcal.EventDateTime{DateTime: ev.EndTime, TimeZone: timeZone},
	}

	created, err := svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", errors.New(apiErr.Message)
		}
		return "", err
	}

	logger.Info(ctx, "Calendar event created", zap.String("event_id", created.Id), zap.String("calendar_id", g.calendarID))
	return created.HtmlLink, nil
}

// persistingTokenSource writes refreshed tokens back to the store
type persistingTokenSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	tokens repository.OAuthTokenRepository

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.tokens.Save(s.ctx, tokenToDomain(token)); err != nil {
			logger.Warn(s.ctx, "Failed to persist refreshed calendar token", zap.Error(err))
		}
	}
	return token, nil
}

func tokenToDomain(t *oauth2.Token) *domain.OAuthToken {
	return &domain.OAuthToken{
		Provider:     domain.OAuthProviderGoogleCalendar,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func tokenFromDomain(t *domain.OAuthToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}
