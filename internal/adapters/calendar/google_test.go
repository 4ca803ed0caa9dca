package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeToken(t *testing.T, repo repository.OAuthTokenRepository) {
	require.NoError(t, repo.Save(context.Background(), &domain.OAuthToken{
		Provider:    domain.OAuthProviderGoogleCalendar,
		AccessToken: "access-1",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
}

func TestInsertEventWithoutToken(t *testing.T) {
	g := NewGoogleCalendar(Config{}, repository.NewMemoryOAuthTokenRepository())
	_, err := g.InsertEvent(context.Background(), domain.CalendarEvent{Summary: "x"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestInsertEvent(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/primary/events"), r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt_1","htmlLink":"https://calendar.google.com/event?eid=evt_1"}`))
	}))
	defer server.Close()

	tokens := repository.NewMemoryOAuthTokenRepository()
	storeToken(t, tokens)
	g := NewGoogleCalendar(Config{}, tokens, WithEndpoint(server.URL+"/"))

	link, err := g.InsertEvent(context.Background(), domain.CalendarEvent{
		Summary:   "Lawn survey",
		StartTime: "2025-06-01T10:00:00",
		EndTime:   "2025-06-01T11:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.google.com/event?eid=evt_1", link)
	assert.Equal(t, "Lawn survey", got["summary"])

	start := got["start"].(map[string]interface{})
	assert.Equal(t, "America/New_York", start["timeZone"])
	assert.Equal(t, "2025-06-01T10:00:00", start["dateTime"])
}

func TestInsertEventSurfacesProviderMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid start time."}}`))
	}))
	defer server.Close()

	tokens := repository.NewMemoryOAuthTokenRepository()
	storeToken(t, tokens)
	g := NewGoogleCalendar(Config{}, tokens, WithEndpoint(server.URL+"/"))

	_, err := g.InsertEvent(context.Background(), domain.CalendarEvent{Summary: "x"})
	require.Error(t, err)
	assert.Equal(t, "Invalid start time.", err.Error())
}

func TestAuthCodeURL(t *testing.T) {
	g := NewGoogleCalendar(Config{ClientID: "cid", RedirectURL: "http://localhost:3000/oauth2callback"}, repository.NewMemoryOAuthTokenRepository())
	u := g.AuthCodeURL("state")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "client_id=cid")
	assert.Contains(t, u, "calendar")
}
