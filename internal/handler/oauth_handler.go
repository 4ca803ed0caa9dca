package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CalendarAuthorizer runs the Google OAuth consent flow for the business calendar
type CalendarAuthorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// OAuthHandler serves the calendar consent flow
type OAuthHandler struct {
	authorizer CalendarAuthorizer
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(authorizer CalendarAuthorizer) *OAuthHandler {
	return &OAuthHandler{authorizer: authorizer}
}

// SetupOAuthRoutes registers the consent routes
func (h *OAuthHandler) SetupOAuthRoutes(router *mux.Router) {
	router.HandleFunc("/auth", h.Authorize).Methods(http.MethodGet)
	router.HandleFunc("/oauth2callback", h.Callback).Methods(http.MethodGet)
}

// Authorize redirects to the Google consent screen
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.authorizer.AuthCodeURL("state"), http.StatusFound)
}

// Callback exchanges the authorization code and stores the tokens
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "Missing code parameter.")
		return
	}

	if err := h.authorizer.Exchange(r.Context(), code); err != nil {
		logger.Error(r.Context(), "Error retrieving access token", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Error retrieving access token. Check logs.")
		return
	}

	logger.Info(r.Context(), "calendar authorized")
	writeText(w, http.StatusOK, "Authentication successful! You can close this tab now.")
}
