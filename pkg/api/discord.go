package api

import (
	"encoding/json"
	"net/http"

	"github.com/d0mkaaa/portfolio-api/pkg/discord"
)

// handleDiscordToken exchanges an authorization code and resolves the
// user it belongs to in one round trip.
func (s *server) handleDiscordToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirectUri"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"authorization code is required"})

		return
	}

	if s.cfg.Discord.ClientSecret == "" {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"discord oauth not configured"})

		return
	}

	token, err := s.discord.ExchangeCode(r.Context(), req.Code, req.RedirectURI)
	if err != nil {
		s.log.WithError(err).Warn("Discord code exchange failed")
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"failed to exchange authorization code"})

		return
	}

	user, err := s.discord.FetchUser(r.Context(), token.AccessToken)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"failed to fetch user data"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token.AccessToken,
		"user":         user,
	})
}

// handleDiscordActivity serves the owner's presence. Relay failures
// fall back to mock data so the widget never breaks.
func (s *server) handleDiscordActivity(w http.ResponseWriter, r *http.Request) {
	presence, err := s.discord.Presence(r.Context())
	if err != nil {
		s.log.WithError(err).Debug("Presence relay unavailable, using fallback")

		presence = discord.FallbackPresence()
	}

	writeJSON(w, http.StatusOK, presence)
}
