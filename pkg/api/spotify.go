package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/d0mkaaa/portfolio-api/pkg/spotify"
)

// handleSpotifyToken exchanges an authorization code for tokens. The
// client secret never leaves the server.
func (s *server) handleSpotifyToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"authorization code is required"})

		return
	}

	if s.cfg.Spotify.ClientSecret == "" {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"spotify oauth not configured"})

		return
	}

	token, err := s.spotify.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		s.log.WithError(err).Warn("Spotify code exchange failed")
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"failed to exchange authorization code"})

		return
	}

	writeJSON(w, http.StatusOK, token)
}

// handleSpotifySaveToken persists a token pair obtained by the
// dashboard.
func (s *server) handleSpotifySaveToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	if req.AccessToken == "" || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"missing required tokens"})

		return
	}

	token := &spotify.TokenResponse{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    req.ExpiresIn,
	}

	if _, err := s.spotify.SaveTokens(r.Context(), token); err != nil {
		s.serverError(w, "failed to save tokens", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Spotify tokens saved successfully",
	})
}

// handleSpotifyCurrentTrack serves the currently playing track. A
// caller may supply their own bearer token, otherwise the stored
// token is used.
func (s *server) handleSpotifyCurrentTrack(w http.ResponseWriter, r *http.Request) {
	bearer := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		bearer = auth[7:]
	}

	track, err := s.spotify.CurrentTrack(r.Context(), bearer)
	if err != nil {
		switch {
		case errors.Is(err, spotify.ErrNotConnected):
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"no valid spotify access token available"})
		case errors.Is(err, spotify.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"spotify authentication expired"})
		default:
			s.serverError(w, "failed to fetch current track", err)
		}

		return
	}

	writeJSON(w, http.StatusOK, track)
}

// handleSpotifyDisconnect removes stored Spotify credentials.
// Idempotent, disconnecting twice is fine.
func (s *server) handleSpotifyDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.spotify.Disconnect(r.Context()); err != nil {
		s.serverError(w, "failed to disconnect spotify", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Spotify disconnected",
	})
}
