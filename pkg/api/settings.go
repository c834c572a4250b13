package api

import (
	"encoding/json"
	"net/http"

	"github.com/d0mkaaa/portfolio-api/pkg/store"
)

type repositorySettingsResponse struct {
	HiddenRepos   []string `json:"hidden_repos"`
	FeaturedRepos []string `json:"featured_repos"`
}

func (s *server) handleGetRepositorySettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetRepositorySettings(r.Context())
	if err != nil {
		s.serverError(w, "failed to load repository settings", err)

		return
	}

	writeJSON(w, http.StatusOK, repositorySettingsResponse{
		HiddenRepos:   settings.Hidden(),
		FeaturedRepos: settings.Featured(),
	})
}

func (s *server) handleUpdateRepositorySettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HiddenRepos   *[]string `json:"hidden_repos"`
		FeaturedRepos *[]string `json:"featured_repos"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	settings, err := s.store.UpdateRepositorySettings(
		r.Context(), req.HiddenRepos, req.FeaturedRepos,
	)
	if err != nil {
		s.serverError(w, "failed to update repository settings", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"settings": repositorySettingsResponse{
			HiddenRepos:   settings.Hidden(),
			FeaturedRepos: settings.Featured(),
		},
	})
}

// handleGetActivitySettings serves the widget visibility toggles.
// Falls back to everything enabled when the store is unreachable so
// the public site keeps rendering.
func (s *server) handleGetActivitySettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetActivitySettings(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("Failed to load activity settings")

		settings = &store.ActivitySettings{
			UserID:      store.DefaultUserID,
			ShowDiscord: true,
			ShowSpotify: true,
			ShowCoding:  true,
			ShowGaming:  true,
			ShowGeneral: true,
		}
	}

	writeJSON(w, http.StatusOK, settings)
}

func (s *server) handleUpdateActivitySettings(w http.ResponseWriter, r *http.Request) {
	var toggles store.ActivityToggles
	if err := json.NewDecoder(r.Body).Decode(&toggles); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	settings, err := s.store.UpdateActivitySettings(r.Context(), toggles)
	if err != nil {
		s.serverError(w, "failed to update activity settings", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"settings": settings,
	})
}
