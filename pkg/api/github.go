package api

import (
	"net/http"

	"github.com/d0mkaaa/portfolio-api/pkg/github"
)

// handleListRepos serves the public repository list with the owner's
// visibility settings applied.
func (s *server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.github.ListRepos(r.Context())
	if err != nil {
		s.serverError(w, "failed to fetch repositories", err)

		return
	}

	hidden := map[string]bool{}
	featured := map[string]bool{}

	// Settings are best effort here, an unreachable store should not
	// take the public repo list down with it.
	if settings, err := s.store.GetRepositorySettings(r.Context()); err == nil {
		for _, name := range settings.Hidden() {
			hidden[name] = true
		}

		for _, name := range settings.Featured() {
			featured[name] = true
		}
	} else {
		s.log.WithError(err).Warn("Failed to load repository settings")
	}

	visible := make([]github.Repo, 0, len(repos))

	for _, repo := range repos {
		if hidden[repo.Name] {
			continue
		}

		repo.Featured = featured[repo.Name]
		visible = append(visible, repo)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"repos":   visible,
		"total":   len(visible),
	})
}

// handleGitHubStats serves the aggregated activity summary.
func (s *server) handleGitHubStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.github.Stats(r.Context())
	if err != nil {
		s.serverError(w, "failed to fetch github stats", err)

		return
	}

	writeJSON(w, http.StatusOK, stats)
}
