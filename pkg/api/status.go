package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/discord"
	"github.com/d0mkaaa/portfolio-api/pkg/spotify"
	"github.com/d0mkaaa/portfolio-api/pkg/store"
)

// handleStatus composes the public widget payload: Discord presence
// and Spotify now-playing fetched concurrently, each degrading to its
// own fallback, filtered by the owner's visibility toggles.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetActivitySettings(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("Failed to load activity settings")

		settings = &store.ActivitySettings{
			ShowDiscord: true,
			ShowSpotify: true,
			ShowCoding:  true,
			ShowGaming:  true,
			ShowGeneral: true,
		}
	}

	var (
		wg       sync.WaitGroup
		presence *discord.Presence
		track    *spotify.Track
	)

	if settings.ShowDiscord {
		wg.Add(1)

		go func() {
			defer wg.Done()

			p, err := s.discord.Presence(r.Context())
			if err != nil {
				s.log.WithError(err).
					Debug("Presence relay unavailable, using fallback")

				p = discord.FallbackPresence()
			}

			presence = p
		}()
	}

	if settings.ShowSpotify {
		wg.Add(1)

		go func() {
			defer wg.Done()

			t, err := s.spotify.CurrentTrack(r.Context(), "")
			if err != nil {
				t = &spotify.Track{
					IsPlaying: false,
					FetchedAt: time.Now().UnixMilli(),
				}
			}

			track = t
		}()
	}

	wg.Wait()

	if presence != nil {
		presence.Activity = filterActivity(presence.Activity, settings)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"discord":     presence,
		"spotify":     track,
		"lastUpdated": time.Now().UTC().Format(time.RFC3339),
	})
}

// filterActivity drops an activity whose category the owner has
// toggled off.
func filterActivity(
	act *discord.Activity, settings *store.ActivitySettings,
) *discord.Activity {
	if act == nil {
		return nil
	}

	switch act.Category {
	case "coding":
		if !settings.ShowCoding {
			return nil
		}
	case "gaming":
		if !settings.ShowGaming {
			return nil
		}
	default:
		if !settings.ShowGeneral {
			return nil
		}
	}

	return act
}

// handleAdminStatus reports integration health for the dashboard.
func (s *server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	spotifyConnected := false

	var spotifyErr, storeErr string

	storeWorking := true

	token, err := s.store.GetToken(r.Context(), spotify.ServiceName)

	switch {
	case err == nil:
		spotifyConnected = token.RefreshToken != ""
	case errors.Is(err, store.ErrNotFound):
	default:
		storeWorking = false
		storeErr = err.Error()
		spotifyErr = err.Error()
	}

	message := "Connect Spotify in your dashboard to show real-time music activity to visitors."
	if spotifyConnected {
		message = "All systems operational! Your Spotify activity is live on your public website."
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status": map[string]any{
			"spotify": map[string]any{
				"connected": spotifyConnected,
				"error":     orNil(spotifyErr),
			},
			"database": map[string]any{
				"working": storeWorking,
				"error":   orNil(storeErr),
			},
		},
		"message": message,
	})
}

func orNil(s string) any {
	if s == "" {
		return nil
	}

	return s
}
