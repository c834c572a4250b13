package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/discord"
	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireAdmin accepts either the shared admin key or a Discord token
// belonging to the owner account. A valid token for the wrong user is
// a 403, everything else a 401.
func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-Admin-Key"); key != "" {
			if s.adminHash != nil && bcrypt.CompareHashAndPassword(
				s.adminHash, []byte(key),
			) == nil {
				next.ServeHTTP(w, r)

				return
			}

			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid admin key"})

			return
		}

		if token := r.Header.Get("Discord-Token"); token != "" {
			_, err := s.discord.VerifyAdmin(r.Context(), token)
			if err == nil {
				next.ServeHTTP(w, r)

				return
			}

			if errors.Is(err, discord.ErrWrongIdentity) {
				writeJSON(w, http.StatusForbidden,
					errorResponse{"not authorized for this resource"})

				return
			}

			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"invalid discord token"})

			return
		}

		writeJSON(w, http.StatusUnauthorized,
			errorResponse{"authentication required"})
	})
}
