// Package api implements the portfolio HTTP server.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/d0mkaaa/portfolio-api/pkg/discord"
	"github.com/d0mkaaa/portfolio-api/pkg/github"
	"github.com/d0mkaaa/portfolio-api/pkg/spotify"
	"github.com/d0mkaaa/portfolio-api/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	spotify    *spotify.Client
	discord    *discord.Client
	github     *github.Client
	adminHash  []byte
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer creates a new API server.
func NewServer(log logrus.FieldLogger, cfg *config.Config) Server {
	return &server{
		log: log.WithField("component", "api"),
		cfg: cfg,
	}
}

// Start initializes the store and upstream clients and starts the
// HTTP server.
func (s *server) Start(ctx context.Context) error {
	// Create and start the database store.
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	// The admin key is only ever held hashed; requests are compared
	// against the hash.
	if s.cfg.Admin.APIKey != "" {
		hash, err := bcrypt.GenerateFromPassword(
			[]byte(s.cfg.Admin.APIKey), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing admin key: %w", err)
		}

		s.adminHash = hash
	}

	s.spotify = spotify.NewClient(s.log, &s.cfg.Spotify, s.store)
	s.discord = discord.NewClient(s.log, &s.cfg.Discord)
	s.github = github.NewClient(s.log, &s.cfg.GitHub)

	// Build router and start HTTP server.
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
