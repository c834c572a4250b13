package store

import (
	"context"
	"errors"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested row does not exist. Callers
// treat a missing AuthToken row as "service not connected" rather than
// a fatal error.
var ErrNotFound = errors.New("not found")

// Store provides persistence for portfolio resources. Three
// interchangeable implementations exist (embedded sqlite, hosted
// postgres, hosted backend-as-a-service); callers must not depend on
// which driver is active.
type Store interface {
	// Start opens the backend connection, migrates the schema, and
	// seeds the singleton settings rows. It is idempotent and safe
	// under concurrent first use. Stop is the teardown hook.
	Start(ctx context.Context) error
	Stop() error

	// Contact messages.
	CreateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context) ([]Message, error)
	MarkMessageRead(ctx context.Context, id uint) error
	DeleteMessage(ctx context.Context, id uint) error
	CountUnreadMessages(ctx context.Context) (int64, error)

	// OAuth tokens, one row per service name.
	GetToken(ctx context.Context, service string) (*AuthToken, error)
	SaveToken(
		ctx context.Context,
		service, accessToken, refreshToken string,
		expiresIn *int,
	) (*AuthToken, error)
	DeleteToken(ctx context.Context, service string) error

	// Singleton settings rows.
	GetRepositorySettings(ctx context.Context) (*RepositorySettings, error)
	UpdateRepositorySettings(
		ctx context.Context,
		hidden, featured *[]string,
	) (*RepositorySettings, error)
	GetActivitySettings(ctx context.Context) (*ActivitySettings, error)
	UpdateActivitySettings(
		ctx context.Context,
		toggles ActivityToggles,
	) (*ActivitySettings, error)
}

// Compile-time interface checks.
var (
	_ Store = (*gormStore)(nil)
	_ Store = (*supabaseStore)(nil)
)

// NewStore creates a Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	if cfg.Driver == "supabase" {
		return newSupabaseStore(log, &cfg.Supabase)
	}

	return &gormStore{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}
