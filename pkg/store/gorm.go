package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormStore backs the sqlite and postgres drivers with a shared gorm
// implementation.
type gormStore struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig

	mu      sync.Mutex
	started bool
	db      *gorm.DB
}

// Start opens the database connection, runs migrations, and seeds the
// singleton settings rows. Concurrent callers race on the mutex; only
// the first opens the connection.
func (s *gormStore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	var dialector gorm.Dialector

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&Message{},
		&AuthToken{},
		&RepositorySettings{},
		&ActivitySettings{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.db = db

	if err := s.seedSettings(ctx); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}

	s.started = true

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *gormStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	s.started = false
	s.db = nil

	return sqlDB.Close()
}

// seedSettings creates the singleton settings rows with defaults if
// they do not exist yet.
func (s *gormStore) seedSettings(ctx context.Context) error {
	repo := RepositorySettings{
		UserID:        DefaultUserID,
		HiddenRepos:   "[]",
		FeaturedRepos: "[]",
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", DefaultUserID).
		FirstOrCreate(&repo).Error; err != nil {
		return fmt.Errorf("seeding repository settings: %w", err)
	}

	activity := ActivitySettings{
		UserID:      DefaultUserID,
		ShowDiscord: true,
		ShowSpotify: true,
		ShowCoding:  true,
		ShowGaming:  true,
		ShowGeneral: true,
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", DefaultUserID).
		FirstOrCreate(&activity).Error; err != nil {
		return fmt.Errorf("seeding activity settings: %w", err)
	}

	return nil
}

// --- Contact messages ---

func (s *gormStore) CreateMessage(ctx context.Context, msg *Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("creating message: %w", err)
	}

	return nil
}

func (s *gormStore) ListMessages(ctx context.Context) ([]Message, error) {
	var messages []Message
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	return messages, nil
}

func (s *gormStore) MarkMessageRead(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&Message{}).
		Where("id = ?", id).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("marking message read: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *gormStore) DeleteMessage(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Message{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting message: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *gormStore) CountUnreadMessages(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Message{}).
		Where("read = ?", false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}

	return count, nil
}

// --- OAuth tokens ---

func (s *gormStore) GetToken(
	ctx context.Context, service string,
) (*AuthToken, error) {
	var token AuthToken
	if err := s.db.WithContext(ctx).
		Where("service = ?", service).
		First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("getting token for %q: %w", service, err)
	}

	return &token, nil
}

// SaveToken upserts the token row for a service. When the provider did
// not rotate the refresh token (refreshToken empty), the previously
// stored refresh token is preserved.
func (s *gormStore) SaveToken(
	ctx context.Context,
	service, accessToken, refreshToken string,
	expiresIn *int,
) (*AuthToken, error) {
	var expiresAt *time.Time

	if expiresIn != nil {
		t := time.Now().UTC().Add(time.Duration(*expiresIn) * time.Second)
		expiresAt = &t
	}

	var token AuthToken

	err := s.db.WithContext(ctx).
		Where("service = ?", service).
		First(&token).Error

	switch {
	case err == nil:
		token.AccessToken = accessToken
		if refreshToken != "" {
			token.RefreshToken = refreshToken
		}

		token.ExpiresAt = expiresAt

		if err := s.db.WithContext(ctx).Save(&token).Error; err != nil {
			return nil, fmt.Errorf("updating token for %q: %w", service, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		token = AuthToken{
			Service:      service,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
		}

		if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
			return nil, fmt.Errorf("creating token for %q: %w", service, err)
		}
	default:
		return nil, fmt.Errorf("loading token for %q: %w", service, err)
	}

	return &token, nil
}

// DeleteToken removes the token row for a service. Deleting a missing
// row is not an error.
func (s *gormStore) DeleteToken(ctx context.Context, service string) error {
	if err := s.db.WithContext(ctx).
		Where("service = ?", service).
		Delete(&AuthToken{}).Error; err != nil {
		return fmt.Errorf("deleting token for %q: %w", service, err)
	}

	return nil
}

// --- Settings ---

func (s *gormStore) GetRepositorySettings(
	ctx context.Context,
) (*RepositorySettings, error) {
	settings := RepositorySettings{
		UserID:        DefaultUserID,
		HiddenRepos:   "[]",
		FeaturedRepos: "[]",
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", DefaultUserID).
		FirstOrCreate(&settings).Error; err != nil {
		return nil, fmt.Errorf("getting repository settings: %w", err)
	}

	return &settings, nil
}

func (s *gormStore) UpdateRepositorySettings(
	ctx context.Context,
	hidden, featured *[]string,
) (*RepositorySettings, error) {
	settings, err := s.GetRepositorySettings(ctx)
	if err != nil {
		return nil, err
	}

	if hidden != nil {
		settings.SetHidden(*hidden)
	}

	if featured != nil {
		settings.SetFeatured(*featured)
	}

	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, fmt.Errorf("updating repository settings: %w", err)
	}

	return settings, nil
}

func (s *gormStore) GetActivitySettings(
	ctx context.Context,
) (*ActivitySettings, error) {
	settings := ActivitySettings{
		UserID:      DefaultUserID,
		ShowDiscord: true,
		ShowSpotify: true,
		ShowCoding:  true,
		ShowGaming:  true,
		ShowGeneral: true,
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", DefaultUserID).
		FirstOrCreate(&settings).Error; err != nil {
		return nil, fmt.Errorf("getting activity settings: %w", err)
	}

	return &settings, nil
}

func (s *gormStore) UpdateActivitySettings(
	ctx context.Context,
	toggles ActivityToggles,
) (*ActivitySettings, error) {
	settings, err := s.GetActivitySettings(ctx)
	if err != nil {
		return nil, err
	}

	if toggles.ShowDiscord != nil {
		settings.ShowDiscord = *toggles.ShowDiscord
	}

	if toggles.ShowSpotify != nil {
		settings.ShowSpotify = *toggles.ShowSpotify
	}

	if toggles.ShowCoding != nil {
		settings.ShowCoding = *toggles.ShowCoding
	}

	if toggles.ShowGaming != nil {
		settings.ShowGaming = *toggles.ShowGaming
	}

	if toggles.ShowGeneral != nil {
		settings.ShowGeneral = *toggles.ShowGeneral
	}

	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, fmt.Errorf("updating activity settings: %w", err)
	}

	return settings, nil
}
