package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/d0mkaaa/portfolio-api/pkg/store"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestStore_MessageLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := &store.Message{
		Name:      "Alice",
		Email:     "alice@example.com",
		Subject:   "Hello",
		Body:      "Nice site!",
		IPAddress: "203.0.113.10",
		UserAgent: "test-agent",
	}
	second := &store.Message{
		Name:    "Bob",
		Email:   "bob@example.com",
		Subject: "Work",
		Body:    "Let's collaborate.",
	}

	require.NoError(t, s.CreateMessage(ctx, first))
	require.NoError(t, s.CreateMessage(ctx, second))
	require.NotZero(t, first.ID)
	require.NotZero(t, second.ID)

	messages, err := s.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	unread, err := s.CountUnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, s.MarkMessageRead(ctx, first.ID))

	unread, err = s.CountUnreadMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	// Marking an already-read message succeeds.
	require.NoError(t, s.MarkMessageRead(ctx, first.ID))

	require.NoError(t, s.DeleteMessage(ctx, first.ID))

	messages, err = s.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Bob", messages[0].Name)
}

func TestStore_MessageNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.MarkMessageRead(ctx, 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.DeleteMessage(ctx, 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListMessagesNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, s.CreateMessage(ctx, &store.Message{
			Name:    name,
			Email:   name + "@example.com",
			Subject: "s",
			Body:    "b",
		}))
	}

	messages, err := s.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	for i := 1; i < len(messages); i++ {
		assert.GreaterOrEqual(t,
			messages[i-1].CreatedAt.UnixNano(),
			messages[i].CreatedAt.UnixNano(),
		)
	}
}

func TestStore_TokenSaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetToken(ctx, "spotify")
	assert.ErrorIs(t, err, store.ErrNotFound)

	expiresIn := 3600

	saved, err := s.SaveToken(ctx, "spotify", "access-1", "refresh-1", &expiresIn)
	require.NoError(t, err)
	assert.Equal(t, "access-1", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
	require.NotNil(t, saved.ExpiresAt)
	assert.WithinDuration(t,
		time.Now().UTC().Add(time.Hour), *saved.ExpiresAt, time.Minute)

	got, err := s.GetToken(ctx, "spotify")
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
}

func TestStore_TokenRefreshPreserved(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	expiresIn := 3600

	_, err := s.SaveToken(ctx, "spotify", "access-1", "refresh-1", &expiresIn)
	require.NoError(t, err)

	// A refresh grant without a rotated refresh token keeps the old one.
	saved, err := s.SaveToken(ctx, "spotify", "access-2", "", &expiresIn)
	require.NoError(t, err)
	assert.Equal(t, "access-2", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)

	// A rotated refresh token replaces it.
	saved, err = s.SaveToken(ctx, "spotify", "access-3", "refresh-2", &expiresIn)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", saved.RefreshToken)
}

func TestStore_TokenNoExpiry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveToken(ctx, "discord", "access", "refresh", nil)
	require.NoError(t, err)
	assert.Nil(t, saved.ExpiresAt)
}

func TestStore_TokenDeleteIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	expiresIn := 60

	_, err := s.SaveToken(ctx, "spotify", "access", "refresh", &expiresIn)
	require.NoError(t, err)

	require.NoError(t, s.DeleteToken(ctx, "spotify"))

	_, err = s.GetToken(ctx, "spotify")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, s.DeleteToken(ctx, "spotify"))
}

func TestStore_RepositorySettings(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	settings, err := s.GetRepositorySettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings.Hidden())
	assert.Empty(t, settings.Featured())

	hidden := []string{"secret-repo", "old-repo"}

	settings, err = s.UpdateRepositorySettings(ctx, &hidden, nil)
	require.NoError(t, err)
	assert.Equal(t, hidden, settings.Hidden())
	assert.Empty(t, settings.Featured())

	featured := []string{"portfolio"}

	settings, err = s.UpdateRepositorySettings(ctx, nil, &featured)
	require.NoError(t, err)

	// Partial update leaves the other list untouched.
	assert.Equal(t, hidden, settings.Hidden())
	assert.Equal(t, featured, settings.Featured())

	empty := []string{}

	settings, err = s.UpdateRepositorySettings(ctx, &empty, nil)
	require.NoError(t, err)
	assert.Empty(t, settings.Hidden())
	assert.Equal(t, featured, settings.Featured())
}

func TestStore_ActivitySettings(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	settings, err := s.GetActivitySettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.ShowDiscord)
	assert.True(t, settings.ShowSpotify)
	assert.True(t, settings.ShowCoding)
	assert.True(t, settings.ShowGaming)
	assert.True(t, settings.ShowGeneral)

	off := false

	settings, err = s.UpdateActivitySettings(ctx, store.ActivityToggles{
		ShowGaming: &off,
	})
	require.NoError(t, err)
	assert.False(t, settings.ShowGaming)
	assert.True(t, settings.ShowDiscord)
	assert.True(t, settings.ShowCoding)

	// The change sticks across reads.
	settings, err = s.GetActivitySettings(ctx)
	require.NoError(t, err)
	assert.False(t, settings.ShowGaming)
}
