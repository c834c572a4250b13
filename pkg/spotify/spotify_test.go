package spotify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/d0mkaaa/portfolio-api/pkg/spotify"
	"github.com/d0mkaaa/portfolio-api/pkg/store"
)

// memoryTokens is an in-memory TokenStore.
type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]*store.AuthToken
	saves  int
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{tokens: map[string]*store.AuthToken{}}
}

func (m *memoryTokens) GetToken(
	_ context.Context, service string,
) (*store.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[service]
	if !ok {
		return nil, store.ErrNotFound
	}

	copied := *token

	return &copied, nil
}

func (m *memoryTokens) SaveToken(
	_ context.Context,
	service, accessToken, refreshToken string,
	_ *int,
) (*store.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if refreshToken == "" {
		if existing, ok := m.tokens[service]; ok {
			refreshToken = existing.RefreshToken
		}
	}

	m.tokens[service] = &store.AuthToken{
		Service:      service,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	m.saves++

	return m.tokens[service], nil
}

func (m *memoryTokens) DeleteToken(_ context.Context, service string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, service)

	return nil
}

func newTestClient(
	t *testing.T,
	accounts, api http.Handler,
	tokens spotify.TokenStore,
) *spotify.Client {
	t.Helper()

	accountsSrv := httptest.NewServer(accounts)
	t.Cleanup(accountsSrv.Close)

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := &config.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://example.com/dashboard",
		AccountsURL:  accountsSrv.URL,
		APIURL:       apiSrv.URL,
	}

	return spotify.NewClient(log, cfg, tokens)
}

func nowPlayingPayload() map[string]any {
	return map[string]any{
		"is_playing":  true,
		"progress_ms": 42000,
		"item": map[string]any{
			"name": "Song A",
			"artists": []map[string]any{
				{
					"name": "Artist One",
					"external_urls": map[string]any{
						"spotify": "https://open.spotify.com/artist/one",
					},
				},
				{
					"name": "Artist Two",
					"external_urls": map[string]any{
						"spotify": "https://open.spotify.com/artist/two",
					},
				},
			},
			"album": map[string]any{
				"name": "Album X",
				"external_urls": map[string]any{
					"spotify": "https://open.spotify.com/album/x",
				},
				"images": []map[string]any{
					{"url": "https://img/640", "height": 640, "width": 640},
					{"url": "https://img/300", "height": 300, "width": 300},
					{"url": "https://img/64", "height": 64, "width": 64},
				},
			},
			"duration_ms": 180000,
			"external_urls": map[string]any{
				"spotify": "https://open.spotify.com/track/abc",
			},
			"preview_url": "https://preview/abc",
			"explicit":    true,
			"popularity":  77,
		},
	}
}

func TestClient_ExchangeCode(t *testing.T) {
	accounts := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://example.com/dashboard",
			r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-1",
		})
	})

	client := newTestClient(t, accounts, http.NotFoundHandler(), newMemoryTokens())

	token, err := client.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
	assert.Equal(t, 3600, token.ExpiresIn)
}

func TestClient_ExchangeCodeRejected(t *testing.T) {
	accounts := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	client := newTestClient(t, accounts, http.NotFoundHandler(), newMemoryTokens())

	_, err := client.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestClient_CurrentTrackNotConnected(t *testing.T) {
	client := newTestClient(
		t, http.NotFoundHandler(), http.NotFoundHandler(), newMemoryTokens(),
	)

	_, err := client.CurrentTrack(context.Background(), "")
	assert.ErrorIs(t, err, spotify.ErrNotConnected)
}

func TestClient_CurrentTrackNothingPlaying(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tokens := newMemoryTokens()
	expiresIn := 3600
	_, err := tokens.SaveToken(
		context.Background(), spotify.ServiceName, "access", "refresh", &expiresIn,
	)
	require.NoError(t, err)

	client := newTestClient(t, http.NotFoundHandler(), api, tokens)

	track, err := client.CurrentTrack(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, track.IsPlaying)
	assert.NotZero(t, track.FetchedAt)
}

func TestClient_CurrentTrackNormalized(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/me/player/currently-playing", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(nowPlayingPayload())
	})

	tokens := newMemoryTokens()
	expiresIn := 3600
	_, err := tokens.SaveToken(
		context.Background(), spotify.ServiceName, "access", "refresh", &expiresIn,
	)
	require.NoError(t, err)

	client := newTestClient(t, http.NotFoundHandler(), api, tokens)

	track, err := client.CurrentTrack(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, track.IsPlaying)
	assert.Equal(t, "Song A", track.Title)
	require.Len(t, track.Artists, 2)
	assert.Equal(t, spotify.Artist{
		Name: "Artist One",
		URL:  "https://open.spotify.com/artist/one",
	}, track.Artists[0])
	assert.Equal(t, spotify.Artist{
		Name: "Artist Two",
		URL:  "https://open.spotify.com/artist/two",
	}, track.Artists[1])
	assert.Equal(t, spotify.Album{
		Name: "Album X",
		URL:  "https://open.spotify.com/album/x",
	}, track.Album)
	assert.Equal(t, "https://img/640", track.AlbumArt.Large)
	assert.Equal(t, "https://img/300", track.AlbumArt.Medium)
	assert.Equal(t, "https://img/64", track.AlbumArt.Small)
	assert.Equal(t, 42000, track.ProgressMs)
	assert.Equal(t, 180000, track.DurationMs)
	assert.Equal(t, "https://open.spotify.com/track/abc", track.ExternalURL)
	assert.True(t, track.Explicit)
	assert.Equal(t, 77, track.Popularity)
}

func TestClient_CurrentTrackImageFallback(t *testing.T) {
	payload := nowPlayingPayload()
	item := payload["item"].(map[string]any)
	item["album"].(map[string]any)["images"] = []map[string]any{
		{"url": "https://img/a", "height": 0, "width": 0},
		{"url": "https://img/b", "height": 0, "width": 0},
		{"url": "https://img/c", "height": 0, "width": 0},
	}

	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})

	client := newTestClient(t, http.NotFoundHandler(), api, newMemoryTokens())

	track, err := client.CurrentTrack(context.Background(), "caller-token")
	require.NoError(t, err)

	// Unknown heights fall back to list position.
	assert.Equal(t, "https://img/a", track.AlbumArt.Large)
	assert.Equal(t, "https://img/b", track.AlbumArt.Medium)
	assert.Equal(t, "https://img/c", track.AlbumArt.Small)
}

func TestClient_CurrentTrackRefreshesOnce(t *testing.T) {
	refreshes := 0

	accounts := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))

		refreshes++

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-fresh",
			"expires_in":   3600,
		})
	})

	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-fresh" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(nowPlayingPayload())
	})

	tokens := newMemoryTokens()
	expiresIn := 3600
	_, err := tokens.SaveToken(
		context.Background(), spotify.ServiceName,
		"access-stale", "refresh-1", &expiresIn,
	)
	require.NoError(t, err)

	client := newTestClient(t, accounts, api, tokens)

	track, err := client.CurrentTrack(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, track.IsPlaying)
	assert.Equal(t, 1, refreshes)

	// The refreshed token was persisted with the old refresh token.
	saved, err := tokens.GetToken(context.Background(), spotify.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, "access-fresh", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken)
}

func TestClient_CurrentTrackRefreshFails(t *testing.T) {
	accounts := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	tokens := newMemoryTokens()
	expiresIn := 3600
	_, err := tokens.SaveToken(
		context.Background(), spotify.ServiceName,
		"access-stale", "refresh-1", &expiresIn,
	)
	require.NoError(t, err)

	client := newTestClient(t, accounts, api, tokens)

	_, err = client.CurrentTrack(context.Background(), "")
	assert.ErrorIs(t, err, spotify.ErrUnauthorized)
}

func TestClient_CurrentTrackCallerBearerNoRefresh(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(
		t, http.NotFoundHandler(), api, newMemoryTokens(),
	)

	// A caller-supplied token is never refreshed.
	_, err := client.CurrentTrack(context.Background(), "caller-token")
	assert.ErrorIs(t, err, spotify.ErrUnauthorized)
}

func TestClient_Disconnect(t *testing.T) {
	tokens := newMemoryTokens()
	expiresIn := 3600
	_, err := tokens.SaveToken(
		context.Background(), spotify.ServiceName, "access", "refresh", &expiresIn,
	)
	require.NoError(t, err)

	client := newTestClient(
		t, http.NotFoundHandler(), http.NotFoundHandler(), tokens,
	)

	require.True(t, client.Connected(context.Background()))
	require.NoError(t, client.Disconnect(context.Background()))
	assert.False(t, client.Connected(context.Background()))

	// Disconnecting again is fine.
	require.NoError(t, client.Disconnect(context.Background()))
}
