package discord_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/d0mkaaa/portfolio-api/pkg/discord"
)

const ownerID = "578600798842519563"

func newTestClient(t *testing.T, api, relay http.Handler) *discord.Client {
	t.Helper()

	cfg := &config.DiscordConfig{
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		AuthorizedUserID: ownerID,
	}

	if api != nil {
		apiSrv := httptest.NewServer(api)
		t.Cleanup(apiSrv.Close)
		cfg.APIURL = apiSrv.URL
	}

	if relay != nil {
		relaySrv := httptest.NewServer(relay)
		t.Cleanup(relaySrv.Close)
		cfg.RelayURL = relaySrv.URL
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return discord.NewClient(log, cfg)
}

func TestClient_ExchangeCode(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://example.com/cb", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
		})
	})

	client := newTestClient(t, api, nil)

	token, err := client.ExchangeCode(
		context.Background(), "the-code", "https://example.com/cb",
	)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
}

func TestClient_VerifyAdmin(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		userID  string
		wantErr error
	}{
		{
			name:   "owner token accepted",
			status: http.StatusOK,
			userID: ownerID,
		},
		{
			name:    "rejected token",
			status:  http.StatusUnauthorized,
			wantErr: discord.ErrInvalidToken,
		},
		{
			name:    "valid token wrong user",
			status:  http.StatusOK,
			userID:  "999999",
			wantErr: discord.ErrWrongIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/users/@me", r.URL.Path)
				assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

				if tt.status != http.StatusOK {
					w.WriteHeader(tt.status)

					return
				}

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":       tt.userID,
					"username": "d0mkaaa",
				})
			})

			client := newTestClient(t, api, nil)

			user, err := client.VerifyAdmin(context.Background(), "token")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, ownerID, user.ID)
		})
	}
}

func relayPayload(activities []map[string]any) map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"discord_status": "online",
			"activities":     activities,
			"kv":             map[string]any{},
		},
	}
}

func TestClient_PresenceSkipsSpotify(t *testing.T) {
	relay := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/"+ownerID, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(relayPayload([]map[string]any{
			{"name": "Spotify", "type": 2, "details": "Song"},
			{"name": "VALORANT", "type": 0, "details": "Competitive Match"},
		}))
	})

	client := newTestClient(t, nil, relay)

	presence, err := client.Presence(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "online", presence.Status)
	require.NotNil(t, presence.Activity)
	assert.Equal(t, "VALORANT", presence.Activity.Name)
	assert.Equal(t, "gaming", presence.Activity.Category)
	assert.Equal(t, "🎯 Competitive Match", presence.Activity.Details)
	assert.Equal(t, "Competitive Match", presence.Activity.OriginalDetails)
}

func TestClient_PresenceCategories(t *testing.T) {
	tests := []struct {
		name         string
		activity     map[string]any
		wantCategory string
		wantDetails  string
	}{
		{
			name: "editor with file name",
			activity: map[string]any{
				"name": "Visual Studio Code", "type": 0,
				"details": "Editing main.go",
			},
			wantCategory: "coding",
			wantDetails:  "🐹 Editing main.go",
		},
		{
			name: "editor without file name",
			activity: map[string]any{
				"name": "Visual Studio Code", "type": 0,
				"details": "Editing a file",
			},
			wantCategory: "coding",
			wantDetails:  "💻 Editing a file",
		},
		{
			name: "generic game",
			activity: map[string]any{
				"name": "Minecraft", "type": 0,
			},
			wantCategory: "gaming",
			wantDetails:  "🎮 Minecraft",
		},
		{
			name: "voice chat",
			activity: map[string]any{
				"name": "Discord", "type": 0,
				"details": "In a voice channel", "state": "General",
			},
			wantCategory: "communication",
			wantDetails:  "🎤 In voice: General",
		},
		{
			name: "unknown app",
			activity: map[string]any{
				"name": "Blender", "type": 0, "details": "Sculpting",
			},
			wantCategory: "unknown",
			wantDetails:  "Sculpting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(
					relayPayload([]map[string]any{tt.activity}),
				)
			})

			client := newTestClient(t, nil, relay)

			presence, err := client.Presence(context.Background())
			require.NoError(t, err)
			require.NotNil(t, presence.Activity)
			assert.Equal(t, tt.wantCategory, presence.Activity.Category)
			assert.Equal(t, tt.wantDetails, presence.Activity.Details)
		})
	}
}

func TestClient_PresenceNoActivity(t *testing.T) {
	relay := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(relayPayload(nil))
	})

	client := newTestClient(t, nil, relay)

	presence, err := client.Presence(context.Background())
	require.NoError(t, err)
	assert.Nil(t, presence.Activity)
}

func TestClient_PresenceRelayDown(t *testing.T) {
	relay := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := newTestClient(t, nil, relay)

	_, err := client.Presence(context.Background())
	require.Error(t, err)
}

func TestFallbackPresence(t *testing.T) {
	for i := 0; i < 20; i++ {
		p := discord.FallbackPresence()

		assert.Equal(t, "online", p.Status)
		assert.Equal(t, "mock", p.Source)

		if p.Activity != nil {
			assert.NotEmpty(t, p.Activity.Category)
		}
	}
}
