// Package spotify implements the Spotify Web API integration: OAuth
// code exchange, token refresh and the currently-playing track.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/d0mkaaa/portfolio-api/pkg/store"
	"github.com/sirupsen/logrus"
)

const (
	// ServiceName is the token store key for Spotify credentials.
	ServiceName = "spotify"

	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com"

	httpTimeout = 10 * time.Second
)

var (
	// ErrNotConnected is returned when no Spotify token has been
	// saved yet.
	ErrNotConnected = errors.New("spotify account not connected")

	// ErrUnauthorized is returned when the access token is rejected
	// and cannot be refreshed.
	ErrUnauthorized = errors.New("spotify token unauthorized")
)

// TokenStore is the slice of the message store the client needs for
// token persistence.
type TokenStore interface {
	GetToken(ctx context.Context, service string) (*store.AuthToken, error)
	SaveToken(ctx context.Context, service, accessToken, refreshToken string, expiresIn *int) (*store.AuthToken, error)
	DeleteToken(ctx context.Context, service string) error
}

// Client talks to the Spotify accounts service and Web API.
type Client struct {
	log         logrus.FieldLogger
	cfg         *config.SpotifyConfig
	tokens      TokenStore
	client      *http.Client
	accountsURL string
	apiURL      string
}

// NewClient creates a Spotify client backed by the given token store.
func NewClient(
	log logrus.FieldLogger,
	cfg *config.SpotifyConfig,
	tokens TokenStore,
) *Client {
	accountsURL := cfg.AccountsURL
	if accountsURL == "" {
		accountsURL = defaultAccountsURL
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		log:         log.WithField("component", "spotify"),
		cfg:         cfg,
		tokens:      tokens,
		client:      &http.Client{Timeout: httpTimeout},
		accountsURL: strings.TrimRight(accountsURL, "/"),
		apiURL:      strings.TrimRight(apiURL, "/"),
	}
}

// TokenResponse is the accounts service token grant payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// ExchangeCode trades an authorization code for an access and refresh
// token pair.
func (c *Client) ExchangeCode(
	ctx context.Context, code string,
) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURI},
	}

	return c.tokenRequest(ctx, form)
}

// Refresh obtains a new access token from a refresh token. Spotify
// only rotates the refresh token occasionally, so the response may
// omit it.
func (c *Client) Refresh(
	ctx context.Context, refreshToken string,
) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(
	ctx context.Context, form url.Values,
) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.accountsURL+"/api/token",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling spotify accounts service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf(
			"spotify token grant returned status %d: %s",
			resp.StatusCode, string(body),
		)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	return &token, nil
}

// SaveTokens persists a token grant in the store, keeping the previous
// refresh token when the grant did not include one.
func (c *Client) SaveTokens(
	ctx context.Context, token *TokenResponse,
) (*store.AuthToken, error) {
	expiresIn := token.ExpiresIn

	saved, err := c.tokens.SaveToken(
		ctx, ServiceName, token.AccessToken, token.RefreshToken, &expiresIn,
	)
	if err != nil {
		return nil, fmt.Errorf("saving spotify token: %w", err)
	}

	return saved, nil
}

// Disconnect removes the stored Spotify credentials.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.tokens.DeleteToken(ctx, ServiceName); err != nil {
		return fmt.Errorf("deleting spotify token: %w", err)
	}

	return nil
}

// Connected reports whether a Spotify token is stored.
func (c *Client) Connected(ctx context.Context) bool {
	_, err := c.tokens.GetToken(ctx, ServiceName)

	return err == nil
}

// AlbumArt carries the album cover in the three sizes Spotify serves.
type AlbumArt struct {
	Large  string `json:"large,omitempty"`
	Medium string `json:"medium,omitempty"`
	Small  string `json:"small,omitempty"`
}

// Artist is one credited artist on the playing track.
type Artist struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Album names the track's album and links to it.
type Album struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Track is the normalized currently-playing payload.
type Track struct {
	IsPlaying   bool     `json:"isPlaying"`
	Title       string   `json:"title,omitempty"`
	Artists     []Artist `json:"artists,omitempty"`
	Album       Album    `json:"album"`
	AlbumArt    AlbumArt `json:"albumArt"`
	ProgressMs  int      `json:"progressMs,omitempty"`
	DurationMs  int      `json:"durationMs,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
	PreviewURL  string   `json:"previewUrl,omitempty"`
	Explicit    bool     `json:"explicit,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
	FetchedAt   int64    `json:"fetchedAt"`
}

type apiImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type currentlyPlaying struct {
	IsPlaying  bool `json:"is_playing"`
	ProgressMs int  `json:"progress_ms"`
	Item       *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name         string `json:"name"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"artists"`
		Album struct {
			Name         string     `json:"name"`
			Images       []apiImage `json:"images"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"album"`
		DurationMs   int `json:"duration_ms"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
		PreviewURL string `json:"preview_url"`
		Explicit   bool   `json:"explicit"`
		Popularity int    `json:"popularity"`
	} `json:"item"`
}

// CurrentTrack fetches the currently playing track. With a caller
// supplied bearer token it is used as-is. Otherwise the stored token
// is used and refreshed at most once when Spotify rejects it.
func (c *Client) CurrentTrack(
	ctx context.Context, bearer string,
) (*Track, error) {
	if bearer != "" {
		track, status, err := c.fetchNowPlaying(ctx, bearer)
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}

		return track, nil
	}

	stored, err := c.tokens.GetToken(ctx, ServiceName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotConnected
		}

		return nil, fmt.Errorf("loading spotify token: %w", err)
	}

	track, status, err := c.fetchNowPlaying(ctx, stored.AccessToken)
	if err != nil {
		return nil, err
	}

	if status != http.StatusUnauthorized {
		return track, nil
	}

	if stored.RefreshToken == "" {
		return nil, ErrUnauthorized
	}

	c.log.Debug("Access token rejected, refreshing")

	refreshed, err := c.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if _, err := c.SaveTokens(ctx, refreshed); err != nil {
		c.log.WithError(err).Warn("Failed to persist refreshed token")
	}

	track, status, err = c.fetchNowPlaying(ctx, refreshed.AccessToken)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	return track, nil
}

// fetchNowPlaying calls the Web API once. A 401 is reported through
// the status return so the caller can decide whether to refresh.
func (c *Client) fetchNowPlaying(
	ctx context.Context, accessToken string,
) (*Track, int, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.apiURL+"/v1/me/player/currently-playing",
		nil,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calling spotify api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return notPlaying(), resp.StatusCode, nil
	case http.StatusUnauthorized:
		return nil, resp.StatusCode, nil
	case http.StatusOK:
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, resp.StatusCode, fmt.Errorf(
			"spotify api returned status %d: %s",
			resp.StatusCode, string(body),
		)
	}

	var playing currentlyPlaying
	if err := json.NewDecoder(resp.Body).Decode(&playing); err != nil {
		return nil, resp.StatusCode, fmt.Errorf(
			"decoding currently-playing response: %w", err,
		)
	}

	if playing.Item == nil || !playing.IsPlaying {
		return notPlaying(), resp.StatusCode, nil
	}

	item := playing.Item

	artists := make([]Artist, 0, len(item.Artists))
	for _, a := range item.Artists {
		artists = append(artists, Artist{
			Name: a.Name,
			URL:  a.ExternalURLs.Spotify,
		})
	}

	return &Track{
		IsPlaying:   true,
		Title:       item.Name,
		Artists:     artists,
		Album:       Album{Name: item.Album.Name, URL: item.Album.ExternalURLs.Spotify},
		AlbumArt:    normalizeImages(item.Album.Images),
		ProgressMs:  playing.ProgressMs,
		DurationMs:  item.DurationMs,
		ExternalURL: item.ExternalURLs.Spotify,
		PreviewURL:  item.PreviewURL,
		Explicit:    item.Explicit,
		Popularity:  item.Popularity,
		FetchedAt:   time.Now().UnixMilli(),
	}, resp.StatusCode, nil
}

func notPlaying() *Track {
	return &Track{IsPlaying: false, FetchedAt: time.Now().UnixMilli()}
}

// normalizeImages maps the image list to the three standard cover
// sizes by height, falling back to list position when heights are
// missing.
func normalizeImages(images []apiImage) AlbumArt {
	var art AlbumArt

	for _, img := range images {
		switch img.Height {
		case 640:
			art.Large = img.URL
		case 300:
			art.Medium = img.URL
		case 64:
			art.Small = img.URL
		}
	}

	if art.Large == "" && len(images) > 0 {
		art.Large = images[0].URL
	}

	if art.Medium == "" && len(images) > 1 {
		art.Medium = images[1].URL
	}

	if art.Small == "" && len(images) > 2 {
		art.Small = images[2].URL
	}

	return art
}
