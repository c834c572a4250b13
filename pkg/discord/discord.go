// Package discord implements Discord OAuth identity checks and the
// presence relay integration.
package discord

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
	"github.com/sirupsen/logrus"
)

const (
	defaultAPIURL = "https://discord.com/api"

	httpTimeout = 10 * time.Second
)

var (
	// ErrInvalidToken is returned when Discord rejects the supplied
	// access token.
	ErrInvalidToken = errors.New("discord token invalid")

	// ErrWrongIdentity is returned when a valid token belongs to a
	// user other than the authorized one.
	ErrWrongIdentity = errors.New("discord user not authorized")
)

// Client talks to the Discord API and the public presence relay.
type Client struct {
	log      logrus.FieldLogger
	cfg      *config.DiscordConfig
	client   *http.Client
	apiURL   string
	relayURL string
}

// NewClient creates a Discord client from configuration.
func NewClient(log logrus.FieldLogger, cfg *config.DiscordConfig) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		log:      log.WithField("component", "discord"),
		cfg:      cfg,
		client:   &http.Client{Timeout: httpTimeout},
		apiURL:   strings.TrimRight(apiURL, "/"),
		relayURL: strings.TrimRight(cfg.RelayURL, "/"),
	}
}

// TokenResponse is the Discord OAuth token grant payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// User is the subset of the Discord user object the service needs.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
}

// ExchangeCode trades an authorization code for an access token.
// Discord wants the credentials in the form body rather than a Basic
// auth header.
func (c *Client) ExchangeCode(
	ctx context.Context, code, redirectURI string,
) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.apiURL+"/oauth2/token",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling discord oauth: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf(
			"discord token exchange returned status %d: %s",
			resp.StatusCode, string(body),
		)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	return &token, nil
}

// FetchUser resolves the user an access token belongs to.
func (c *Client) FetchUser(ctx context.Context, bearer string) (*User, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apiURL+"/users/@me", nil,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling discord api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}

	return &user, nil
}

// VerifyAdmin checks that a token is valid and belongs to the
// configured owner account.
func (c *Client) VerifyAdmin(ctx context.Context, bearer string) (*User, error) {
	user, err := c.FetchUser(ctx, bearer)
	if err != nil {
		return nil, err
	}

	if c.cfg.AuthorizedUserID == "" || user.ID != c.cfg.AuthorizedUserID {
		return nil, ErrWrongIdentity
	}

	return user, nil
}
