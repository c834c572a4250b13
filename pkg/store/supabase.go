package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/sirupsen/logrus"
)

const supabaseHTTPTimeout = 10 * time.Second

// supabaseStore implements Store against a hosted
// backend-as-a-service exposing the tables over PostgREST. The schema
// (messages, auth_tokens, repository_settings, activity_settings) is
// managed on the hosted side; Start only verifies reachability and
// seeds the singleton rows.
type supabaseStore struct {
	log     logrus.FieldLogger
	baseURL string
	key     string
	client  *http.Client

	mu      sync.Mutex
	started bool
}

func newSupabaseStore(
	log logrus.FieldLogger,
	cfg *config.SupabaseConfig,
) *supabaseStore {
	return &supabaseStore{
		log:     log.WithField("component", "store"),
		baseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		key:     cfg.ServiceRoleKey,
		client:  &http.Client{Timeout: supabaseHTTPTimeout},
	}
}

// Start verifies the endpoint is reachable and seeds the singleton
// settings rows. Idempotent and safe under concurrent first use.
func (s *supabaseStore) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	var probe []RepositorySettings
	if err := s.get(ctx, "repository_settings?select=id&limit=1", &probe); err != nil {
		return fmt.Errorf("probing supabase endpoint: %w", err)
	}

	if err := s.seedSettings(ctx); err != nil {
		return fmt.Errorf("seeding settings: %w", err)
	}

	s.started = true

	s.log.WithField("driver", "supabase").Info("Database connected")

	return nil
}

// Stop releases pooled connections. The hosted backend has no
// connection to close.
func (s *supabaseStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client.CloseIdleConnections()
	s.started = false

	return nil
}

func (s *supabaseStore) seedSettings(ctx context.Context) error {
	repo := map[string]any{
		"user_id":        DefaultUserID,
		"hidden_repos":   "[]",
		"featured_repos": "[]",
	}

	if err := s.upsert(
		ctx, "repository_settings?on_conflict=user_id", repo, nil, true,
	); err != nil {
		return fmt.Errorf("seeding repository settings: %w", err)
	}

	activity := map[string]any{"user_id": DefaultUserID}

	if err := s.upsert(
		ctx, "activity_settings?on_conflict=user_id", activity, nil, true,
	); err != nil {
		return fmt.Errorf("seeding activity settings: %w", err)
	}

	return nil
}

// --- HTTP plumbing ---

func (s *supabaseStore) newRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(
		ctx, method, s.baseURL+"/"+path, body,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (s *supabaseStore) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling supabase: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf(
			"supabase returned status %d: %s", resp.StatusCode, string(body),
		)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding supabase response: %w", err)
	}

	return nil
}

func (s *supabaseStore) get(ctx context.Context, path string, out any) error {
	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	return s.do(req, out)
}

// upsert POSTs a row with PostgREST merge-duplicates resolution. With
// ignoreDuplicates, an existing row is left untouched (used for
// seeding).
func (s *supabaseStore) upsert(
	ctx context.Context,
	path string,
	row, out any,
	ignoreDuplicates bool,
) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}

	req, err := s.newRequest(
		ctx, http.MethodPost, path, bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}

	resolution := "merge-duplicates"
	if ignoreDuplicates {
		resolution = "ignore-duplicates"
	}

	prefer := "resolution=" + resolution
	if out != nil {
		prefer += ",return=representation"
	}

	req.Header.Set("Prefer", prefer)

	return s.do(req, out)
}

// --- Contact messages ---

func (s *supabaseStore) CreateMessage(ctx context.Context, msg *Message) error {
	row := map[string]any{
		"name":       msg.Name,
		"email":      msg.Email,
		"subject":    msg.Subject,
		"message":    msg.Body,
		"ip_address": msg.IPAddress,
		"user_agent": msg.UserAgent,
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	req, err := s.newRequest(
		ctx, http.MethodPost, "messages", bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Prefer", "return=representation")

	var created []Message
	if err := s.do(req, &created); err != nil {
		return fmt.Errorf("creating message: %w", err)
	}

	if len(created) == 1 {
		*msg = created[0]
	}

	return nil
}

func (s *supabaseStore) ListMessages(ctx context.Context) ([]Message, error) {
	var messages []Message
	if err := s.get(
		ctx, "messages?select=*&order=created_at.desc", &messages,
	); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	return messages, nil
}

func (s *supabaseStore) MarkMessageRead(ctx context.Context, id uint) error {
	payload := []byte(`{"read":true}`)

	req, err := s.newRequest(
		ctx, http.MethodPatch,
		fmt.Sprintf("messages?id=eq.%d", id),
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Prefer", "return=representation")

	var updated []Message
	if err := s.do(req, &updated); err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}

	if len(updated) == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *supabaseStore) DeleteMessage(ctx context.Context, id uint) error {
	req, err := s.newRequest(
		ctx, http.MethodDelete,
		fmt.Sprintf("messages?id=eq.%d", id), nil,
	)
	if err != nil {
		return err
	}

	req.Header.Set("Prefer", "return=representation")

	var deleted []Message
	if err := s.do(req, &deleted); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	if len(deleted) == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *supabaseStore) CountUnreadMessages(ctx context.Context) (int64, error) {
	var unread []struct {
		ID uint `json:"id"`
	}

	if err := s.get(
		ctx, "messages?select=id&read=eq.false", &unread,
	); err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}

	return int64(len(unread)), nil
}

// --- OAuth tokens ---

// tokenRow mirrors AuthToken with the secret columns decodable. The
// model hides them from JSON responses, PostgREST needs them on the
// wire.
type tokenRow struct {
	ID           uint       `json:"id"`
	Service      string     `json:"service"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (r *tokenRow) toAuthToken() *AuthToken {
	return &AuthToken{
		ID:           r.ID,
		Service:      r.Service,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *supabaseStore) GetToken(
	ctx context.Context, service string,
) (*AuthToken, error) {
	var tokens []tokenRow
	if err := s.get(
		ctx, "auth_tokens?select=*&service=eq."+url.QueryEscape(service),
		&tokens,
	); err != nil {
		return nil, fmt.Errorf("getting token for %q: %w", service, err)
	}

	if len(tokens) == 0 {
		return nil, ErrNotFound
	}

	return tokens[0].toAuthToken(), nil
}

func (s *supabaseStore) SaveToken(
	ctx context.Context,
	service, accessToken, refreshToken string,
	expiresIn *int,
) (*AuthToken, error) {
	if refreshToken == "" {
		// Preserve the stored refresh token when the provider did not
		// rotate it.
		if existing, err := s.GetToken(ctx, service); err == nil {
			refreshToken = existing.RefreshToken
		}
	}

	row := map[string]any{
		"service":       service,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	}

	if expiresIn != nil {
		row["expires_at"] = time.Now().UTC().
			Add(time.Duration(*expiresIn) * time.Second).
			Format(time.RFC3339)
	} else {
		row["expires_at"] = nil
	}

	var saved []tokenRow
	if err := s.upsert(
		ctx, "auth_tokens?on_conflict=service", row, &saved, false,
	); err != nil {
		return nil, fmt.Errorf("saving token for %q: %w", service, err)
	}

	if len(saved) == 0 {
		return nil, fmt.Errorf("saving token for %q: empty response", service)
	}

	return saved[0].toAuthToken(), nil
}

func (s *supabaseStore) DeleteToken(ctx context.Context, service string) error {
	req, err := s.newRequest(
		ctx, http.MethodDelete,
		"auth_tokens?service=eq."+url.QueryEscape(service), nil,
	)
	if err != nil {
		return err
	}

	if err := s.do(req, nil); err != nil {
		return fmt.Errorf("deleting token for %q: %w", service, err)
	}

	return nil
}

// --- Settings ---

// repoSettingsRow mirrors RepositorySettings with the encoded list
// columns decodable.
type repoSettingsRow struct {
	ID            uint      `json:"id"`
	UserID        string    `json:"user_id"`
	HiddenRepos   string    `json:"hidden_repos"`
	FeaturedRepos string    `json:"featured_repos"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r *repoSettingsRow) toSettings() *RepositorySettings {
	return &RepositorySettings{
		ID:            r.ID,
		UserID:        r.UserID,
		HiddenRepos:   r.HiddenRepos,
		FeaturedRepos: r.FeaturedRepos,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *supabaseStore) GetRepositorySettings(
	ctx context.Context,
) (*RepositorySettings, error) {
	var rows []repoSettingsRow
	if err := s.get(
		ctx, "repository_settings?select=*&user_id=eq."+DefaultUserID, &rows,
	); err != nil {
		return nil, fmt.Errorf("getting repository settings: %w", err)
	}

	if len(rows) == 0 {
		if err := s.seedSettings(ctx); err != nil {
			return nil, err
		}

		return &RepositorySettings{
			UserID:        DefaultUserID,
			HiddenRepos:   "[]",
			FeaturedRepos: "[]",
		}, nil
	}

	return rows[0].toSettings(), nil
}

func (s *supabaseStore) UpdateRepositorySettings(
	ctx context.Context,
	hidden, featured *[]string,
) (*RepositorySettings, error) {
	row := map[string]any{"user_id": DefaultUserID}

	if hidden != nil {
		row["hidden_repos"] = encodeRepoList(*hidden)
	}

	if featured != nil {
		row["featured_repos"] = encodeRepoList(*featured)
	}

	var saved []repoSettingsRow
	if err := s.upsert(
		ctx, "repository_settings?on_conflict=user_id", row, &saved, false,
	); err != nil {
		return nil, fmt.Errorf("updating repository settings: %w", err)
	}

	if len(saved) == 0 {
		return nil, fmt.Errorf("updating repository settings: empty response")
	}

	return saved[0].toSettings(), nil
}

func (s *supabaseStore) GetActivitySettings(
	ctx context.Context,
) (*ActivitySettings, error) {
	var rows []ActivitySettings
	if err := s.get(
		ctx, "activity_settings?select=*&user_id=eq."+DefaultUserID, &rows,
	); err != nil {
		return nil, fmt.Errorf("getting activity settings: %w", err)
	}

	if len(rows) == 0 {
		if err := s.seedSettings(ctx); err != nil {
			return nil, err
		}

		return &ActivitySettings{
			UserID:      DefaultUserID,
			ShowDiscord: true,
			ShowSpotify: true,
			ShowCoding:  true,
			ShowGaming:  true,
			ShowGeneral: true,
		}, nil
	}

	return &rows[0], nil
}

func (s *supabaseStore) UpdateActivitySettings(
	ctx context.Context,
	toggles ActivityToggles,
) (*ActivitySettings, error) {
	row := map[string]any{"user_id": DefaultUserID}

	if toggles.ShowDiscord != nil {
		row["show_discord"] = *toggles.ShowDiscord
	}

	if toggles.ShowSpotify != nil {
		row["show_spotify"] = *toggles.ShowSpotify
	}

	if toggles.ShowCoding != nil {
		row["show_coding"] = *toggles.ShowCoding
	}

	if toggles.ShowGaming != nil {
		row["show_gaming"] = *toggles.ShowGaming
	}

	if toggles.ShowGeneral != nil {
		row["show_general"] = *toggles.ShowGeneral
	}

	var saved []ActivitySettings
	if err := s.upsert(
		ctx, "activity_settings?on_conflict=user_id", row, &saved, false,
	); err != nil {
		return nil, fmt.Errorf("updating activity settings: %w", err)
	}

	if len(saved) == 0 {
		return nil, fmt.Errorf("updating activity settings: empty response")
	}

	return &saved[0], nil
}
