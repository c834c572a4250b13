// Package github aggregates public GitHub data for the portfolio:
// the repository list and a small activity stats summary.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/d0mkaaa/portfolio-api/pkg/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAPIURL = "https://api.github.com"

	userAgent = "portfolio-api"

	httpTimeout = 10 * time.Second
)

// Client talks to the public GitHub REST API. Requests are
// unauthenticated, the data served is all public.
type Client struct {
	log    logrus.FieldLogger
	client *http.Client
	apiURL string

	username string
}

// NewClient creates a GitHub client for the configured account.
func NewClient(log logrus.FieldLogger, cfg *config.GitHubConfig) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		log:      log.WithField("component", "github"),
		client:   &http.Client{Timeout: httpTimeout},
		apiURL:   strings.TrimRight(apiURL, "/"),
		username: cfg.Username,
	}
}

// Repo is the repository shape served to clients.
type Repo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Homepage    string    `json:"homepage"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Watchers    int       `json:"watchers_count"`
	Language    string    `json:"language"`
	Topics      []string  `json:"topics"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	Private     bool      `json:"private"`
	Fork        bool      `json:"fork"`
	Featured    bool      `json:"featured,omitempty"`
}

type user struct {
	Followers int `json:"followers"`
}

type event struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Payload   struct {
		Commits []struct {
			SHA string `json:"sha"`
		} `json:"commits"`
	} `json:"payload"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
}

// Stats is the aggregated activity summary.
type Stats struct {
	TodaysCommits  int             `json:"todaysCommits"`
	ActiveRepos    int             `json:"activeRepos"`
	TotalStars     int             `json:"totalStars"`
	Followers      int             `json:"followers"`
	RecentActivity json.RawMessage `json:"recentActivity"`
}

func (c *Client) fetch(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apiURL+path, nil,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling github api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf(
			"github api returned status %d for %s: %s",
			resp.StatusCode, path, string(body),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding github response: %w", err)
	}

	return nil
}

// ListRepos returns the account's public non-fork repositories sorted
// by a score favouring stars and recent pushes.
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	var repos []Repo
	if err := c.fetch(
		ctx, "/users/"+c.username+"/repos", &repos,
	); err != nil {
		return nil, err
	}

	filtered := make([]Repo, 0, len(repos))

	for _, repo := range repos {
		if repo.Fork || repo.Private {
			continue
		}

		filtered = append(filtered, repo)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return repoScore(&filtered[i]) > repoScore(&filtered[j])
	})

	return filtered, nil
}

// repoScore ranks a repository. Stars dominate, push recency breaks
// ties.
func repoScore(r *Repo) float64 {
	return float64(r.Stars)*2 + float64(r.PushedAt.UnixMilli())/1e9
}

// Stats fetches the profile, repositories and public events
// concurrently and folds them into the activity summary. Today is
// evaluated in UTC.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var (
		profile user
		repos   []Repo
		events  []event
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.fetch(gctx, "/users/"+c.username, &profile)
	})

	g.Go(func() error {
		return c.fetch(gctx, "/users/"+c.username+"/repos", &repos)
	})

	g.Go(func() error {
		return c.fetch(gctx, "/users/"+c.username+"/events/public", &events)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching github activity: %w", err)
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)

	todaysCommits := 0

	for _, ev := range events {
		if ev.Type != "PushEvent" {
			continue
		}

		if !ev.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
			continue
		}

		todaysCommits += len(ev.Payload.Commits)
	}

	thirtyDaysAgo := now.Add(-30 * 24 * time.Hour)

	activeRepos := 0
	totalStars := 0

	for _, repo := range repos {
		if repo.Fork {
			continue
		}

		if repo.UpdatedAt.After(thirtyDaysAgo) {
			activeRepos++
		}

		totalStars += repo.Stars
	}

	recent := events
	if len(recent) > 5 {
		recent = recent[:5]
	}

	recentJSON, err := json.Marshal(recent)
	if err != nil {
		return nil, fmt.Errorf("encoding recent activity: %w", err)
	}

	return &Stats{
		TodaysCommits:  todaysCommits,
		ActiveRepos:    activeRepos,
		TotalStars:     totalStars,
		Followers:      profile.Followers,
		RecentActivity: recentJSON,
	}, nil
}
