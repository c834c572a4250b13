package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Timestamps carries activity start and end times as epoch
// milliseconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets carries the rich presence artwork references.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity is the enhanced activity attached to a presence.
type Activity struct {
	Name            string      `json:"name"`
	Details         string      `json:"details"`
	OriginalDetails string      `json:"originalDetails,omitempty"`
	State           string      `json:"state,omitempty"`
	Type            int         `json:"type"`
	Category        string      `json:"category"`
	Timestamps      *Timestamps `json:"timestamps,omitempty"`
	Assets          *Assets     `json:"assets,omitempty"`
}

// Presence is the normalized presence payload served to clients.
type Presence struct {
	Status       string          `json:"status"`
	Activity     *Activity       `json:"activity"`
	CustomStatus json.RawMessage `json:"customStatus"`
	LastSeen     time.Time       `json:"lastSeen"`
	Source       string          `json:"source,omitempty"`
}

type relayActivity struct {
	Name       string      `json:"name"`
	Details    string      `json:"details"`
	State      string      `json:"state"`
	Type       int         `json:"type"`
	Timestamps *Timestamps `json:"timestamps"`
	Assets     *Assets     `json:"assets"`
}

type relayResponse struct {
	Success bool `json:"success"`
	Data    struct {
		DiscordStatus string          `json:"discord_status"`
		Activities    []relayActivity `json:"activities"`
		KV            json.RawMessage `json:"kv"`
	} `json:"data"`
}

// Presence fetches the owner's presence from the relay and enhances
// the first non-music activity. Callers are expected to fall back to
// FallbackPresence when this fails.
func (c *Client) Presence(ctx context.Context) (*Presence, error) {
	reqURL := fmt.Sprintf(
		"%s/v1/users/%s", c.relayURL, c.cfg.AuthorizedUserID,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating relay request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling presence relay: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"presence relay returned status %d", resp.StatusCode,
		)
	}

	var relay relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&relay); err != nil {
		return nil, fmt.Errorf("decoding relay response: %w", err)
	}

	if !relay.Success {
		return nil, fmt.Errorf("presence relay reported failure")
	}

	presence := &Presence{
		Status:       relay.Data.DiscordStatus,
		CustomStatus: relay.Data.KV,
		LastSeen:     time.Now().UTC(),
	}

	// Music playback is reported by the Spotify integration, skip it
	// here.
	for i := range relay.Data.Activities {
		act := &relay.Data.Activities[i]
		if act.Name == "Spotify" || act.Type == 2 {
			continue
		}

		presence.Activity = enhanceActivity(act)

		break
	}

	return presence, nil
}

var fileNameRe = regexp.MustCompile(`([^\s]+\.[a-zA-Z]+)`)

var codingApps = []string{
	"Visual Studio Code", "VS Code", "IntelliJ", "WebStorm",
	"Atom", "Sublime Text", "Vim", "Emacs", "Code",
}

var gamingApps = []string{
	"VALORANT", "League of Legends", "CS2", "Counter-Strike",
	"Dota 2", "Overwatch", "Apex Legends", "Fortnite",
	"Rocket League", "Minecraft", "Among Us",
}

func containsAny(name string, apps []string) bool {
	for _, app := range apps {
		if strings.Contains(name, app) {
			return true
		}
	}

	return false
}

// enhanceActivity categorizes an activity and decorates its details
// with a short indicator.
func enhanceActivity(act *relayActivity) *Activity {
	details := act.Details
	category := "unknown"

	switch {
	case containsAny(act.Name, codingApps):
		category = "coding"

		if m := fileNameRe.FindString(act.Details); m != "" {
			details = fileIcon(m) + " Editing " + m
		} else if strings.Contains(act.Details, "Editing") {
			details = "💻 " + act.Details
		}
	case act.Type == 0 && containsAny(act.Name, gamingApps):
		category = "gaming"

		switch {
		case strings.Contains(act.Name, "VALORANT"):
			details = "🎯 " + orDefault(act.Details, "Playing VALORANT")
		case strings.Contains(act.Name, "League"):
			details = "⚔️ " + orDefault(act.Details, "Playing League of Legends")
		default:
			details = "🎮 " + orDefault(act.Details, act.Name)
		}
	case strings.Contains(act.Name, "Discord"):
		category = "communication"

		if strings.Contains(strings.ToLower(act.Details), "voice") ||
			strings.Contains(strings.ToLower(act.State), "voice") {
			details = "🎤 In voice: " + orDefault(act.State, "General")
		}
	}

	return &Activity{
		Name:            act.Name,
		Details:         details,
		OriginalDetails: act.Details,
		State:           act.State,
		Type:            act.Type,
		Category:        category,
		Timestamps:      act.Timestamps,
		Assets:          act.Assets,
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}

// fileIcon picks an indicator for a file name by extension.
func fileIcon(fileName string) string {
	parts := strings.Split(fileName, ".")
	ext := strings.ToLower(parts[len(parts)-1])

	switch ext {
	case "ts", "tsx":
		return "🔷"
	case "js", "jsx":
		return "🟡"
	case "py":
		return "🐍"
	case "css", "scss":
		return "🎨"
	case "html":
		return "🌐"
	case "json":
		return "📋"
	case "md":
		return "📝"
	case "env":
		return "⚙️"
	case "yml", "yaml":
		return "📄"
	case "sql":
		return "🗃️"
	case "php":
		return "🐘"
	case "java":
		return "☕"
	case "cpp", "c":
		return "⚡"
	case "rs":
		return "🦀"
	case "go":
		return "🐹"
	default:
		return "📄"
	}
}

// FallbackPresence fabricates a plausible presence for when the relay
// is unreachable. The payload is marked so clients can tell it apart
// from live data.
func FallbackPresence() *Presence {
	mock := []*Activity{
		{
			Name:            "Visual Studio Code",
			Details:         "🔷 Editing route.ts",
			OriginalDetails: "Editing route.ts",
			State:           "Working on API routes",
			Type:            0,
			Category:        "coding",
			Timestamps:      &Timestamps{Start: time.Now().Add(-time.Hour).UnixMilli()},
			Assets:          &Assets{LargeImage: "vscode", LargeText: "Visual Studio Code"},
		},
		{
			Name:            "Visual Studio Code",
			Details:         "⚛️ Creating components",
			OriginalDetails: "Editing StatusWidget.tsx",
			State:           "Working on portfolio components",
			Type:            0,
			Category:        "coding",
			Timestamps:      &Timestamps{Start: time.Now().Add(-40 * time.Minute).UnixMilli()},
			Assets:          &Assets{LargeImage: "vscode", LargeText: "Visual Studio Code"},
		},
		{
			Name:            "VALORANT",
			Details:         "🎯 Competitive Match",
			OriginalDetails: "Competitive Match",
			State:           "Haven • 12-10",
			Type:            0,
			Category:        "gaming",
			Timestamps:      &Timestamps{Start: time.Now().Add(-30 * time.Minute).UnixMilli()},
			Assets:          &Assets{LargeImage: "valorant", LargeText: "VALORANT"},
		},
		{
			Name:            "Discord",
			Details:         "🎤 In voice: General",
			OriginalDetails: "In a voice channel",
			State:           "General",
			Type:            0,
			Category:        "communication",
			Timestamps:      &Timestamps{Start: time.Now().Add(-10 * time.Minute).UnixMilli()},
			Assets:          &Assets{LargeImage: "discord", LargeText: "Discord"},
		},
	}

	var activity *Activity
	if rand.Float64() > 0.3 {
		activity = mock[rand.Intn(len(mock))]
	}

	return &Presence{
		Status:       "online",
		Activity:     activity,
		CustomStatus: json.RawMessage(`{}`),
		LastSeen:     time.Now().UTC(),
		Source:       "mock",
	}
}
