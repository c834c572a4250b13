package store

import (
	"encoding/json"
	"time"
)

// DefaultUserID keys the singleton settings rows. The deployment is
// single-tenant; there is exactly one row per settings table.
const DefaultUserID = "default"

// Message is a contact-form submission. Rows are append-only except
// for the read flag and explicit deletion.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Subject   string    `gorm:"not null" json:"subject"`
	Body      string    `gorm:"column:message;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"column:user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthToken holds the OAuth tokens for one external service. There is
// at most one row per service name; token exchanges and refreshes
// upsert it.
type AuthToken struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Service      string     `gorm:"uniqueIndex;not null" json:"service"`
	AccessToken  string     `gorm:"not null" json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RepositorySettings controls which public repositories are hidden
// from or featured on the portfolio. Singleton row keyed by UserID.
// The repo name lists are stored as JSON-encoded TEXT so the row
// shape is identical across all three backends.
type RepositorySettings struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"uniqueIndex;not null" json:"user_id"`
	HiddenRepos   string    `gorm:"not null;default:'[]'" json:"-"`
	FeaturedRepos string    `gorm:"not null;default:'[]'" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Hidden decodes the hidden repository list. A malformed column
// decodes as empty rather than failing the read path.
func (s *RepositorySettings) Hidden() []string {
	return decodeRepoList(s.HiddenRepos)
}

// Featured decodes the featured repository list.
func (s *RepositorySettings) Featured() []string {
	return decodeRepoList(s.FeaturedRepos)
}

// SetHidden encodes and stores the hidden repository list.
func (s *RepositorySettings) SetHidden(repos []string) {
	s.HiddenRepos = encodeRepoList(repos)
}

// SetFeatured encodes and stores the featured repository list.
func (s *RepositorySettings) SetFeatured(repos []string) {
	s.FeaturedRepos = encodeRepoList(repos)
}

func decodeRepoList(raw string) []string {
	if raw == "" {
		return []string{}
	}

	var repos []string
	if err := json.Unmarshal([]byte(raw), &repos); err != nil || repos == nil {
		return []string{}
	}

	return repos
}

func encodeRepoList(repos []string) string {
	if repos == nil {
		repos = []string{}
	}

	data, err := json.Marshal(repos)
	if err != nil {
		return "[]"
	}

	return string(data)
}

// ActivitySettings controls which presence categories the public site
// renders. Singleton row keyed by UserID; every toggle defaults on.
type ActivitySettings struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"uniqueIndex;not null" json:"user_id"`
	ShowDiscord bool      `gorm:"not null;default:true" json:"show_discord"`
	ShowSpotify bool      `gorm:"not null;default:true" json:"show_spotify"`
	ShowCoding  bool      `gorm:"not null;default:true" json:"show_coding"`
	ShowGaming  bool      `gorm:"not null;default:true" json:"show_gaming"`
	ShowGeneral bool      `gorm:"not null;default:true" json:"show_general"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ActivityToggles is a partial update of ActivitySettings; nil fields
// are left unchanged.
type ActivityToggles struct {
	ShowDiscord *bool `json:"show_discord,omitempty"`
	ShowSpotify *bool `json:"show_spotify,omitempty"`
	ShowCoding  *bool `json:"show_coding,omitempty"`
	ShowGaming  *bool `json:"show_gaming,omitempty"`
	ShowGeneral *bool `json:"show_general,omitempty"`
}
