// Package listing provides models and repositories for sponsor listings:
// bounties, projects, hackathon tracks, and grants.
package listing

import (
	"time"
)

// Type identifies the kind of listing a sponsor has posted.
type Type string

const (
	TypeBounty    Type = "bounty"
	TypeProject   Type = "project"
	TypeHackathon Type = "hackathon"
	TypeGrant     Type = "grant"
)

// Status mirrors the listing_status enum in PostgreSQL.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusVerifying Status = "VERIFYING"
	StatusClosed    Status = "CLOSED"
)

// RegionGlobal disables region filtering when set on a listing.
const RegionGlobal = "GLOBAL"

// devSkills are the top-level development skills recognized for skill
// matching. Listings whose skill set contains none of these are treated as
// non-development listings, which shifts the scout ranking weights.
var devSkills = map[string]bool{
	"Frontend":   true,
	"Backend":    true,
	"Blockchain": true,
	"Mobile":     true,
}

// IsDevSkill reports whether name is one of the recognized top-level
// development skills.
func IsDevSkill(name string) bool {
	return devSkills[name]
}

// SkillSet is one entry of a listing's required skill taxonomy: a main skill
// plus the subskills the sponsor cares about under it.
type SkillSet struct {
	MainSkill string   `json:"skills"`
	SubSkills []string `json:"subskills"`
}

// Sponsor owns zero or more listings.
type Sponsor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	LogoURL    string `json:"logo_url,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// Listing is a bounty, project, hackathon track, or grant posted by a sponsor.
type Listing struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Type      Type   `json:"type"`
	SponsorID string `json:"sponsor_id"`
	Status    Status `json:"status"`

	Deadline       *time.Time `json:"deadline,omitempty"`
	CommitmentDate *time.Time `json:"commitment_date,omitempty"`

	IsPublished bool `json:"is_published"`
	IsActive    bool `json:"is_active"`
	IsArchived  bool `json:"is_archived"`

	IsWinnersAnnounced bool       `json:"is_winners_announced"`
	WinnersAnnouncedAt *time.Time `json:"winners_announced_at,omitempty"`

	// IsExternallyFunded marks listings whose winner payouts are handled by
	// an external foundation rather than the sponsor.
	IsExternallyFunded bool `json:"is_externally_funded"`

	USDValue float64    `json:"usd_value"`
	Region   string     `json:"region"`
	Skills   []SkillSet `json:"skills,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Summary is the trimmed listing representation embedded in API responses.
type Summary struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Slug     string     `json:"slug"`
	Type     Type       `json:"type"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// Summarize returns the API summary for the listing.
func (l *Listing) Summarize() *Summary {
	if l == nil {
		return nil
	}
	return &Summary{
		ID:       l.ID,
		Title:    l.Title,
		Slug:     l.Slug,
		Type:     l.Type,
		Deadline: l.Deadline,
	}
}

// IsLive reports whether the listing is currently accepting submissions:
// published, active, not archived, and the deadline has not passed. A
// deadline falling on the current day still counts as live.
func (l *Listing) IsLive(now time.Time) bool {
	if !l.IsPublished || !l.IsActive || l.IsArchived {
		return false
	}
	if l.Deadline == nil {
		return false
	}
	if l.Deadline.After(now) {
		return true
	}
	return sameDay(*l.Deadline, now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CommitmentOverdue reports whether the commitment date has passed without
// winners being announced.
func (l *Listing) CommitmentOverdue(now time.Time) bool {
	return l.CommitmentDate != nil && l.CommitmentDate.Before(now) && !l.IsWinnersAnnounced
}

// DeadlinePassed reports whether the listing's deadline is strictly in the past.
func (l *Listing) DeadlinePassed(now time.Time) bool {
	return l.Deadline != nil && l.Deadline.Before(now)
}

// MainSkills returns the distinct main skills of the listing's taxonomy, in
// declaration order.
func (l *Listing) MainSkills() []string {
	seen := make(map[string]bool, len(l.Skills))
	out := make([]string, 0, len(l.Skills))
	for _, s := range l.Skills {
		if s.MainSkill == "" || seen[s.MainSkill] {
			continue
		}
		seen[s.MainSkill] = true
		out = append(out, s.MainSkill)
	}
	return out
}

// SubSkills returns the distinct subskills across all skill sets, in
// declaration order.
func (l *Listing) SubSkills() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range l.Skills {
		for _, sub := range s.SubSkills {
			if sub == "" || seen[sub] {
				continue
			}
			seen[sub] = true
			out = append(out, sub)
		}
	}
	return out
}

// DevSkills returns the listing's main skills restricted to the recognized
// development skills.
func (l *Listing) DevSkills() []string {
	var out []string
	for _, s := range l.MainSkills() {
		if IsDevSkill(s) {
			out = append(out, s)
		}
	}
	return out
}

// HasDevSkills reports whether at least one main skill is a development skill.
// Listings without any are "non-dev" listings for scout weighting purposes.
func (l *Listing) HasDevSkills() bool {
	return len(l.DevSkills()) > 0
}
