// Package talent provides models and repositories for candidate users, their
// submissions, and self-reported proof-of-work records. It is the read side
// for both the sponsor stage classifier and the talent scout ranker.
package talent

import "time"

// EmailCategoryScoutInvite is the email preference category a user must opt
// into before they are considered for scout outreach.
const EmailCategoryScoutInvite = "scoutInvite"

// User is a candidate on the platform.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url,omitempty"`

	// Location is free text; region filters match it by substring since no
	// controlled vocabulary is enforced.
	Location string `json:"location,omitempty"`

	// STRecommended is an editorial flag marking a user as platform-endorsed.
	STRecommended bool `json:"st_recommended"`

	CreatedAt time.Time `json:"created_at"`
}

// Summary is the trimmed user representation embedded in scout responses.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Recommended bool   `json:"recommended"`
}

// EmailSetting is a single email preference opt-in for a user.
type EmailSetting struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
}

// AIReview is the evaluation payload an external AI pipeline stamps onto a
// submission. It is consumed here, never computed.
type AIReview struct {
	PredictedLabel string `json:"predicted_label"`
	Committed      bool   `json:"committed"`
}

// Submission is a candidate's entry to a listing.
type Submission struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`

	IsWinner    bool    `json:"is_winner"`
	IsPaid      bool    `json:"is_paid"`
	RewardInUSD float64 `json:"reward_in_usd"`

	Status string    `json:"status"`
	Label  string    `json:"label"`
	Review *AIReview `json:"review,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ProofOfWork is a self-reported portfolio entry. Its skills are free text
// and unverified, so it carries less ranking weight than paid submissions.
type ProofOfWork struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Skills    []string  `json:"skills"`
	SubSkills []string  `json:"subskills"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchFilter selects qualifying submissions or proof-of-work records for
// signal aggregation against one target listing.
type MatchFilter struct {
	// ExcludeListingID keeps the target listing's own submissions out of the
	// historical signals.
	ExcludeListingID string

	// DevSkills are the target listing's recognized development main skills.
	DevSkills []string

	// SubSkills are the target listing's required subskills.
	SubSkills []string

	// Region filters candidates by location substring. Empty or "GLOBAL"
	// disables the filter.
	Region string
}

// FiltersRegion reports whether the filter constrains candidate location.
func (f MatchFilter) FiltersRegion() bool {
	return f.Region != "" && f.Region != "GLOBAL"
}

// MatchSet records which of a listing's required skills and subskills a
// candidate's history matched.
type MatchSet struct {
	Skills    []string `json:"skills"`
	SubSkills []string `json:"subskills"`
}

// Merge returns the union of two match sets, preserving first-seen order.
func (m MatchSet) Merge(other MatchSet) MatchSet {
	out := MatchSet{}
	seenSkill := make(map[string]bool)
	for _, s := range append(append([]string{}, m.Skills...), other.Skills...) {
		if s == "" || seenSkill[s] {
			continue
		}
		seenSkill[s] = true
		out.Skills = append(out.Skills, s)
	}
	seenSub := make(map[string]bool)
	for _, s := range append(append([]string{}, m.SubSkills...), other.SubSkills...) {
		if s == "" || seenSub[s] {
			continue
		}
		seenSub[s] = true
		out.SubSkills = append(out.SubSkills, s)
	}
	return out
}
