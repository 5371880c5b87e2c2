// Package scout ranks candidate users against a listing's skill requirements
// and persists the resulting top candidates for sponsor outreach.
package scout

import (
	"errors"
	"time"

	"github.com/onnwee/talentboard/internal/talent"
)

// ErrScoutNotFound is returned when no scout row exists for a listing/user pair.
var ErrScoutNotFound = errors.New("scout not found")

// MaxCandidates caps the persisted ranking per listing.
const MaxCandidates = 10

// DefaultFreshness is how long a computed ranking stays valid before a
// request triggers recomputation.
const DefaultFreshness = 6 * time.Hour

// Scout is a candidate-to-listing match record with a computed relevance
// score. At most one row exists per (listing, user); rows are fully replaced
// on recomputation except that Invited survives for previously invited users.
type Scout struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`

	// DollarsEarned is the candidate's cumulative USD from winning
	// submissions matching the listing's skills.
	DollarsEarned float64 `json:"dollars_earned"`

	// Score is the blended, normalized relevance score.
	Score float64 `json:"score"`

	// Skills records which required skills and subskills matched.
	Skills talent.MatchSet `json:"skills"`

	Invited   bool      `json:"invited"`
	CreatedAt time.Time `json:"created_at"`

	// User is the embedded summary for API responses; populated on read.
	User *talent.Summary `json:"user,omitempty"`
}
