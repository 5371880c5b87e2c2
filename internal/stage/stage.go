// Package stage classifies a sponsor's in-flight listings into the single
// next action the sponsor should take. Listings are mapped to stages by a
// fixed rule order, then one listing is selected by stage priority with
// deterministic tie-breaking.
package stage

import (
	"time"

	"github.com/onnwee/talentboard/internal/listing"
)

// Stage is the closed set of sponsor action states. Keeping it a small
// integer type (rather than free strings) makes the priority table and the
// tie-break rules exhaustive.
type Stage int

const (
	// StageNone means the listing maps to no stage and is excluded.
	StageNone Stage = iota

	// StageReviewUrgent: the commitment date passed without announced winners.
	StageReviewUrgent

	// StagePaymentPending: announced bounty winners are still unpaid.
	StagePaymentPending

	// StageReviewAI: the deadline passed and AI-reviewed submissions await commitment.
	StageReviewAI

	// StageReview: the deadline passed and submissions await manual review.
	StageReview

	// StageBoost: a higher boost tier would materially increase email reach.
	StageBoost

	// StageBoosted: the listing is live and already at an adequate boost tier.
	StageBoosted

	// StageUnderVerification: the listing is awaiting platform verification.
	StageUnderVerification

	// StageNextListing: nothing outstanding; the sponsor's next step is a new listing.
	StageNextListing

	// StageNewSponsor: the sponsor has no actionable listings at all.
	StageNewSponsor
)

var stageNames = map[Stage]string{
	StageReviewUrgent:      "REVIEW_URGENT",
	StagePaymentPending:    "PAYMENT_PENDING",
	StageReviewAI:          "REVIEW_AI",
	StageReview:            "REVIEW",
	StageBoost:             "BOOST",
	StageBoosted:           "BOOSTED",
	StageUnderVerification: "UNDER_VERIFICATION",
	StageNextListing:       "NEXT_LISTING",
	StageNewSponsor:        "NEW_SPONSOR",
}

// String returns the wire name of the stage. StageNone has no wire name.
func (s Stage) String() string {
	return stageNames[s]
}

// priority ranks stages; lower wins. StagePaymentPending can be demoted to
// demotedPaymentPriority by effectivePriority.
var priority = map[Stage]int{
	StageReviewUrgent:      1,
	StagePaymentPending:    2,
	StageReviewAI:          3,
	StageReview:            4,
	StageBoost:             5,
	StageBoosted:           6,
	StageUnderVerification: 7,
	StageNextListing:       8,
	StageNewSponsor:        9,
}

const demotedPaymentPriority = 8

// PaymentPendingGrace is how long an unpaid-winners listing keeps its high
// priority after winner announcement before other work may surface first.
const PaymentPendingGrace = 7 * 24 * time.Hour

// oldestFirst marks the stages whose ties resolve to the longest-waiting
// listing. All other stages prefer the most recent listing.
var oldestFirst = map[Stage]bool{
	StageReviewUrgent:   true,
	StagePaymentPending: true,
	StageReviewAI:       true,
	StageReview:         true,
}

// Candidate pairs a listing with the stage it derived and the date that
// drives tie-breaking within that stage.
type Candidate struct {
	Stage    Stage
	SortDate time.Time
	Listing  *listing.Listing
}

// Result is the classifier's answer: the selected stage and, except for
// StageNewSponsor and the empty StageNextListing case, the listing it
// applies to. Results are computed fresh on every request and never
// persisted.
type Result struct {
	Stage    Stage
	SortDate time.Time
	Listing  *listing.Listing
}

// effectivePriority returns the candidate's priority at the given time.
// PaymentPending is demoted below NextListing once the grace period since
// winner announcement has elapsed AND some other stage is present among the
// candidates, so long-stalled payouts stop masking newer work but still
// surface when nothing else qualifies.
func effectivePriority(c Candidate, now time.Time, otherStagePresent bool) int {
	p := priority[c.Stage]
	if c.Stage == StagePaymentPending && otherStagePresent && now.Sub(c.SortDate) > PaymentPendingGrace {
		return demotedPaymentPriority
	}
	return p
}

// Select picks the winning candidate by effective priority, breaking ties on
// SortDate (oldest first for review-type stages, newest first otherwise).
// Returns false when candidates is empty.
func Select(candidates []Candidate, now time.Time) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	best := candidates[0]
	bestPrio := effectivePriority(best, now, hasOtherStage(candidates, best.Stage))
	for _, c := range candidates[1:] {
		prio := effectivePriority(c, now, hasOtherStage(candidates, c.Stage))
		switch {
		case prio < bestPrio:
			best, bestPrio = c, prio
		case prio == bestPrio && tieBreakWins(c, best):
			best = c
		}
	}
	return best, true
}

// hasOtherStage reports whether any candidate carries a different stage.
func hasOtherStage(candidates []Candidate, s Stage) bool {
	for _, c := range candidates {
		if c.Stage != s {
			return true
		}
	}
	return false
}

// tieBreakWins reports whether challenger beats incumbent at equal priority.
func tieBreakWins(challenger, incumbent Candidate) bool {
	if oldestFirst[challenger.Stage] {
		return challenger.SortDate.Before(incumbent.SortDate)
	}
	return challenger.SortDate.After(incumbent.SortDate)
}
