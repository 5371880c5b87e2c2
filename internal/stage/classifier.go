package stage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/talentboard/internal/listing"
	"github.com/onnwee/talentboard/internal/reach"
	"github.com/onnwee/talentboard/internal/tracing"
)

// Signals provides the per-listing auxiliary facts the rules depend on.
// Implementations read from the submission store and the feature flag source.
type Signals interface {
	// UnpaidWinnerListings reports which of the given listings have winning
	// submissions that have not been paid out.
	UnpaidWinnerListings(ctx context.Context, listingIDs []string) (map[string]bool, error)

	// UncommittedAIReviewListings reports which of the given listings have
	// pending submissions carrying uncommitted AI review predictions.
	UncommittedAIReviewListings(ctx context.Context, listingIDs []string) (map[string]bool, error)

	// BoostAvailable reports whether the boost feature is enabled for the
	// sponsor.
	BoostAvailable(ctx context.Context, sponsorID string) (bool, error)
}

// Classifier determines the single next action for a sponsor.
type Classifier struct {
	listings listing.Repository
	signals  Signals
	metrics  *Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewClassifier creates a stage classifier.
func NewClassifier(listings listing.Repository, signals Signals, metrics *Metrics) *Classifier {
	return &Classifier{
		listings: listings,
		signals:  signals,
		metrics:  metrics,
		now:      time.Now,
	}
}

// auxSignals bundles the jointly-awaited signal fetches for one request.
type auxSignals struct {
	unpaidWinners  map[string]bool
	pendingReviews map[string]bool
	boostAvailable bool
}

// Classify computes the sponsor's current stage. The reach memo is created
// by the caller per request and passed down explicitly; estimates within one
// request are deduplicated by audience.
//
// A sponsor with zero actionable listings yields StageNewSponsor; a sponsor
// whose listings all fall outside the rules yields StageNextListing with no
// listing attached. Classify never persists anything.
func (c *Classifier) Classify(ctx context.Context, sponsorID string, memo *reach.Memo) (res *Result, err error) {
	start := c.now()
	ctx, endSpan := tracing.StartSpan(ctx, "classify_sponsor_stage")
	defer func() {
		endSpan(err)
		if c.metrics != nil && res != nil {
			c.metrics.ObserveClassification(res.Stage, c.now().Sub(start).Seconds())
		}
	}()
	tracing.SetAttributes(ctx, attribute.String("sponsor.id", sponsorID))

	listings, err := c.listings.ActionableBySponsor(ctx, sponsorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load actionable listings: %w", err)
	}
	if len(listings) == 0 {
		return &Result{Stage: StageNewSponsor, SortDate: start}, nil
	}

	now := c.now()

	// Overdue commitments always win selection, so when any exist the rest
	// of the listings never need evaluating and no signal fetches happen.
	if urgent := urgentCandidates(listings, now); len(urgent) > 0 {
		best, _ := Select(urgent, now)
		return &Result{Stage: best.Stage, SortDate: best.SortDate, Listing: best.Listing}, nil
	}

	aux, err := c.fetchSignals(ctx, sponsorID, listings)
	if err != nil {
		return nil, err
	}

	// One estimate per distinct audience across the sponsor's live listings,
	// fetched concurrently up front.
	if aux.boostAvailable {
		var audiences []reach.Audience
		for _, l := range listings {
			if l.IsLive(now) {
				audiences = append(audiences, reach.Audience{Skills: l.MainSkills(), Region: l.Region})
			}
		}
		memo.Prime(ctx, audiences)
	}

	var candidates []Candidate
	for _, l := range listings {
		if cand, ok := c.classifyListing(ctx, l, now, aux, memo); ok {
			candidates = append(candidates, cand)
		}
	}

	best, ok := Select(candidates, now)
	if !ok {
		return &Result{Stage: StageNextListing, SortDate: now}, nil
	}
	return &Result{Stage: best.Stage, SortDate: best.SortDate, Listing: best.Listing}, nil
}

// urgentCandidates returns REVIEW_URGENT candidates: listings whose
// commitment date passed without winners being announced.
func urgentCandidates(listings []*listing.Listing, now time.Time) []Candidate {
	var out []Candidate
	for _, l := range listings {
		if l.CommitmentOverdue(now) {
			out = append(out, Candidate{
				Stage:    StageReviewUrgent,
				SortDate: *l.CommitmentDate,
				Listing:  l,
			})
		}
	}
	return out
}

// fetchSignals issues the independent signal reads concurrently and awaits
// them jointly.
func (c *Classifier) fetchSignals(ctx context.Context, sponsorID string, listings []*listing.Listing) (*auxSignals, error) {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}

	var (
		wg  sync.WaitGroup
		aux auxSignals

		unpaidErr, reviewErr, boostErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		aux.unpaidWinners, unpaidErr = c.signals.UnpaidWinnerListings(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		aux.pendingReviews, reviewErr = c.signals.UncommittedAIReviewListings(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		aux.boostAvailable, boostErr = c.signals.BoostAvailable(ctx, sponsorID)
	}()
	wg.Wait()

	if unpaidErr != nil {
		return nil, fmt.Errorf("failed to load unpaid winner signal: %w", unpaidErr)
	}
	if reviewErr != nil {
		return nil, fmt.Errorf("failed to load AI review signal: %w", reviewErr)
	}
	if boostErr != nil {
		return nil, fmt.Errorf("failed to load boost availability: %w", boostErr)
	}
	return &aux, nil
}

// classifyListing applies the stage rules to one listing. Rules are checked
// in fixed order; the first match wins. Returns false when no rule applies.
func (c *Classifier) classifyListing(ctx context.Context, l *listing.Listing, now time.Time, aux *auxSignals, memo *reach.Memo) (Candidate, bool) {
	// Rule 1: commitment date passed, winners unannounced.
	if l.CommitmentOverdue(now) {
		return Candidate{Stage: StageReviewUrgent, SortDate: *l.CommitmentDate, Listing: l}, true
	}

	// Rule 2: announced bounty with unpaid winners, unless payouts are
	// handled externally.
	if l.IsWinnersAnnounced && l.Type == listing.TypeBounty && aux.unpaidWinners[l.ID] && !l.IsExternallyFunded {
		sortDate := now
		if l.WinnersAnnouncedAt != nil {
			sortDate = *l.WinnersAnnouncedAt
		}
		return Candidate{Stage: StagePaymentPending, SortDate: sortDate, Listing: l}, true
	}

	// Rule 3: deadline passed, winners unannounced.
	if l.DeadlinePassed(now) && !l.IsWinnersAnnounced {
		st := StageReview
		if aux.pendingReviews[l.ID] {
			st = StageReviewAI
		}
		return Candidate{Stage: st, SortDate: *l.Deadline, Listing: l}, true
	}

	// Rule 4: still under platform verification.
	if l.Status == listing.StatusVerifying {
		sortDate := now
		switch {
		case l.PublishedAt != nil:
			sortDate = *l.PublishedAt
		case !l.UpdatedAt.IsZero():
			sortDate = l.UpdatedAt
		}
		return Candidate{Stage: StageUnderVerification, SortDate: sortDate, Listing: l}, true
	}

	// Rule 5: live listing; prompt a boost when the next tier is worth it.
	if l.IsLive(now) {
		st := StageBoosted
		if aux.boostAvailable {
			estimate := memo.Estimate(ctx, l.MainSkills(), l.Region)
			if BoostWorthwhile(estimate, TierForValue(l.USDValue)) {
				st = StageBoost
			}
		}
		sortDate := now
		if l.PublishedAt != nil {
			sortDate = *l.PublishedAt
		}
		return Candidate{Stage: st, SortDate: sortDate, Listing: l}, true
	}

	// Rule 6: archived or closed out.
	if l.IsArchived || l.Status == listing.StatusClosed {
		sortDate := now
		switch {
		case l.WinnersAnnouncedAt != nil:
			sortDate = *l.WinnersAnnouncedAt
		case !l.UpdatedAt.IsZero():
			sortDate = l.UpdatedAt
		}
		return Candidate{Stage: StageNextListing, SortDate: sortDate, Listing: l}, true
	}

	return Candidate{}, false
}
