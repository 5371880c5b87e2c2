package stage

import "context"

// SubmissionSignals is the submission-store slice of Signals.
// Implemented by talent.InMemoryStore and talent.PostgresStore.
type SubmissionSignals interface {
	UnpaidWinnerListings(ctx context.Context, listingIDs []string) (map[string]bool, error)
	UncommittedAIReviewListings(ctx context.Context, listingIDs []string) (map[string]bool, error)
}

// BoostGate is the feature-gate slice of Signals.
type BoostGate interface {
	BoostAvailable(ctx context.Context, sponsorID string) (bool, error)
}

// SignalSet composes a submission store and a feature gate into Signals.
type SignalSet struct {
	Submissions SubmissionSignals
	Boost       BoostGate
}

func (s SignalSet) UnpaidWinnerListings(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	return s.Submissions.UnpaidWinnerListings(ctx, listingIDs)
}

func (s SignalSet) UncommittedAIReviewListings(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	return s.Submissions.UncommittedAIReviewListings(ctx, listingIDs)
}

func (s SignalSet) BoostAvailable(ctx context.Context, sponsorID string) (bool, error) {
	return s.Boost.BoostAvailable(ctx, sponsorID)
}
