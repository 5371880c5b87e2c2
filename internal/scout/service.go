package scout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/talentboard/internal/listing"
	"github.com/onnwee/talentboard/internal/talent"
	"github.com/onnwee/talentboard/internal/tracing"
)

var (
	// ErrNotOwner is returned when the requesting sponsor does not own the
	// listing.
	ErrNotOwner = errors.New("listing not owned by sponsor")

	// ErrNoSkills is returned when the listing declares no skills to match
	// against.
	ErrNoSkills = errors.New("listing has no skills specified")
)

// SignalSource aggregates historical candidate signals for one listing.
// Implemented by talent.InMemoryStore and talent.PostgresStore.
type SignalSource interface {
	Earnings(ctx context.Context, f talent.MatchFilter) (map[string]float64, error)
	SubmissionMatches(ctx context.Context, f talent.MatchFilter) (map[string]talent.MatchSet, error)
	ProofOfWorkMatches(ctx context.Context, f talent.MatchFilter) (map[string]talent.MatchSet, error)
	RecommendedUsers(ctx context.Context, userIDs []string) (map[string]bool, error)
	UserSummaries(ctx context.Context, userIDs []string) (map[string]talent.Summary, error)
}

// Notifier delivers scout invites to candidates.
type Notifier interface {
	SendScoutInvite(ctx context.Context, userID, listingID string) error
}

// LogNotifier logs invites instead of delivering them. Used when no email
// transport is configured.
type LogNotifier struct{}

func (LogNotifier) SendScoutInvite(ctx context.Context, userID, listingID string) error {
	slog.InfoContext(ctx, "scout invite (log only)",
		slog.String("user_id", userID),
		slog.String("listing_id", listingID))
	return nil
}

// Service computes, persists, and serves the top candidate ranking for a
// listing.
type Service struct {
	listings listing.Repository
	sponsors listing.SponsorRepository
	signals  SignalSource
	repo     Repository
	notifier Notifier
	metrics  *Metrics

	weights         *Weights
	freshness       time.Duration
	limit           int
	secondaryAdjust bool

	now func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithWeights overrides the default scoring weights.
func WithWeights(w *Weights) ServiceOption {
	return func(s *Service) {
		if w != nil {
			s.weights = w
		}
	}
}

// WithFreshness overrides the recomputation window.
func WithFreshness(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.freshness = d
		}
	}
}

// WithLimit overrides the persisted candidate cap.
func WithLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithSecondaryAdjustment toggles the match-count adjustment pass applied to
// the final pool.
func WithSecondaryAdjustment(enabled bool) ServiceOption {
	return func(s *Service) { s.secondaryAdjust = enabled }
}

// WithNotifier sets the invite delivery transport.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for testing.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a scout Service with default weights, freshness, and
// candidate cap.
func NewService(listings listing.Repository, sponsors listing.SponsorRepository, signals SignalSource, repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		listings:  listings,
		sponsors:  sponsors,
		signals:   signals,
		repo:      repo,
		notifier:  LogNotifier{},
		weights:   DefaultWeights(),
		freshness: DefaultFreshness,
		limit:     MaxCandidates,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoutsForListing returns the top candidates for a listing, recomputing the
// ranking when the stored one is stale or missing.
//
// Visibility rules: the requesting sponsor must own the listing, and the
// sponsor must be verified. An unverified sponsor gets an empty result rather
// than an error so the response shape stays stable while verification is
// pending.
func (s *Service) ScoutsForListing(ctx context.Context, listingID, sponsorID string) ([]Scout, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "scout.serve")
	rows, err := s.serve(ctx, listingID, sponsorID)
	endSpan(err)
	return rows, err
}

func (s *Service) serve(ctx context.Context, listingID, sponsorID string) ([]Scout, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.SponsorID != sponsorID {
		return nil, ErrNotOwner
	}
	sponsor, err := s.sponsors.GetByID(ctx, l.SponsorID)
	if err != nil {
		return nil, err
	}
	if !sponsor.IsVerified {
		return []Scout{}, nil
	}
	if len(l.MainSkills()) == 0 && len(l.SubSkills()) == 0 {
		return nil, ErrNoSkills
	}

	latest, err := s.repo.LatestCreatedAt(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if latest != nil && s.now().Sub(*latest) < s.freshness {
		rows, err := s.repo.ListByListing(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.ObserveServed("fresh")
		}
		return rows, nil
	}

	rows, err := s.recompute(ctx, l)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveServed("recomputed")
	}
	return rows, nil
}

// Invite marks a stored scout as invited and delivers the invite. The
// requesting sponsor must own the listing.
func (s *Service) Invite(ctx context.Context, listingID, userID, sponsorID string) error {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if l.SponsorID != sponsorID {
		return ErrNotOwner
	}
	if err := s.repo.MarkInvited(ctx, listingID, userID); err != nil {
		return err
	}
	if err := s.notifier.SendScoutInvite(ctx, userID, listingID); err != nil {
		// The invited flag is already durable; delivery can be retried.
		slog.WarnContext(ctx, "scout invite delivery failed",
			slog.String("user_id", userID),
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()))
	}
	if s.metrics != nil {
		s.metrics.ObserveInvite()
	}
	return nil
}

func (s *Service) recompute(ctx context.Context, l *listing.Listing) ([]Scout, error) {
	start := s.now()

	f := talent.MatchFilter{
		ExcludeListingID: l.ID,
		DevSkills:        l.DevSkills(),
		SubSkills:        l.SubSkills(),
		Region:           l.Region,
	}

	earnings, subMatches, powMatches, err := s.fetchSignals(ctx, f)
	if err != nil {
		s.observeRecompute("error", start)
		return nil, err
	}

	pool := buildPool(earnings, subMatches, powMatches)
	if len(pool) == 0 {
		if err := s.repo.Replace(ctx, l.ID, nil); err != nil {
			s.observeRecompute("error", start)
			return nil, err
		}
		s.observeRecompute("empty", start)
		return []Scout{}, nil
	}

	userIDs := make([]string, 0, len(pool))
	for _, c := range pool {
		userIDs = append(userIDs, c.UserID)
	}
	recommended, summaries, invited, err := s.fetchUserContext(ctx, l.ID, userIDs)
	if err != nil {
		s.observeRecompute("error", start)
		return nil, err
	}
	for i := range pool {
		pool[i].Recommended = recommended[pool[i].UserID]
	}

	devListing := l.HasDevSkills()
	ranked := RankCandidates(pool, s.weights, devListing)
	if len(ranked) > s.limit {
		ranked = ranked[:s.limit]
	}
	if s.secondaryAdjust {
		ApplySecondaryAdjustment(ranked, s.weights, devListing)
	}

	now := s.now()
	rows := make([]Scout, 0, len(ranked))
	for _, r := range ranked {
		row := Scout{
			ID:            uuid.NewString(),
			ListingID:     l.ID,
			UserID:        r.UserID,
			DollarsEarned: r.DollarsEarned,
			Score:         r.Score,
			Skills:        r.Matched,
			Invited:       invited[r.UserID],
			CreatedAt:     now,
		}
		if sum, ok := summaries[r.UserID]; ok {
			row.User = &sum
		}
		rows = append(rows, row)
	}

	if err := s.repo.Replace(ctx, l.ID, rows); err != nil {
		s.observeRecompute("error", start)
		return nil, err
	}
	s.observeRecompute("ok", start)
	return rows, nil
}

// fetchSignals runs the three historical aggregations concurrently and waits
// for all before checking errors, so a failure never leaks a goroutine.
func (s *Service) fetchSignals(ctx context.Context, f talent.MatchFilter) (map[string]float64, map[string]talent.MatchSet, map[string]talent.MatchSet, error) {
	var (
		wg                            sync.WaitGroup
		earnings                      map[string]float64
		subMatches, powMatches        map[string]talent.MatchSet
		earningsErr, subsErr, powsErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		earnings, earningsErr = s.signals.Earnings(ctx, f)
	}()
	go func() {
		defer wg.Done()
		subMatches, subsErr = s.signals.SubmissionMatches(ctx, f)
	}()
	go func() {
		defer wg.Done()
		powMatches, powsErr = s.signals.ProofOfWorkMatches(ctx, f)
	}()
	wg.Wait()

	for _, err := range []error{earningsErr, subsErr, powsErr} {
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to fetch candidate signals: %w", err)
		}
	}
	return earnings, subMatches, powMatches, nil
}

// fetchUserContext loads the recommendation flags, user summaries, and
// previously invited users for the pool concurrently.
func (s *Service) fetchUserContext(ctx context.Context, listingID string, userIDs []string) (map[string]bool, map[string]talent.Summary, map[string]bool, error) {
	var (
		wg                     sync.WaitGroup
		recommended            map[string]bool
		summaries              map[string]talent.Summary
		invitedIDs             []string
		recErr, sumErr, invErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		recommended, recErr = s.signals.RecommendedUsers(ctx, userIDs)
	}()
	go func() {
		defer wg.Done()
		summaries, sumErr = s.signals.UserSummaries(ctx, userIDs)
	}()
	go func() {
		defer wg.Done()
		invitedIDs, invErr = s.repo.InvitedUserIDs(ctx, listingID)
	}()
	wg.Wait()

	for _, err := range []error{recErr, sumErr, invErr} {
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to fetch candidate context: %w", err)
		}
	}
	invited := make(map[string]bool, len(invitedIDs))
	for _, id := range invitedIDs {
		invited[id] = true
	}
	return recommended, summaries, invited, nil
}

// buildPool folds the three signal maps into one CandidateSignals per user.
// A user appears in the pool when any signal saw them.
func buildPool(earnings map[string]float64, subMatches, powMatches map[string]talent.MatchSet) []CandidateSignals {
	byUser := make(map[string]*CandidateSignals)
	get := func(userID string) *CandidateSignals {
		c, ok := byUser[userID]
		if !ok {
			c = &CandidateSignals{UserID: userID}
			byUser[userID] = c
		}
		return c
	}

	for userID, dollars := range earnings {
		get(userID).DollarsEarned = dollars
	}
	for userID, m := range subMatches {
		c := get(userID)
		c.SubSkillMatches = len(m.SubSkills)
		c.SkillMatches = len(m.Skills)
		c.Matched = c.Matched.Merge(m)
	}
	for userID, m := range powMatches {
		c := get(userID)
		c.PoWMatches = len(m.Skills) + len(m.SubSkills)
		c.Matched = c.Matched.Merge(m)
	}

	pool := make([]CandidateSignals, 0, len(byUser))
	for _, c := range byUser {
		pool = append(pool, *c)
	}
	return pool
}

func (s *Service) observeRecompute(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRecompute(outcome, s.now().Sub(start).Seconds())
}
