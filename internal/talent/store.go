package talent

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStore is an in-memory implementation of the talent read
// interfaces. Thread-safe via RWMutex. Used for testing and development.
type InMemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*User
	optIns        map[string]map[string]bool // userID -> category -> opted in
	submissions   []*Submission
	proofs        []*ProofOfWork
	listingSkills map[string]MatchSet // listingID -> skills taxonomy of that listing
}

// NewInMemoryStore creates a new in-memory talent store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:         make(map[string]*User),
		optIns:        make(map[string]map[string]bool),
		listingSkills: make(map[string]MatchSet),
	}
}

// PutUser stores or replaces a user.
func (s *InMemoryStore) PutUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// OptIn records an email preference opt-in for a user.
func (s *InMemoryStore) OptIn(userID, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.optIns[userID] == nil {
		s.optIns[userID] = make(map[string]bool)
	}
	s.optIns[userID][category] = true
}

// PutSubmission stores a submission.
func (s *InMemoryStore) PutSubmission(sub *Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	if sub.Review != nil {
		rv := *sub.Review
		cp.Review = &rv
	}
	s.submissions = append(s.submissions, &cp)
}

// PutProofOfWork stores a proof-of-work record.
func (s *InMemoryStore) PutProofOfWork(p *ProofOfWork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.proofs = append(s.proofs, &cp)
}

// SetListingSkills records the skill taxonomy of a historical listing so
// submissions against it can be matched.
func (s *InMemoryStore) SetListingSkills(listingID string, skills, subskills []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listingSkills[listingID] = MatchSet{Skills: skills, SubSkills: subskills}
}

// UnpaidWinnerListings returns, for each given listing, whether it has at
// least one winning submission that has not been paid out.
func (s *InMemoryStore) UnpaidWinnerListings(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := toSet(listingIDs)
	out := make(map[string]bool, len(listingIDs))
	for _, sub := range s.submissions {
		if wanted[sub.ListingID] && sub.IsWinner && !sub.IsPaid {
			out[sub.ListingID] = true
		}
	}
	return out, nil
}

// UncommittedAIReviewListings returns, for each given listing, whether it has
// a pending submission carrying an uncommitted AI review prediction.
func (s *InMemoryStore) UncommittedAIReviewListings(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := toSet(listingIDs)
	out := make(map[string]bool, len(listingIDs))
	for _, sub := range s.submissions {
		if !wanted[sub.ListingID] {
			continue
		}
		if sub.Status != "Pending" {
			continue
		}
		if sub.Label != "Unreviewed" && sub.Label != "Pending" {
			continue
		}
		if sub.Review != nil && sub.Review.PredictedLabel != "" && !sub.Review.Committed {
			out[sub.ListingID] = true
		}
	}
	return out, nil
}

// Earnings returns rewardInUSD summed over each candidate's winning
// submissions that match the filter.
func (s *InMemoryStore) Earnings(ctx context.Context, f MatchFilter) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64)
	for _, sub := range s.submissions {
		if !sub.IsWinner || sub.ListingID == f.ExcludeListingID {
			continue
		}
		if !s.eligibleLocked(sub.UserID, f) {
			continue
		}
		if m := s.matchListingLocked(sub.ListingID, f); len(m.Skills) > 0 || len(m.SubSkills) > 0 {
			out[sub.UserID] += sub.RewardInUSD
		}
	}
	return out, nil
}

// SubmissionMatches returns the distinct matched skills and subskills from
// each candidate's winning submissions.
func (s *InMemoryStore) SubmissionMatches(ctx context.Context, f MatchFilter) (map[string]MatchSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]MatchSet)
	for _, sub := range s.submissions {
		if !sub.IsWinner || sub.ListingID == f.ExcludeListingID {
			continue
		}
		if !s.eligibleLocked(sub.UserID, f) {
			continue
		}
		m := s.matchListingLocked(sub.ListingID, f)
		if len(m.Skills) == 0 && len(m.SubSkills) == 0 {
			continue
		}
		out[sub.UserID] = out[sub.UserID].Merge(m)
	}
	return out, nil
}

// ProofOfWorkMatches returns the distinct matched skills and subskills from
// each candidate's proof-of-work records.
func (s *InMemoryStore) ProofOfWorkMatches(ctx context.Context, f MatchFilter) (map[string]MatchSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]MatchSet)
	for _, p := range s.proofs {
		if !s.eligibleLocked(p.UserID, f) {
			continue
		}
		m := matchSets(p.Skills, p.SubSkills, f)
		if len(m.Skills) == 0 && len(m.SubSkills) == 0 {
			continue
		}
		out[p.UserID] = out[p.UserID].Merge(m)
	}
	return out, nil
}

// RecommendedUsers reports which of the given users carry the editorial
// recommendation flag.
func (s *InMemoryStore) RecommendedUsers(ctx context.Context, userIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok && u.STRecommended {
			out[id] = true
		}
	}
	return out, nil
}

// UserSummaries returns API summaries for the given users.
func (s *InMemoryStore) UserSummaries(ctx context.Context, userIDs []string) (map[string]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Summary, len(userIDs))
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out[id] = Summary{
				ID:          u.ID,
				Name:        u.Name,
				Username:    u.Username,
				PhotoURL:    u.PhotoURL,
				Recommended: u.STRecommended,
			}
		}
	}
	return out, nil
}

// eligibleLocked checks the scout-invite opt-in and region filter for a user.
// Caller must hold the read lock.
func (s *InMemoryStore) eligibleLocked(userID string, f MatchFilter) bool {
	if !s.optIns[userID][EmailCategoryScoutInvite] {
		return false
	}
	if !f.FiltersRegion() {
		return true
	}
	u, ok := s.users[userID]
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(u.Location), strings.ToLower(f.Region))
}

// matchListingLocked intersects a historical listing's skill taxonomy with
// the filter. Caller must hold the read lock.
func (s *InMemoryStore) matchListingLocked(listingID string, f MatchFilter) MatchSet {
	skills, ok := s.listingSkills[listingID]
	if !ok {
		return MatchSet{}
	}
	return matchSets(skills.Skills, skills.SubSkills, f)
}

func matchSets(skills, subskills []string, f MatchFilter) MatchSet {
	var m MatchSet
	want := toSet(f.DevSkills)
	for _, sk := range skills {
		if want[sk] {
			m.Skills = append(m.Skills, sk)
		}
	}
	wantSub := toSet(f.SubSkills)
	for _, sub := range subskills {
		if wantSub[sub] {
			m.SubSkills = append(m.SubSkills, sub)
		}
	}
	return m
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}
