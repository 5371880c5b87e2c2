package talent

import (
	"context"
	"testing"
)

func seedStore() *InMemoryStore {
	s := NewInMemoryStore()

	// Two historical listings with known taxonomies.
	s.SetListingSkills("hist-fe", []string{"Frontend"}, []string{"React", "Vue"})
	s.SetListingSkills("hist-be", []string{"Backend"}, []string{"Postgres"})

	s.PutUser(&User{ID: "u1", Username: "riley", Name: "Riley", Location: "Berlin, Germany"})
	s.OptIn("u1", EmailCategoryScoutInvite)
	s.PutSubmission(&Submission{ID: "sub-1", ListingID: "hist-fe", UserID: "u1", IsWinner: true, IsPaid: true, RewardInUSD: 1200})
	s.PutSubmission(&Submission{ID: "sub-2", ListingID: "hist-fe", UserID: "u1", IsWinner: true, IsPaid: true, RewardInUSD: 300})
	s.PutSubmission(&Submission{ID: "sub-3", ListingID: "hist-be", UserID: "u1", IsWinner: true, IsPaid: true, RewardInUSD: 700})

	s.PutUser(&User{ID: "u2", Username: "sam", Name: "Sam", Location: "Bangalore, India"})
	s.OptIn("u2", EmailCategoryScoutInvite)
	s.PutSubmission(&Submission{ID: "sub-4", ListingID: "hist-fe", UserID: "u2", IsWinner: false, RewardInUSD: 500})
	s.PutProofOfWork(&ProofOfWork{ID: "pow-1", UserID: "u2", Skills: []string{"Frontend"}, SubSkills: []string{"React"}})

	// Not opted in to scout invites.
	s.PutUser(&User{ID: "u3", Username: "quiet", Name: "Quiet"})
	s.PutSubmission(&Submission{ID: "sub-5", ListingID: "hist-fe", UserID: "u3", IsWinner: true, IsPaid: true, RewardInUSD: 5000})

	return s
}

func feFilter() MatchFilter {
	return MatchFilter{
		ExcludeListingID: "target",
		DevSkills:        []string{"Frontend"},
		SubSkills:        []string{"React"},
	}
}

func TestEarnings(t *testing.T) {
	s := seedStore()
	ctx := context.Background()

	got, err := s.Earnings(ctx, feFilter())
	if err != nil {
		t.Fatalf("Earnings() error = %v", err)
	}

	// Only winning submissions on matching listings count: u1's two
	// frontend wins sum, the backend win does not match.
	if got["u1"] != 1500 {
		t.Errorf("u1 earnings = %v, want 1500", got["u1"])
	}
	// u2 never won.
	if _, ok := got["u2"]; ok {
		t.Error("u2 has no winning submissions and must not appear")
	}
	// u3 is not opted in.
	if _, ok := got["u3"]; ok {
		t.Error("u3 is not opted in and must not appear")
	}
}

func TestEarnings_ExcludesTargetListing(t *testing.T) {
	s := seedStore()
	s.SetListingSkills("target", []string{"Frontend"}, []string{"React"})
	s.PutSubmission(&Submission{ID: "sub-t", ListingID: "target", UserID: "u1", IsWinner: true, IsPaid: true, RewardInUSD: 9999})

	got, err := s.Earnings(context.Background(), feFilter())
	if err != nil {
		t.Fatal(err)
	}
	if got["u1"] != 1500 {
		t.Errorf("u1 earnings = %v, want 1500 without the target listing's win", got["u1"])
	}
}

func TestEarnings_RegionFilter(t *testing.T) {
	s := seedStore()
	f := feFilter()
	f.Region = "Germany"

	got, err := s.Earnings(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if got["u1"] != 1500 {
		t.Errorf("u1 earnings = %v, want 1500 with a matching region", got["u1"])
	}

	f.Region = "Brazil"
	got, err = s.Earnings(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("earnings = %v, want empty for a non-matching region", got)
	}
}

func TestMatchFilter_FiltersRegion(t *testing.T) {
	tests := []struct {
		region string
		want   bool
	}{
		{"", false},
		{"GLOBAL", false},
		{"India", true},
	}
	for _, tt := range tests {
		f := MatchFilter{Region: tt.region}
		if got := f.FiltersRegion(); got != tt.want {
			t.Errorf("FiltersRegion(%q) = %v, want %v", tt.region, got, tt.want)
		}
	}
}

func TestSubmissionMatches(t *testing.T) {
	s := seedStore()

	got, err := s.SubmissionMatches(context.Background(), feFilter())
	if err != nil {
		t.Fatalf("SubmissionMatches() error = %v", err)
	}

	m, ok := got["u1"]
	if !ok {
		t.Fatal("expected u1 in the submission matches")
	}
	if len(m.Skills) != 1 || m.Skills[0] != "Frontend" {
		t.Errorf("skills = %v, want [Frontend]", m.Skills)
	}
	// Vue is in the historical taxonomy but not required by the filter.
	if len(m.SubSkills) != 1 || m.SubSkills[0] != "React" {
		t.Errorf("subskills = %v, want [React]", m.SubSkills)
	}

	if _, ok := got["u2"]; ok {
		t.Error("losing submissions must not produce matches")
	}
}

func TestProofOfWorkMatches(t *testing.T) {
	s := seedStore()

	got, err := s.ProofOfWorkMatches(context.Background(), feFilter())
	if err != nil {
		t.Fatalf("ProofOfWorkMatches() error = %v", err)
	}

	m, ok := got["u2"]
	if !ok {
		t.Fatal("expected u2 through the proof-of-work record")
	}
	if len(m.Skills) != 1 || len(m.SubSkills) != 1 {
		t.Errorf("match = %+v, want one skill and one subskill", m)
	}

	// u1 has no proof-of-work records.
	if _, ok := got["u1"]; ok {
		t.Error("u1 has no proof-of-work records")
	}
}

func TestRecommendedUsers(t *testing.T) {
	s := NewInMemoryStore()
	s.PutUser(&User{ID: "u1", STRecommended: true})
	s.PutUser(&User{ID: "u2"})

	got, err := s.RecommendedUsers(context.Background(), []string{"u1", "u2", "ghost"})
	if err != nil {
		t.Fatalf("RecommendedUsers() error = %v", err)
	}
	if !got["u1"] || got["u2"] || got["ghost"] {
		t.Errorf("recommended = %v, want only u1", got)
	}
}

func TestUserSummaries(t *testing.T) {
	s := NewInMemoryStore()
	s.PutUser(&User{ID: "u1", Username: "riley", Name: "Riley", PhotoURL: "p.png", STRecommended: true})

	got, err := s.UserSummaries(context.Background(), []string{"u1", "ghost"})
	if err != nil {
		t.Fatalf("UserSummaries() error = %v", err)
	}
	sum, ok := got["u1"]
	if !ok {
		t.Fatal("expected a summary for u1")
	}
	if sum.Username != "riley" || !sum.Recommended || sum.PhotoURL != "p.png" {
		t.Errorf("summary = %+v", sum)
	}
	if _, ok := got["ghost"]; ok {
		t.Error("unknown users must be omitted")
	}
}

func TestUnpaidWinnerListings(t *testing.T) {
	s := NewInMemoryStore()
	s.PutSubmission(&Submission{ID: "s1", ListingID: "l1", UserID: "u1", IsWinner: true, IsPaid: false})
	s.PutSubmission(&Submission{ID: "s2", ListingID: "l2", UserID: "u1", IsWinner: true, IsPaid: true})
	s.PutSubmission(&Submission{ID: "s3", ListingID: "l3", UserID: "u1", IsWinner: false, IsPaid: false})

	got, err := s.UnpaidWinnerListings(context.Background(), []string{"l1", "l2", "l3"})
	if err != nil {
		t.Fatalf("UnpaidWinnerListings() error = %v", err)
	}
	if !got["l1"] {
		t.Error("l1 has an unpaid winner")
	}
	if got["l2"] || got["l3"] {
		t.Errorf("result = %v, want only l1 flagged", got)
	}
}

func TestUncommittedAIReviewListings(t *testing.T) {
	s := NewInMemoryStore()
	s.PutSubmission(&Submission{
		ID: "s1", ListingID: "l1", UserID: "u1",
		Status: "Pending", Label: "Unreviewed",
		Review: &AIReview{PredictedLabel: "High_Quality", Committed: false},
	})
	s.PutSubmission(&Submission{
		ID: "s2", ListingID: "l2", UserID: "u1",
		Status: "Pending", Label: "Unreviewed",
		Review: &AIReview{PredictedLabel: "High_Quality", Committed: true},
	})
	s.PutSubmission(&Submission{
		ID: "s3", ListingID: "l3", UserID: "u1",
		Status: "Approved", Label: "Unreviewed",
		Review: &AIReview{PredictedLabel: "Spam", Committed: false},
	})
	s.PutSubmission(&Submission{
		ID: "s4", ListingID: "l4", UserID: "u1",
		Status: "Pending", Label: "Unreviewed",
	})

	got, err := s.UncommittedAIReviewListings(context.Background(), []string{"l1", "l2", "l3", "l4"})
	if err != nil {
		t.Fatalf("UncommittedAIReviewListings() error = %v", err)
	}
	if !got["l1"] {
		t.Error("l1 carries an uncommitted prediction")
	}
	for _, id := range []string{"l2", "l3", "l4"} {
		if got[id] {
			t.Errorf("%s must not be flagged", id)
		}
	}
}

func TestMatchSet_Merge(t *testing.T) {
	a := MatchSet{Skills: []string{"Frontend"}, SubSkills: []string{"React"}}
	b := MatchSet{Skills: []string{"Frontend", "Backend"}, SubSkills: []string{"React", "Vue"}}

	m := a.Merge(b)
	if len(m.Skills) != 2 || m.Skills[0] != "Frontend" || m.Skills[1] != "Backend" {
		t.Errorf("skills = %v, want union in first-seen order", m.Skills)
	}
	if len(m.SubSkills) != 2 || m.SubSkills[0] != "React" || m.SubSkills[1] != "Vue" {
		t.Errorf("subskills = %v, want union in first-seen order", m.SubSkills)
	}
}
