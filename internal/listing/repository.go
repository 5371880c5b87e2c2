package listing

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Common errors for listing operations.
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrSponsorNotFound = errors.New("sponsor not found")
)

// Repository defines the interface for listing data operations.
type Repository interface {
	// GetByID retrieves a listing by its ID.
	GetByID(ctx context.Context, id string) (*Listing, error)

	// ActionableBySponsor retrieves the sponsor's listings that currently
	// require attention: published and active OPEN listings, plus listings
	// still under verification.
	ActionableBySponsor(ctx context.Context, sponsorID string) ([]*Listing, error)
}

// SponsorRepository defines the interface for sponsor data operations.
type SponsorRepository interface {
	// GetByID retrieves a sponsor by its ID.
	GetByID(ctx context.Context, id string) (*Sponsor, error)
}

// InMemoryRepository is an in-memory implementation of Repository and
// SponsorRepository. Used for testing and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	sponsors map[string]*Sponsor
}

// NewInMemoryRepository creates a new in-memory listing repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		listings: make(map[string]*Listing),
		sponsors: make(map[string]*Sponsor),
	}
}

// PutListing stores or replaces a listing.
func (r *InMemoryRepository) PutListing(l *Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.listings[l.ID] = &cp
}

// PutSponsor stores or replaces a sponsor.
func (r *InMemoryRepository) PutSponsor(s *Sponsor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sponsors[s.ID] = &cp
}

// GetByID retrieves a listing by its ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

// ActionableBySponsor retrieves the sponsor's actionable listings.
func (r *InMemoryRepository) ActionableBySponsor(ctx context.Context, sponsorID string) ([]*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Listing
	for _, l := range r.listings {
		if l.SponsorID != sponsorID {
			continue
		}
		if actionable(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	// Stable order for deterministic tests.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSponsorByID retrieves a sponsor by ID. Exposed under the
// SponsorRepository interface via the Sponsors method.
func (r *InMemoryRepository) GetSponsorByID(ctx context.Context, id string) (*Sponsor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sponsors[id]
	if !ok {
		return nil, ErrSponsorNotFound
	}
	cp := *s
	return &cp, nil
}

// Sponsors returns a SponsorRepository view of the in-memory store.
func (r *InMemoryRepository) Sponsors() SponsorRepository {
	return sponsorView{r}
}

type sponsorView struct{ r *InMemoryRepository }

func (v sponsorView) GetByID(ctx context.Context, id string) (*Sponsor, error) {
	return v.r.GetSponsorByID(ctx, id)
}

// actionable mirrors the SQL predicate used by the Postgres repository.
func actionable(l *Listing) bool {
	if l.Status == StatusVerifying {
		return true
	}
	return l.Status == StatusOpen && l.IsPublished && l.IsActive
}
