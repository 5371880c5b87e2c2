package scout

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines persistence for scout rows.
type Repository interface {
	// ListByListing returns the stored scouts for a listing, ordered by
	// score descending.
	ListByListing(ctx context.Context, listingID string) ([]Scout, error)

	// LatestCreatedAt returns the newest row creation time for a listing,
	// or nil when no rows exist. Drives the freshness window.
	LatestCreatedAt(ctx context.Context, listingID string) (*time.Time, error)

	// InvitedUserIDs returns the users already invited for a listing.
	InvitedUserIDs(ctx context.Context, listingID string) ([]string, error)

	// Replace deletes every row for the listing and inserts rows in one
	// transaction, so concurrent readers never observe a half-built set.
	Replace(ctx context.Context, listingID string, rows []Scout) error

	// MarkInvited flags a scout row as invited. Returns ErrScoutNotFound
	// when no row exists for the pair.
	MarkInvited(ctx context.Context, listingID, userID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu   sync.RWMutex
	rows map[string][]Scout // listingID -> rows
}

// NewInMemoryRepository creates a new in-memory scout repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[string][]Scout)}
}

// ListByListing returns the stored scouts ordered by score descending.
func (r *InMemoryRepository) ListByListing(ctx context.Context, listingID string) ([]Scout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := make([]Scout, len(r.rows[listingID]))
	copy(rows, r.rows[listingID])
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows, nil
}

// LatestCreatedAt returns the newest row creation time, or nil without rows.
func (r *InMemoryRepository) LatestCreatedAt(ctx context.Context, listingID string) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *time.Time
	for _, row := range r.rows[listingID] {
		t := row.CreatedAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// InvitedUserIDs returns the users already invited for a listing.
func (r *InMemoryRepository) InvitedUserIDs(ctx context.Context, listingID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, row := range r.rows[listingID] {
		if row.Invited {
			out = append(out, row.UserID)
		}
	}
	return out, nil
}

// Replace swaps the listing's rows for the given set.
func (r *InMemoryRepository) Replace(ctx context.Context, listingID string, rows []Scout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Scout, len(rows))
	copy(cp, rows)
	r.rows[listingID] = cp
	return nil
}

// MarkInvited flags a scout row as invited.
func (r *InMemoryRepository) MarkInvited(ctx context.Context, listingID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows[listingID] {
		if row.UserID == userID {
			r.rows[listingID][i].Invited = true
			return nil
		}
	}
	return ErrScoutNotFound
}
