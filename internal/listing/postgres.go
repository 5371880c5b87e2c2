package listing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/onnwee/talentboard/internal/tracing"
)

// listingColumns is the shared column list for listing scans.
const listingColumns = `
	id, title, slug, type, sponsor_id, status,
	deadline, commitment_date,
	is_published, is_active, is_archived,
	is_winners_announced, winners_announced_at, is_externally_funded,
	usd_value, region, skills, published_at, updated_at`

// PostgresRepository implements Repository and SponsorRepository using
// PostgreSQL. All queries are fully parameterized.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a listing by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Listing, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)

	query := `SELECT` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	endSpan(err)
	if err == sql.ErrNoRows {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// ActionableBySponsor retrieves the sponsor's listings that currently require
// attention: published and active OPEN listings, plus listings under
// verification.
func (r *PostgresRepository) ActionableBySponsor(ctx context.Context, sponsorID string) ([]*Listing, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)

	query := `
		SELECT` + listingColumns + `
		FROM listings
		WHERE sponsor_id = $1
		  AND (status = 'VERIFYING' OR (status = 'OPEN' AND is_published AND is_active))
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, sponsorID)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to list actionable listings: %w", err)
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		out = append(out, l)
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return out, nil
}

// GetSponsorByID retrieves a sponsor by its ID.
func (r *PostgresRepository) GetSponsorByID(ctx context.Context, id string) (*Sponsor, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sponsors", tracing.DBOperationQuery)

	query := `SELECT id, name, slug, COALESCE(logo_url, ''), is_verified FROM sponsors WHERE id = $1`
	var s Sponsor
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.Slug, &s.LogoURL, &s.IsVerified)
	endSpan(err)
	if err == sql.ErrNoRows {
		return nil, ErrSponsorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sponsor: %w", err)
	}
	return &s, nil
}

// Sponsors returns a SponsorRepository view of this repository.
func (r *PostgresRepository) Sponsors() SponsorRepository {
	return pgSponsorView{r}
}

type pgSponsorView struct{ r *PostgresRepository }

func (v pgSponsorView) GetByID(ctx context.Context, id string) (*Sponsor, error) {
	return v.r.GetSponsorByID(ctx, id)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var (
		l         Listing
		skillsRaw []byte
	)
	err := row.Scan(
		&l.ID, &l.Title, &l.Slug, &l.Type, &l.SponsorID, &l.Status,
		&l.Deadline, &l.CommitmentDate,
		&l.IsPublished, &l.IsActive, &l.IsArchived,
		&l.IsWinnersAnnounced, &l.WinnersAnnouncedAt, &l.IsExternallyFunded,
		&l.USDValue, &l.Region, &skillsRaw, &l.PublishedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(skillsRaw) > 0 {
		if err := json.Unmarshal(skillsRaw, &l.Skills); err != nil {
			return nil, fmt.Errorf("failed to decode listing skills: %w", err)
		}
	}
	return &l, nil
}
