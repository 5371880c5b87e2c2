package talent

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/onnwee/talentboard/internal/tracing"
)

// PostgresStore implements the talent read interfaces using PostgreSQL.
// Skill and region values bind as query parameters, with pq.Array for the
// skill lists.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UnpaidWinnerListings returns, for each given listing, whether it has at
// least one winning submission that has not been paid out.
func (s *PostgresStore) UnpaidWinnerListings(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "submissions", tracing.DBOperationQuery)

	query := `
		SELECT listing_id
		FROM submissions
		WHERE listing_id = ANY($1) AND is_winner AND NOT is_paid
		GROUP BY listing_id
		HAVING COUNT(*) > 0`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(listingIDs))
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query unpaid winners: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(listingIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan unpaid winner row: %w", err)
		}
		out[id] = true
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate unpaid winner rows: %w", err)
	}
	return out, nil
}

// UncommittedAIReviewListings returns, for each given listing, whether it has
// a pending submission carrying an uncommitted AI review prediction.
func (s *PostgresStore) UncommittedAIReviewListings(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "submissions", tracing.DBOperationQuery)

	query := `
		SELECT DISTINCT listing_id
		FROM submissions
		WHERE listing_id = ANY($1)
		  AND status = 'Pending'
		  AND label IN ('Unreviewed', 'Pending')
		  AND review IS NOT NULL
		  AND COALESCE(review->>'predicted_label', '') <> ''
		  AND NOT COALESCE((review->>'committed')::boolean, false)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(listingIDs))
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query uncommitted reviews: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(listingIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		out[id] = true
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate review rows: %w", err)
	}
	return out, nil
}

// Earnings returns rewardInUSD summed over each candidate's winning
// submissions whose listing skills intersect the filter.
func (s *PostgresStore) Earnings(ctx context.Context, f MatchFilter) (map[string]float64, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "submissions", tracing.DBOperationQuery)

	query := `
		SELECT s.user_id, SUM(s.reward_in_usd)
		FROM submissions s
		JOIN listings l ON l.id = s.listing_id
		JOIN users u ON u.id = s.user_id
		JOIN email_settings es ON es.user_id = u.id AND es.category = $1
		WHERE s.is_winner
		  AND s.listing_id <> $2
		  AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(l.skills) sk
			WHERE sk->>'skills' = ANY($3)
			   OR EXISTS (
				SELECT 1 FROM jsonb_array_elements_text(sk->'subskills') sub
				WHERE sub = ANY($4)
			   )
		  )
		  AND ($5 = '' OR u.location ILIKE '%' || $5 || '%')
		GROUP BY s.user_id`
	rows, err := s.db.QueryContext(ctx, query,
		EmailCategoryScoutInvite, f.ExcludeListingID,
		pq.Array(f.DevSkills), pq.Array(f.SubSkills), regionParam(f))
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query earnings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			userID  string
			dollars float64
		)
		if err := rows.Scan(&userID, &dollars); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan earnings row: %w", err)
		}
		out[userID] = dollars
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate earnings rows: %w", err)
	}
	return out, nil
}

// SubmissionMatches returns the distinct matched skills and subskills from
// each candidate's winning submissions.
func (s *PostgresStore) SubmissionMatches(ctx context.Context, f MatchFilter) (map[string]MatchSet, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "submissions", tracing.DBOperationQuery)

	query := `
		SELECT DISTINCT s.user_id, m.kind, m.value
		FROM submissions s
		JOIN listings l ON l.id = s.listing_id
		JOIN users u ON u.id = s.user_id
		JOIN email_settings es ON es.user_id = u.id AND es.category = $1
		CROSS JOIN LATERAL (
			SELECT 'skill' AS kind, sk->>'skills' AS value
			FROM jsonb_array_elements(l.skills) sk
			WHERE sk->>'skills' = ANY($3)
			UNION
			SELECT 'subskill', sub
			FROM jsonb_array_elements(l.skills) sk,
			     jsonb_array_elements_text(sk->'subskills') sub
			WHERE sub = ANY($4)
		) m
		WHERE s.is_winner
		  AND s.listing_id <> $2
		  AND ($5 = '' OR u.location ILIKE '%' || $5 || '%')`
	return s.queryMatchSets(ctx, endSpan, query,
		EmailCategoryScoutInvite, f.ExcludeListingID,
		pq.Array(f.DevSkills), pq.Array(f.SubSkills), regionParam(f))
}

// ProofOfWorkMatches returns the distinct matched skills and subskills from
// each candidate's proof-of-work records.
func (s *PostgresStore) ProofOfWorkMatches(ctx context.Context, f MatchFilter) (map[string]MatchSet, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "proof_of_work", tracing.DBOperationQuery)

	query := `
		SELECT DISTINCT p.user_id, m.kind, m.value
		FROM proof_of_work p
		JOIN users u ON u.id = p.user_id
		JOIN email_settings es ON es.user_id = u.id AND es.category = $1
		CROSS JOIN LATERAL (
			SELECT 'skill' AS kind, sk AS value
			FROM unnest(p.skills) sk
			WHERE sk = ANY($2)
			UNION
			SELECT 'subskill', sub
			FROM unnest(p.subskills) sub
			WHERE sub = ANY($3)
		) m
		WHERE ($4 = '' OR u.location ILIKE '%' || $4 || '%')`
	return s.queryMatchSets(ctx, endSpan, query,
		EmailCategoryScoutInvite,
		pq.Array(f.DevSkills), pq.Array(f.SubSkills), regionParam(f))
}

// RecommendedUsers reports which of the given users carry the editorial
// recommendation flag.
func (s *PostgresStore) RecommendedUsers(ctx context.Context, userIDs []string) (map[string]bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)

	query := `SELECT id FROM users WHERE id = ANY($1) AND st_recommended`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query recommended users: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(userIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan recommended user: %w", err)
		}
		out[id] = true
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate recommended users: %w", err)
	}
	return out, nil
}

// UserSummaries returns API summaries for the given users.
func (s *PostgresStore) UserSummaries(ctx context.Context, userIDs []string) (map[string]Summary, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)

	query := `
		SELECT id, name, username, COALESCE(photo_url, ''), st_recommended
		FROM users WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query user summaries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Summary, len(userIDs))
	for rows.Next() {
		var u Summary
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.PhotoURL, &u.Recommended); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan user summary: %w", err)
		}
		out[u.ID] = u
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate user summaries: %w", err)
	}
	return out, nil
}

// queryMatchSets runs a (user_id, kind, value) query and folds rows into
// per-user match sets.
func (s *PostgresStore) queryMatchSets(ctx context.Context, endSpan func(error), query string, args ...any) (map[string]MatchSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to query skill matches: %w", err)
	}
	defer rows.Close()

	out := make(map[string]MatchSet)
	for rows.Next() {
		var userID, kind, value string
		if err := rows.Scan(&userID, &kind, &value); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan skill match: %w", err)
		}
		m := out[userID]
		switch kind {
		case "skill":
			m.Skills = append(m.Skills, value)
		case "subskill":
			m.SubSkills = append(m.SubSkills, value)
		}
		out[userID] = m
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate skill matches: %w", err)
	}
	return out, nil
}

// regionParam returns the region filter value to bind, empty when the filter
// is disabled.
func regionParam(f MatchFilter) string {
	if !f.FiltersRegion() {
		return ""
	}
	return f.Region
}
