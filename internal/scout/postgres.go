package scout

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onnwee/talentboard/internal/talent"
	"github.com/onnwee/talentboard/internal/tracing"
)

// replaceTimeout bounds the delete+insert transaction. Recomputation writes
// up to MaxCandidates rows but waits on row locks held by concurrent
// recomputes of the same listing, so it gets more headroom than a plain query.
const replaceTimeout = 15 * time.Second

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByListing returns the stored scouts for a listing, ordered by score
// descending, with each row's user summary embedded.
func (r *PostgresRepository) ListByListing(ctx context.Context, listingID string) ([]Scout, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scouts", tracing.DBOperationQuery)

	query := `
		SELECT s.id, s.listing_id, s.user_id, s.dollars_earned, s.score,
		       s.skills, s.invited, s.created_at,
		       u.name, u.username, COALESCE(u.photo_url, ''), u.st_recommended
		FROM scouts s
		JOIN users u ON u.id = s.user_id
		WHERE s.listing_id = $1
		ORDER BY s.score DESC, s.dollars_earned DESC, s.user_id`
	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to list scouts: %w", err)
	}
	defer rows.Close()

	var out []Scout
	for rows.Next() {
		var (
			s         Scout
			skillsRaw []byte
			u         talent.Summary
		)
		err := rows.Scan(
			&s.ID, &s.ListingID, &s.UserID, &s.DollarsEarned, &s.Score,
			&skillsRaw, &s.Invited, &s.CreatedAt,
			&u.Name, &u.Username, &u.PhotoURL, &u.Recommended,
		)
		if err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan scout: %w", err)
		}
		if len(skillsRaw) > 0 {
			if err := json.Unmarshal(skillsRaw, &s.Skills); err != nil {
				endSpan(err)
				return nil, fmt.Errorf("failed to decode scout skills: %w", err)
			}
		}
		u.ID = s.UserID
		s.User = &u
		out = append(out, s)
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate scouts: %w", err)
	}
	return out, nil
}

// LatestCreatedAt returns the newest row creation time for a listing, or nil
// when no rows exist.
func (r *PostgresRepository) LatestCreatedAt(ctx context.Context, listingID string) (*time.Time, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scouts", tracing.DBOperationQuery)

	var latest sql.NullTime
	query := `SELECT MAX(created_at) FROM scouts WHERE listing_id = $1`
	err := r.db.QueryRowContext(ctx, query, listingID).Scan(&latest)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scout time: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// InvitedUserIDs returns the users already invited for a listing.
func (r *PostgresRepository) InvitedUserIDs(ctx context.Context, listingID string) ([]string, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scouts", tracing.DBOperationQuery)

	query := `SELECT user_id FROM scouts WHERE listing_id = $1 AND invited`
	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		endSpan(err)
		return nil, fmt.Errorf("failed to list invited scouts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			endSpan(err)
			return nil, fmt.Errorf("failed to scan invited scout: %w", err)
		}
		out = append(out, id)
	}
	err = rows.Err()
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate invited scouts: %w", err)
	}
	return out, nil
}

// Replace deletes every row for the listing and inserts the given rows in a
// single transaction, so readers see either the old set or the new set and
// never a partial one.
func (r *PostgresRepository) Replace(ctx context.Context, listingID string, scouts []Scout) error {
	ctx, cancel := context.WithTimeout(ctx, replaceTimeout)
	defer cancel()

	ctx, endSpan := tracing.StartDBSpan(ctx, "scouts", tracing.DBOperationUpdate)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		endSpan(err)
		return fmt.Errorf("failed to begin scout replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scouts WHERE listing_id = $1`, listingID); err != nil {
		endSpan(err)
		return fmt.Errorf("failed to clear scouts: %w", err)
	}

	insert := `
		INSERT INTO scouts (id, listing_id, user_id, dollars_earned, score, skills, invited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, s := range scouts {
		skillsRaw, err := json.Marshal(s.Skills)
		if err != nil {
			endSpan(err)
			return fmt.Errorf("failed to encode scout skills: %w", err)
		}
		_, err = tx.ExecContext(ctx, insert,
			s.ID, listingID, s.UserID, s.DollarsEarned, s.Score,
			skillsRaw, s.Invited, s.CreatedAt,
		)
		if err != nil {
			endSpan(err)
			return fmt.Errorf("failed to insert scout: %w", err)
		}
	}

	err = tx.Commit()
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to commit scout replace: %w", err)
	}
	return nil
}

// MarkInvited flags a scout row as invited.
func (r *PostgresRepository) MarkInvited(ctx context.Context, listingID, userID string) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scouts", tracing.DBOperationUpdate)

	query := `UPDATE scouts SET invited = TRUE WHERE listing_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, listingID, userID)
	if err != nil {
		endSpan(err)
		return fmt.Errorf("failed to mark scout invited: %w", err)
	}
	n, err := res.RowsAffected()
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to check invited update: %w", err)
	}
	if n == 0 {
		return ErrScoutNotFound
	}
	return nil
}
