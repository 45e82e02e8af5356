package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusattend/internal/store"
)

// Repository persists claims in Postgres. The (session_id, participant_id)
// unique index is the concurrency guard for submissions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const claimColumns = `id, session_id, participant_id, status, submitted_at,
	distance_m, minutes_since_start, lat, lon, created_at`

// Insert writes a new claim. A duplicate (session, participant) pair surfaces
// as errDuplicateClaim; the loser of a race sees it and re-reads.
func (r *Repository) Insert(ctx context.Context, c Claim) (Claim, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO claims (id, session_id, participant_id, status, submitted_at,
			distance_m, minutes_since_start, lat, lon)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, c.ID, c.SessionID, c.ParticipantID, c.Status, c.SubmittedAt,
		c.DistanceM, c.MinutesSinceStart, c.Lat, c.Lon)
	if err := row.Scan(&c.CreatedAt); err != nil {
		if store.IsUniqueViolation(err, "claims_session_participant_key") {
			return Claim{}, errDuplicateClaim
		}
		return Claim{}, err
	}
	return c, nil
}

// Get returns a single claim by id.
func (r *Repository) Get(ctx context.Context, id string) (Claim, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM claims WHERE id = $1
	`, id)
	var c Claim
	if err := row.Scan(&c.ID, &c.SessionID, &c.ParticipantID, &c.Status, &c.SubmittedAt,
		&c.DistanceM, &c.MinutesSinceStart, &c.Lat, &c.Lon, &c.CreatedAt); err != nil {
		return Claim{}, err
	}
	return c, nil
}

// Find returns the claim for a (session, participant) pair, or nil when none
// exists.
func (r *Repository) Find(ctx context.Context, sessionID, participantID string) (*Claim, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE session_id = $1 AND participant_id = $2
	`, sessionID, participantID)
	var c Claim
	if err := row.Scan(&c.ID, &c.SessionID, &c.ParticipantID, &c.Status, &c.SubmittedAt,
		&c.DistanceM, &c.MinutesSinceStart, &c.Lat, &c.Lon, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListBySession returns all claims recorded for a session.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Claim, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE session_id = $1
		ORDER BY submitted_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByParticipant returns a participant's claims submitted inside [from, to].
func (r *Repository) ListByParticipant(ctx context.Context, participantID string, from, to time.Time) ([]Claim, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE participant_id = $1 AND submitted_at >= $2 AND submitted_at <= $3
		ORDER BY submitted_at DESC
	`, participantID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// StatusesFor returns the participant's claim status for each of the given
// sessions that has one. Used by the discovery projection.
func (r *Repository) StatusesFor(ctx context.Context, participantID string, sessionIDs []string) (map[string]Status, error) {
	res := make(map[string]Status, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return res, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, status FROM claims
		WHERE participant_id = $1 AND session_id = ANY($2)
	`, participantID, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var st Status
		if err := rows.Scan(&id, &st); err != nil {
			return nil, err
		}
		res[id] = st
	}
	return res, rows.Err()
}

func collect(rows *sql.Rows) ([]Claim, error) {
	defer rows.Close()
	var res []Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.SessionID, &c.ParticipantID, &c.Status, &c.SubmittedAt,
			&c.DistanceM, &c.MinutesSinceStart, &c.Lat, &c.Lon, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
