package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusattend/internal/store"
)

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, code, course_id, presenter_id, session_date, starts_at, ends_at,
	anchor_lat, anchor_lon, room, topic, open, created_at`

// Insert writes a new session. A (code, session_date) collision surfaces as
// errCodeTaken so the caller can regenerate.
func (r *Repository) Insert(ctx context.Context, s Session) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, code, course_id, presenter_id, session_date, starts_at, ends_at,
			anchor_lat, anchor_lon, room, topic, open)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at
	`, s.ID, s.Code, s.CourseID, s.PresenterID, s.Date, s.StartsAt, s.EndsAt,
		s.AnchorLat, s.AnchorLon, s.Room, s.Topic, s.Open)
	if err := row.Scan(&s.CreatedAt); err != nil {
		if store.IsUniqueViolation(err, "sessions_code_date_key") {
			return Session{}, errCodeTaken
		}
		return Session{}, err
	}
	return s, nil
}

// Get returns a single session by id.
func (r *Repository) Get(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

// SetClosed flips the open flag; the only mutation a session ever sees.
func (r *Repository) SetClosed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET open = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOpenByCode resolves an open session by code for the given date.
func (r *Repository) FindOpenByCode(ctx context.Context, code string, date time.Time) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE code = $1 AND session_date = $2 AND open = TRUE
	`, code, date)
	return scanSession(row)
}

// ListOpenForCourses returns open sessions for asOf's date whose time window
// contains asOf, inclusive of the end instant.
func (r *Repository) ListOpenForCourses(ctx context.Context, courseIDs []string, asOf time.Time) ([]Session, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	args := []any{DateOf(asOf), asOf}
	in := ""
	for i, id := range courseIDs {
		if i > 0 {
			in += ","
		}
		in += "$" + itoa(len(args)+1)
		args = append(args, id)
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE open = TRUE AND session_date = $1 AND starts_at <= $2 AND ends_at >= $2
		AND course_id IN (` + in + `)
		ORDER BY starts_at, code`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Code, &s.CourseID, &s.PresenterID, &s.Date, &s.StartsAt, &s.EndsAt,
			&s.AnchorLat, &s.AnchorLon, &s.Room, &s.Topic, &s.Open, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Code, &s.CourseID, &s.PresenterID, &s.Date, &s.StartsAt, &s.EndsAt,
		&s.AnchorLat, &s.AnchorLon, &s.Room, &s.Topic, &s.Open, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }
